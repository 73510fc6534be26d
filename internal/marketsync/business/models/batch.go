package models

import (
	"fmt"
	"time"
)

type ChunkStatus string

const (
	ChunkPlanned   ChunkStatus = "PLANNED"
	ChunkSubmitted ChunkStatus = "SUBMITTED"
	ChunkPartial   ChunkStatus = "PARTIAL"
	ChunkComplete  ChunkStatus = "COMPLETE"
	ChunkError     ChunkStatus = "ERROR"
)

// IngestionStatus -- статус обработки одного товара на стороне маркетплейса.
type IngestionStatus string

const (
	IngestionInProgress IngestionStatus = "INPROGRESS"
	IngestionSuccess    IngestionStatus = "SUCCESS"
	IngestionError      IngestionStatus = "ERROR"
	IngestionDataError  IngestionStatus = "DATA_ERROR"
)

func (s IngestionStatus) Terminal() bool {
	return s == IngestionSuccess || s == IngestionError || s == IngestionDataError
}

// TerminalRank упорядочивает статусы при слиянии снапшотов: терминальный
// статус всегда предпочтительнее промежуточного.
func (s IngestionStatus) TerminalRank() int {
	switch s {
	case IngestionSuccess, IngestionError, IngestionDataError:
		return 2
	case IngestionInProgress:
		return 1
	default:
		return 0
	}
}

// ItemResult -- результат обработки одного SKU в одном снапшоте.
type ItemResult struct {
	SKU    string
	Status IngestionStatus
	Errors []string
}

// StatusSnapshot -- последний опрошенный статус фида по чанку.
// Incomplete означает, что пагинация результатов не сошлась за отведённое
// число страниц и снапшот надо перечитать позже.
type StatusSnapshot struct {
	FeedID     string
	FeedStatus string
	PolledAt   time.Time

	ItemsReceived   int
	ItemsSucceeded  int
	ItemsFailed     int
	ItemsInProgress int

	Items      []ItemResult
	Incomplete bool
}

// Resolved: каждый заявленный товар получил терминальный статус.
func (s *StatusSnapshot) Resolved() bool {
	if s.Incomplete || len(s.Items) < s.ItemsReceived {
		return false
	}
	for _, item := range s.Items {
		if !item.Status.Terminal() {
			return false
		}
	}
	return true
}

// Chunk -- внутреннее подразделение батча; один чанк соответствует одному
// фиду маркетплейса. FeedID выставляется однократно и далее неизменен.
type Chunk struct {
	ID         string
	BatchID    string
	Seq        int
	ProductIDs []int

	FeedID      string
	SubmittedAt *time.Time

	Status   ChunkStatus
	Snapshot *StatusSnapshot
}

func ChunkID(batchID string, seq int) string {
	return fmt.Sprintf("%s-%d", batchID, seq)
}

// UnmappedProduct -- товар, исключённый из батча, с причиной.
type UnmappedProduct struct {
	ProductID int
	Reason    string
}

// Batch -- выбранный пользователем набор товаров, разбитый на чанки.
// Товар входит ровно в один чанк батча.
type Batch struct {
	ID        string
	CreatedAt time.Time
	Chunks    []Chunk
	Unmapped  []UnmappedProduct
}

// BatchReport -- агрегированный по батчу результат для внешнего отчёта:
// три корзины, без «голого» тотального фейла при частичном успехе.
type BatchReport struct {
	BatchID   string
	Succeeded []ItemResult
	Failed    []ItemResult
	Unmapped  []UnmappedProduct

	// Чанки, по которым снапшот ещё не терминален.
	PendingChunks []string
}
