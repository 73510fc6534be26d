package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/dto/response"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/metrics"
	"gomarketfeed_api/pkg/logger"
)

// ErrReconciliationIncomplete: пагинация статуса не сошлась за отведённое
// число страниц. Снапшот сохранён как неполный, опрос надо повторить.
var ErrReconciliationIncomplete = errors.New("feed status pagination did not converge")

// StatusFetcher -- одна страница по-товарных результатов фида.
type StatusFetcher interface {
	FetchFeedStatus(ctx context.Context, feedID string, offset, limit int) (*response.FeedStatusResponse, error)
}

// ReconcileRepository -- персистенция снапшотов и статусов чанков.
type ReconcileRepository interface {
	SaveSnapshot(ctx context.Context, chunkID string, snapshot *models.StatusSnapshot) error
	UpdateChunkStatus(ctx context.Context, chunkID string, status models.ChunkStatus) error
	BatchChunks(ctx context.Context, batchID string) ([]models.Chunk, error)
	BatchUnmapped(ctx context.Context, batchID string) ([]models.UnmappedProduct, error)
}

// Reconciler опрашивает статусы отправленных фидов и сводит их в отчёт
// по батчу. Снапшоты монотонны: терминальный статус товара не может быть
// затёрт промежуточным из отставшего опроса.
type Reconciler struct {
	statuses StatusFetcher
	repo     ReconcileRepository
	values   values.MarketValues
	stats    *metrics.SyncMetrics
	log      logger.Logger
}

func NewReconciler(statuses StatusFetcher, repo ReconcileRepository, v values.MarketValues, stats *metrics.SyncMetrics, log logger.Logger) *Reconciler {
	return &Reconciler{
		statuses: statuses,
		repo:     repo,
		values:   v,
		stats:    stats,
		log:      log,
	}
}

// Poll вычитывает по-товарные результаты чанка постранично, сливает их с
// предыдущим снапшотом и обновляет статус чанка. При несошедшейся пагинации
// снапшот сохраняется с Incomplete и возвращается ErrReconciliationIncomplete.
func (r *Reconciler) Poll(ctx context.Context, chunk *models.Chunk) (*models.StatusSnapshot, error) {
	if chunk.FeedID == "" {
		return nil, fmt.Errorf("chunk %s has no feed id, nothing to poll", chunk.ID)
	}

	snapshot, err := r.collectPages(ctx, chunk.FeedID)
	if err != nil {
		return nil, err
	}

	merged := mergeSnapshots(chunk.Snapshot, snapshot)
	status := chunkStatusFor(merged)

	if err := r.repo.SaveSnapshot(ctx, chunk.ID, merged); err != nil {
		return nil, fmt.Errorf("persisting snapshot for chunk %s: %w", chunk.ID, err)
	}
	if status != chunk.Status {
		if err := r.repo.UpdateChunkStatus(ctx, chunk.ID, status); err != nil {
			return nil, fmt.Errorf("updating status for chunk %s: %w", chunk.ID, err)
		}
	}

	chunk.Snapshot = merged
	chunk.Status = status
	metrics.RecordStatusPoll(merged.FeedStatus)
	if r.stats != nil {
		r.stats.PolledChunks.Add(1)
	}

	if merged.Incomplete {
		r.log.Warn("chunk %s: collected %d of %d item results in %d pages",
			chunk.ID, len(merged.Items), merged.ItemsReceived, r.values.StatusMaxPages)
		return merged, ErrReconciliationIncomplete
	}

	r.log.Log("chunk %s: feed %s is %s (%d received, %d succeeded, %d failed)",
		chunk.ID, chunk.FeedID, merged.FeedStatus,
		merged.ItemsReceived, merged.ItemsSucceeded, merged.ItemsFailed)
	return merged, nil
}

// collectPages читает страницы, пока не наберёт ItemsReceived результатов.
// Защита от бесконечного цикла на битой пагинации: лимит страниц и пустая
// страница останавливают чтение, снапшот помечается неполным.
func (r *Reconciler) collectPages(ctx context.Context, feedID string) (*models.StatusSnapshot, error) {
	limit := r.values.StatusPageLimit
	snapshot := &models.StatusSnapshot{
		FeedID:   feedID,
		PolledAt: time.Now().UTC(),
	}

	for page := 0; page < r.values.StatusMaxPages; page++ {
		statusResponse, err := r.statuses.FetchFeedStatus(ctx, feedID, page*limit, limit)
		if err != nil {
			return nil, err
		}

		// Агрегаты берём с каждой страницы: маркетплейс уточняет их
		// по мере обработки.
		snapshot.FeedStatus = statusResponse.FeedStatus
		snapshot.ItemsReceived = statusResponse.ItemsReceived
		snapshot.ItemsSucceeded = statusResponse.ItemsSucceeded
		snapshot.ItemsFailed = statusResponse.ItemsFailed
		snapshot.ItemsInProgress = statusResponse.ItemsProcessing

		pageItems := statusResponse.ItemDetails.ItemIngestionStatus
		for _, item := range pageItems {
			snapshot.Items = append(snapshot.Items, models.ItemResult{
				SKU:    item.SKU,
				Status: models.IngestionStatus(item.IngestionStatus),
				Errors: flattenIngestionErrors(item.IngestionErrors),
			})
		}

		if len(snapshot.Items) >= snapshot.ItemsReceived {
			return snapshot, nil
		}
		if len(pageItems) == 0 {
			break
		}
	}

	snapshot.Incomplete = true
	return snapshot, nil
}

// MergeBatch сводит снапшоты всех чанков батча в отчёт с тремя корзинами.
// Частично обработанный батч остаётся частичным отчётом, а не тотальным
// фейлом.
func (r *Reconciler) MergeBatch(ctx context.Context, batchID string) (*models.BatchReport, error) {
	chunks, err := r.repo.BatchChunks(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks of batch %s: %w", batchID, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("batch %s has no chunks", batchID)
	}
	unmapped, err := r.repo.BatchUnmapped(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("loading unmapped products of batch %s: %w", batchID, err)
	}

	report := &models.BatchReport{BatchID: batchID, Unmapped: unmapped}

	type observed struct {
		result   models.ItemResult
		polledAt time.Time
	}
	bySKU := make(map[string]observed)
	order := make([]string, 0)

	for _, chunk := range chunks {
		if chunk.Snapshot == nil || !chunk.Snapshot.Resolved() {
			report.PendingChunks = append(report.PendingChunks, chunk.ID)
		}
		if chunk.Snapshot == nil {
			continue
		}
		for _, item := range chunk.Snapshot.Items {
			previous, collision := bySKU[item.SKU]
			if !collision {
				order = append(order, item.SKU)
				bySKU[item.SKU] = observed{result: item, polledAt: chunk.Snapshot.PolledAt}
				continue
			}
			// SKU в двух чанках -- дефект разбиения, но отчёт собираем:
			// выигрывает более терминальное, при равенстве более свежее.
			r.log.Warn("batch %s: sku %q appears in more than one chunk", batchID, item.SKU)
			if preferSecond(previous.result, item, previous.polledAt, chunk.Snapshot.PolledAt) {
				bySKU[item.SKU] = observed{result: item, polledAt: chunk.Snapshot.PolledAt}
			}
		}
	}

	for _, sku := range order {
		item := bySKU[sku].result
		switch item.Status {
		case models.IngestionSuccess:
			report.Succeeded = append(report.Succeeded, item)
		case models.IngestionError, models.IngestionDataError:
			report.Failed = append(report.Failed, item)
		}
	}
	return report, nil
}

// mergeSnapshots сливает свежий снапшот с предыдущим по-товарно.
// Для каждого SKU выигрывает более терминальный статус; при равном ранге --
// наблюдение из более позднего опроса.
func mergeSnapshots(previous, next *models.StatusSnapshot) *models.StatusSnapshot {
	if previous == nil {
		return next
	}

	merged := *next
	merged.Items = make([]models.ItemResult, 0, len(next.Items))

	index := make(map[string]models.ItemResult, len(previous.Items))
	for _, item := range previous.Items {
		index[item.SKU] = item
	}

	seen := make(map[string]struct{}, len(next.Items))
	for _, item := range next.Items {
		seen[item.SKU] = struct{}{}
		if old, ok := index[item.SKU]; ok && old.Status.TerminalRank() > item.Status.TerminalRank() {
			merged.Items = append(merged.Items, old)
			continue
		}
		merged.Items = append(merged.Items, item)
	}

	// Товары из прошлого снапшота, которых нет в неполной свежей выборке.
	if next.Incomplete {
		for _, item := range previous.Items {
			if _, ok := seen[item.SKU]; !ok {
				merged.Items = append(merged.Items, item)
			}
		}
		if len(merged.Items) >= merged.ItemsReceived {
			merged.Incomplete = false
		}
	}
	return &merged
}

func chunkStatusFor(snapshot *models.StatusSnapshot) models.ChunkStatus {
	terminal := 0
	failed := 0
	for _, item := range snapshot.Items {
		if item.Status.Terminal() {
			terminal++
		}
		if item.Status == models.IngestionError || item.Status == models.IngestionDataError {
			failed++
		}
	}

	if snapshot.Resolved() {
		if failed == snapshot.ItemsReceived && failed > 0 {
			return models.ChunkError
		}
		return models.ChunkComplete
	}
	if terminal > 0 {
		return models.ChunkPartial
	}
	return models.ChunkSubmitted
}

func flattenIngestionErrors(ingestionErrors []response.IngestionError) []string {
	if len(ingestionErrors) == 0 {
		return nil
	}
	flattened := make([]string, 0, len(ingestionErrors))
	for _, e := range ingestionErrors {
		if e.Description == "" {
			flattened = append(flattened, e.Code)
			continue
		}
		flattened = append(flattened, strings.TrimSpace(e.Code+": "+e.Description))
	}
	return flattened
}

func preferSecond(first, second models.ItemResult, firstAt, secondAt time.Time) bool {
	if second.Status.TerminalRank() != first.Status.TerminalRank() {
		return second.Status.TerminalRank() > first.Status.TerminalRank()
	}
	return secondAt.After(firstAt)
}
