package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/internal/marketsync/business/services/feed"
	"gomarketfeed_api/internal/marketsync/storage"
	"gomarketfeed_api/pkg/dbconnect"
	"gomarketfeed_api/pkg/logger"
)

type syncRequest struct {
	ProductIDs []int `json:"productIds"`
}

type syncResponse struct {
	BatchID   string                   `json:"batchId"`
	Chunks    []chunkSummary           `json:"chunks"`
	Unmapped  []models.UnmappedProduct `json:"unmapped,omitempty"`
	Submitted int                      `json:"submitted"`
	Failed    int                      `json:"failed"`
}

type chunkSummary struct {
	ChunkID string `json:"chunkId"`
	FeedID  string `json:"feedId,omitempty"`
	Status  string `json:"status"`
	Items   int    `json:"items"`
	Error   string `json:"error,omitempty"`
}

type pollRequest struct {
	ChunkID string `json:"chunkId"`
}

// SyncHandler -- админские ручки движка синхронизации: запуск батча,
// опрос статуса чанка, отчёт по батчу.
type SyncHandler struct {
	dbconnect.Database
	builder    *feed.BatchBuilder
	submitter  *feed.FeedSubmitter
	reconciler *feed.Reconciler
	batches    *storage.BatchRepository
	log        logger.Logger
}

func NewSyncHandler(connector dbconnect.Database, builder *feed.BatchBuilder, submitter *feed.FeedSubmitter, reconciler *feed.Reconciler, batches *storage.BatchRepository, log logger.Logger) *SyncHandler {
	return &SyncHandler{
		Database:   connector,
		builder:    builder,
		submitter:  submitter,
		reconciler: reconciler,
		batches:    batches,
		log:        log,
	}
}

func (h *SyncHandler) Ping() error {
	return h.Database.Ping()
}

// SyncProductsHandler собирает батч из присланных ID и отправляет каждый
// чанк. Отказ одного чанка не прерывает отправку остальных.
func (h *SyncHandler) SyncProductsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.ProductIDs) == 0 {
		http.Error(w, "productIds is empty", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	built, err := h.builder.Build(ctx, req.ProductIDs)
	if err != nil {
		h.log.Error("building batch: %v", err)
		http.Error(w, "Failed to build batch", http.StatusInternalServerError)
		return
	}
	if err := h.batches.CreateBatch(ctx, &built.Batch); err != nil {
		h.log.Error("persisting batch %s: %v", built.Batch.ID, err)
		http.Error(w, "Failed to persist batch", http.StatusInternalServerError)
		return
	}

	resp := syncResponse{
		BatchID:  built.Batch.ID,
		Unmapped: built.Batch.Unmapped,
	}
	for i := range built.Chunks {
		chunk := &built.Chunks[i].Chunk
		summary := chunkSummary{ChunkID: chunk.ID, Items: len(built.Chunks[i].Items)}

		if err := h.submitter.Submit(ctx, chunk, built.Chunks[i].Items); err != nil {
			h.log.Error("submitting chunk %s: %v", chunk.ID, err)
			summary.Error = err.Error()
			resp.Failed++
			if updateErr := h.batches.UpdateChunkStatus(ctx, chunk.ID, chunk.Status); updateErr != nil {
				h.log.Error("updating status of chunk %s: %v", chunk.ID, updateErr)
			}
		} else {
			resp.Submitted++
		}

		summary.FeedID = chunk.FeedID
		summary.Status = string(chunk.Status)
		resp.Chunks = append(resp.Chunks, summary)
	}

	writeJSON(w, http.StatusOK, resp)
}

// PollChunkHandler опрашивает статус одного чанка. Несошедшаяся пагинация --
// не ошибка запроса: снапшот сохранён, клиенту отдаётся 202.
func (h *SyncHandler) PollChunkHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChunkID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	chunk, err := h.batches.ChunkByID(ctx, req.ChunkID)
	if err != nil {
		h.log.Error("loading chunk %s: %v", req.ChunkID, err)
		http.Error(w, "Failed to load chunk", http.StatusInternalServerError)
		return
	}
	if chunk == nil {
		http.Error(w, "Chunk not found", http.StatusNotFound)
		return
	}

	snapshot, err := h.reconciler.Poll(ctx, chunk)
	if errors.Is(err, feed.ErrReconciliationIncomplete) {
		writeJSON(w, http.StatusAccepted, snapshot)
		return
	}
	if err != nil {
		h.log.Error("polling chunk %s: %v", req.ChunkID, err)
		http.Error(w, "Failed to poll feed status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// BatchReportHandler отдаёт сводный отчёт по батчу.
func (h *SyncHandler) BatchReportHandler(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("id")
	if batchID == "" {
		http.Error(w, "Query parameter 'id' is required", http.StatusBadRequest)
		return
	}

	report, err := h.reconciler.MergeBatch(r.Context(), batchID)
	if err != nil {
		h.log.Error("merging batch %s: %v", batchID, err)
		http.Error(w, "Failed to build batch report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
