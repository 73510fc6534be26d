package handlers

import (
	"encoding/json"
	"net/http"

	"gomarketfeed_api/internal/marketsync/storage"
	"gomarketfeed_api/pkg/dbconnect"
	"gomarketfeed_api/pkg/logger"
)

type seedRequest struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// PoolHandler -- админские ручки пула идентификаторов: загрузка купленного
// диапазона и остаток.
type PoolHandler struct {
	dbconnect.Database
	pool *storage.PoolRepository
	log  logger.Logger
}

func NewPoolHandler(connector dbconnect.Database, pool *storage.PoolRepository, log logger.Logger) *PoolHandler {
	return &PoolHandler{Database: connector, pool: pool, log: log}
}

func (h *PoolHandler) Ping() error {
	return h.Database.Ping()
}

func (h *PoolHandler) SeedPoolHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.From <= 0 || req.To < req.From {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	inserted, err := h.pool.SeedRange(r.Context(), req.From, req.To)
	if err != nil {
		h.log.Error("seeding pool: %v", err)
		http.Error(w, "Failed to seed pool", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"inserted": inserted})
}

func (h *PoolHandler) PoolStatusHandler(w http.ResponseWriter, r *http.Request) {
	free, err := h.pool.FreeCount(r.Context())
	if err != nil {
		h.log.Error("counting free pool records: %v", err)
		http.Error(w, "Failed to count pool", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"free": free})
}
