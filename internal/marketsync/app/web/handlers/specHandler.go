package handlers

import (
	"encoding/json"
	"net/http"

	"gomarketfeed_api/internal/marketsync/business/services/specs"
	"gomarketfeed_api/pkg/dbconnect"
	"gomarketfeed_api/pkg/logger"
)

type invalidateRequest struct {
	Category string `json:"category"`
}

// SpecHandler -- админские ручки кэша спецификаций.
type SpecHandler struct {
	dbconnect.Database
	specs *specs.SpecService
	log   logger.Logger
}

func NewSpecHandler(connector dbconnect.Database, specService *specs.SpecService, log logger.Logger) *SpecHandler {
	return &SpecHandler{Database: connector, specs: specService, log: log}
}

func (h *SpecHandler) Ping() error {
	return h.Database.Ping()
}

func (h *SpecHandler) InvalidateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.specs.Invalidate(req.Category)
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": req.Category})
}

// CategorySpecsHandler отдаёт текущую схему категории: удобно смотреть,
// что именно закэшировано, когда валидация ведёт себя неожиданно.
func (h *SpecHandler) CategorySpecsHandler(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		http.Error(w, "Query parameter 'category' is required", http.StatusBadRequest)
		return
	}

	categorySpecs, err := h.specs.CategorySpecs(r.Context(), category)
	if err != nil {
		h.log.Error("loading specs for category %q: %v", category, err)
		http.Error(w, "Failed to load category specs", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, categorySpecs)
}
