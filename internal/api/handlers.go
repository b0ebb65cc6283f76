package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ggpdev/ggstore-crawler/internal/ledger"
	"github.com/ggpdev/ggstore-crawler/internal/storage"
)

// Handlers serves read-mostly views over the ledger and metadata store for
// operators. The crawl itself runs out of process; this surface only
// inspects and resolves.
type Handlers struct {
	ledger *ledger.Manager
	store  *storage.MetadataStore
	logger *slog.Logger
}

func NewHandlers(lm *ledger.Manager, store *storage.MetadataStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		ledger: lm,
		store:  store,
		logger: logger,
	}
}

// StatusResponse is the ledger summary returned by GET /status.
type StatusResponse struct {
	Project        string              `json:"project"`
	TargetSite     string              `json:"target_site"`
	UpdatedAt      string              `json:"updated_at"`
	CurrentSession *ledger.Session     `json:"current_session,omitempty"`
	Stats          ledger.Stats        `json:"stats"`
	MetadataSync   ledger.MetadataSync `json:"metadata_sync"`
}

func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	state := h.ledger.Snapshot()

	h.respondJSON(w, http.StatusOK, StatusResponse{
		Project:        state.Project,
		TargetSite:     state.TargetSite,
		UpdatedAt:      state.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		CurrentSession: state.CurrentSession,
		Stats:          state.Stats,
		MetadataSync:   state.MetadataSync,
	})
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	state := h.ledger.Snapshot()

	jobs := state.Jobs
	if jobs == nil {
		jobs = []*ledger.Job{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	state := h.ledger.Snapshot()
	for _, job := range state.Jobs {
		if job.ID == jobID {
			h.respondJSON(w, http.StatusOK, job)
			return
		}
	}

	h.respondError(w, http.StatusNotFound, "job not found")
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	result := h.store.Result()

	h.respondJSON(w, http.StatusOK, map[string]any{
		"products":       result.Products,
		"total_products": result.TotalProducts,
		"total_images":   result.TotalImages,
	})
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	product, ok := h.store.Get(productID)
	if !ok {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// ListErrors returns unresolved error entries, newest last, capped by the
// limit query parameter (default 10).
func (h *Handlers) ListErrors(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	unresolved := h.ledger.UnresolvedErrors()
	total := len(unresolved)
	if len(unresolved) > limit {
		unresolved = unresolved[:limit]
	}
	if unresolved == nil {
		unresolved = []*ledger.ErrorEntry{}
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"errors": unresolved,
		"total":  total,
	})
}

func (h *Handlers) ResolveError(w http.ResponseWriter, r *http.Request) {
	errorID := chi.URLParam(r, "errorID")

	found, err := h.ledger.ResolveError(errorID)
	if err != nil {
		h.logger.Error("failed to resolve error", "id", errorID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to persist resolution")
		return
	}
	if !found {
		h.respondError(w, http.StatusNotFound, "error entry not found")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"id":       errorID,
		"resolved": true,
	})
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.ledger.RecomputeStats())
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
