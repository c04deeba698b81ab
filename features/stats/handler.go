// Package stats reports corpus-level counters.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"docqa/internal/middleware"
	"docqa/internal/vector"
)

type DocumentRepo interface {
	Count(ctx context.Context) (int, error)
}

// IndexLoader yields the persisted index; a missing index means an empty
// corpus, not an error.
type IndexLoader interface {
	Load() (*vector.Index, error)
}

type Handler struct {
	docRepo DocumentRepo
	index   IndexLoader
}

func NewHandler(d DocumentRepo, ix IndexLoader) *Handler {
	return &Handler{docRepo: d, index: ix}
}

type StatsResponse struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.docRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	chunks := 0
	ix, err := h.index.Load()
	switch {
	case errors.Is(err, vector.ErrIndexNotFound):
		// Nothing ingested yet.
	case err != nil:
		slog.ErrorContext(ctx, "failed to load index", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	default:
		chunks = ix.Len()
	}

	resp := StatsResponse{Documents: docs, Chunks: chunks}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
