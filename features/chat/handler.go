// Package chat exposes the question-answering and session endpoints.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"docqa/internal/memory"
	"docqa/internal/middleware"
)

// DefaultSessionID is used when the caller does not name a session.
const DefaultSessionID = "default"

type Answerer interface {
	Answer(ctx context.Context, sessionID, query string) (string, []string, error)
}

type Handler struct {
	answerer     Answerer
	memory       memory.Store
	memoryWindow int
}

func NewHandler(a Answerer, mem memory.Store, memoryWindow int) *Handler {
	return &Handler{answerer: a, memory: mem, memoryWindow: memoryWindow}
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Ask answers a question grounded in the ingested corpus.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(ctx, w, "BAD_REQUEST", "query is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}

	answer, sources, err := h.answerer.Answer(ctx, req.SessionID, req.Query)
	if err != nil {
		slog.ErrorContext(ctx, "failed to answer query", "error", err, "session_id", req.SessionID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if sources == nil {
		sources = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(askResponse{Answer: answer, Sources: sources}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

// ResetSession clears a session's conversation memory. Resetting a session
// that never existed is not an error.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetRequest
	if r.Body != nil {
		// An empty body means the default session.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}

	h.memory.Reset(req.SessionID)
	slog.InfoContext(ctx, "session cleared", "session_id", req.SessionID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "session cleared"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

type historyResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []memory.Turn `json:"turns"`
}

// History returns the most recent turns of a session.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	turns := h.memory.Recent(sessionID, h.memoryWindow)
	if turns == nil {
		turns = []memory.Turn{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(historyResponse{SessionID: sessionID, Turns: turns}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
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
