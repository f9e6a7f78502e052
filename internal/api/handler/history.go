package handler

import (
	"log/slog"
	"net/http"

	"github.com/iconidentify/clipbatch/internal/domain"
)

// HistoryResponse lists the outcomes recorded for a session.
type HistoryResponse struct {
	Outcomes []domain.Outcome `json:"outcomes"`
	Count    int              `json:"count"`
}

// HistoryHandler exposes the session's download history.
type HistoryHandler struct {
	batches BatchRunner
	logger  *slog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(batches BatchRunner, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		batches: batches,
		logger:  logger,
	}
}

// List handles GET /api/v1/downloads.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}

	outcomes, err := h.batches.History(r.Context(), sid)
	if err != nil {
		h.logger.Error("list history failed", "session_id", sid, "error", err)
		writeDomainError(w, err)
		return
	}
	if outcomes == nil {
		outcomes = []domain.Outcome{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Outcomes: outcomes, Count: len(outcomes)})
}

// Clear handles DELETE /api/v1/downloads.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}

	if err := h.batches.ClearHistory(r.Context(), sid); err != nil {
		h.logger.Error("clear history failed", "session_id", sid, "error", err)
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
