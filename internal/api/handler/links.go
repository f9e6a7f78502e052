package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/iconidentify/clipbatch/internal/domain"
)

// LinkStore is the link operations the handlers depend on.
type LinkStore interface {
	Upload(ctx context.Context, session domain.SessionID, filename string, r io.Reader) ([]string, error)
	Links(ctx context.Context, session domain.SessionID) ([]string, error)
}

// LinksResponse lists the session's link set.
type LinksResponse struct {
	Links []string `json:"links"`
	Count int      `json:"count"`
}

// LinksHandler handles spreadsheet uploads.
type LinksHandler struct {
	links          LinkStore
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewLinksHandler creates a new links handler.
func NewLinksHandler(links LinkStore, maxUploadBytes int64, logger *slog.Logger) *LinksHandler {
	return &LinksHandler{
		links:          links,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Upload handles POST /api/v1/links.
func (h *LinksHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	links, err := h.links.Upload(r.Context(), sid, header.Filename, file)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("upload links failed", "session_id", sid, "error", err)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LinksResponse{Links: links, Count: len(links)})
}

// List handles GET /api/v1/links.
func (h *LinksHandler) List(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}

	links, err := h.links.Links(r.Context(), sid)
	if err != nil {
		h.logger.Error("list links failed", "session_id", sid, "error", err)
		writeDomainError(w, err)
		return
	}
	if links == nil {
		links = []string{}
	}

	writeJSON(w, http.StatusOK, LinksResponse{Links: links, Count: len(links)})
}
