package handler

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/clipbatch/internal/storage"
)

// FilesResponse lists the finished files of a session.
type FilesResponse struct {
	Files []storage.FileEntry `json:"files"`
	Count int                 `json:"count"`
}

// FilesHandler lists and serves downloaded files.
type FilesHandler struct {
	library *storage.Library
	logger  *slog.Logger
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(library *storage.Library, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		library: library,
		logger:  logger,
	}
}

// List handles GET /api/v1/files.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}

	files, err := h.library.List(sid)
	if err != nil {
		h.logger.Error("list files failed", "session_id", sid, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FilesResponse{Files: files, Count: len(files)})
}

// Serve handles GET /api/v1/files/{filename}.
func (h *FilesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "filename")
	f, info, err := h.library.Open(sid, name)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("open file failed", "session_id", sid, "file", name, "error", err)
		}
		writeDomainError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
