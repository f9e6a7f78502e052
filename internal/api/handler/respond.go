package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	mw "github.com/iconidentify/clipbatch/internal/api/middleware"
	"github.com/iconidentify/clipbatch/internal/domain"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoLinks),
		errors.Is(err, domain.ErrUnsupportedFile),
		errors.Is(err, domain.ErrMissingColumn),
		errors.Is(err, domain.ErrUnreadableSpreadsheet),
		errors.Is(err, domain.ErrInvalidFilename),
		errors.Is(err, domain.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFileNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with its mapped status. Internal errors are
// not echoed to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// session returns the request's session id, answering 500 when the
// session middleware did not run.
func session(w http.ResponseWriter, r *http.Request) (domain.SessionID, bool) {
	id, ok := mw.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "session not established")
		return "", false
	}
	return id, true
}
