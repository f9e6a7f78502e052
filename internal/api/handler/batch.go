package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/iconidentify/clipbatch/internal/domain"
	"github.com/iconidentify/clipbatch/internal/service"
)

// BatchRunner is the batch operations the handlers depend on.
type BatchRunner interface {
	Run(ctx context.Context, req service.BatchRequest) ([]domain.Outcome, error)
	Submit(ctx context.Context, req service.BatchRequest) (domain.BatchID, error)
	History(ctx context.Context, session domain.SessionID) ([]domain.Outcome, error)
	ClearHistory(ctx context.Context, session domain.SessionID) error
}

// LinkSource provides a session's stored links.
type LinkSource interface {
	Links(ctx context.Context, session domain.SessionID) ([]string, error)
}

// BatchRequest is the optional JSON body of POST /api/v1/batches.
type BatchRequest struct {
	URLs []string `json:"urls"`
}

// BatchResponse is returned by a synchronous batch.
type BatchResponse struct {
	BatchID   domain.BatchID   `json:"batch_id"`
	Outcomes  []domain.Outcome `json:"outcomes"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// BatchAcceptedResponse is returned by an asynchronous batch.
type BatchAcceptedResponse struct {
	BatchID domain.BatchID `json:"batch_id"`
	Status  string         `json:"status"`
	Total   int            `json:"total"`
}

// BatchHandler starts batches and streams their progress.
type BatchHandler struct {
	batches BatchRunner
	links   LinkSource
	logger  *slog.Logger
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(batches BatchRunner, links LinkSource, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		batches: batches,
		links:   links,
		logger:  logger,
	}
}

// Start handles POST /api/v1/batches.
func (h *BatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}

	var body BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	urls := body.URLs
	if len(urls) == 0 {
		stored, err := h.links.Links(r.Context(), sid)
		if err != nil {
			h.logger.Error("load links failed", "session_id", sid, "error", err)
			writeDomainError(w, err)
			return
		}
		urls = stored
	}

	req := service.BatchRequest{
		SessionID:    sid,
		URLs:         urls,
		ClearHistory: !queryBool(r, "keep_history"),
	}

	if queryBool(r, "async") {
		batchID, err := h.batches.Submit(r.Context(), req)
		if err != nil {
			h.writeBatchError(w, sid, err)
			return
		}
		writeJSON(w, http.StatusAccepted, BatchAcceptedResponse{
			BatchID: batchID,
			Status:  "accepted",
			Total:   len(urls),
		})
		return
	}

	// A client that hangs up must not abort the downloads it started.
	outcomes, err := h.batches.Run(context.WithoutCancel(r.Context()), req)
	if err != nil {
		h.writeBatchError(w, sid, err)
		return
	}

	resp := BatchResponse{Outcomes: outcomes}
	for _, o := range outcomes {
		resp.BatchID = o.BatchID
		if o.Succeeded() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stream handles GET /api/v1/batches/stream. It runs a batch over the
// stored links and reports progress as Server-Sent Events. Closing the
// connection stops the events, not the downloads.
func (h *BatchHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	urls, err := h.links.Links(r.Context(), sid)
	if err != nil {
		h.logger.Error("load links failed", "session_id", sid, "error", err)
		writeDomainError(w, err)
		return
	}
	if len(urls) == 0 {
		writeDomainError(w, domain.ErrNoLinks)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sink := newSSESink(r.Context(), w, flusher)
	defer sink.close()
	sink.comment("connected")

	_, err = h.batches.Run(context.WithoutCancel(r.Context()), service.BatchRequest{
		SessionID:    sid,
		URLs:         urls,
		Sink:         sink,
		ClearHistory: !queryBool(r, "keep_history"),
	})
	if err != nil {
		h.logger.Error("streamed batch failed", "session_id", sid, "error", err)
		sink.writeEvent("error", ErrorResponse{Error: err.Error()})
	}
}

func (h *BatchHandler) writeBatchError(w http.ResponseWriter, sid domain.SessionID, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error("batch failed", "session_id", sid, "error", err)
	}
	writeDomainError(w, err)
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

// sseWriteTimeout bounds a single event write to a slow client.
const sseWriteTimeout = 10 * time.Second

// sseSink writes batch events to an open event stream. Done follows the
// request context; close stops all writes once the handler returns.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	flusher http.Flusher
	ctx     context.Context
	closed  bool
}

func newSSESink(ctx context.Context, w http.ResponseWriter, flusher http.Flusher) *sseSink {
	return &sseSink{
		w:       w,
		rc:      http.NewResponseController(w),
		flusher: flusher,
		ctx:     ctx,
	}
}

// Send implements service.ProgressSink. Pings become comment lines.
func (s *sseSink) Send(event domain.BatchEvent) error {
	if event.Type == domain.BatchEventPing {
		return s.comment("keepalive")
	}
	return s.writeEvent(string(event.Type), event)
}

// Done implements service.ProgressSink.
func (s *sseSink) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *sseSink) writeEvent(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.write(func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
		return err
	})
}

func (s *sseSink) comment(text string) error {
	return s.write(func(w io.Writer) error {
		_, err := fmt.Fprintf(w, ": %s\n\n", text)
		return err
	})
}

func (s *sseSink) write(fn func(w io.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return service.ErrSinkClosed
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}

	// Not every writer supports deadlines; the request context still
	// ends the stream for those.
	_ = s.rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))

	if err := fn(s.w); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// close waits for an in-flight write and rejects all later ones.
func (s *sseSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
