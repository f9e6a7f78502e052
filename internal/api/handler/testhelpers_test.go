package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	mw "github.com/iconidentify/clipbatch/internal/api/middleware"
	"github.com/iconidentify/clipbatch/internal/domain"
	"github.com/iconidentify/clipbatch/internal/service"
)

const testSession domain.SessionID = "6f1c2b8e-4c1a-4f7e-9a43-0d3d1f6b2a10"

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withSession attaches the test session the way the session middleware would.
func withSession(req *http.Request) *http.Request {
	return req.WithContext(mw.WithSession(req.Context(), testSession))
}

// mockLinkStore is a test implementation of LinkStore.
type mockLinkStore struct {
	mu          sync.Mutex
	links       map[domain.SessionID][]string
	uploadErr   error
	listErr     error
	uploadCalls int
	lastName    string
	lastBody    []byte
}

func newMockLinkStore() *mockLinkStore {
	return &mockLinkStore{links: make(map[domain.SessionID][]string)}
}

func (m *mockLinkStore) Upload(ctx context.Context, session domain.SessionID, filename string, r io.Reader) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadCalls++
	m.lastName = filename
	m.lastBody, _ = io.ReadAll(r)
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	links := []string{"https://youtu.be/a", "https://x.com/u/status/1"}
	m.links[session] = links
	return links, nil
}

func (m *mockLinkStore) Links(ctx context.Context, session domain.SessionID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.links[session], nil
}

// mockBatchRunner is a test implementation of BatchRunner. Run reports one
// progress event per URL to the request's sink, then a complete event.
type mockBatchRunner struct {
	mu         sync.Mutex
	runErr     error
	submitErr  error
	historyErr error
	clearErr   error
	history    []domain.Outcome
	lastReq    service.BatchRequest
	runCtx     context.Context
	runCalls   int
	submits    int
	clears     int
}

func (m *mockBatchRunner) outcomes(req service.BatchRequest) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(req.URLs))
	for i, url := range req.URLs {
		if i%2 == 0 {
			outcomes[i] = domain.NewSuccessOutcome(domain.OutcomeID(url), req.SessionID, "b1", url, i+1, []string{"clip.mp4"})
		} else {
			outcomes[i] = domain.NewFailedOutcome(domain.OutcomeID(url), req.SessionID, "b1", url, i+1, errors.New("boom"))
		}
	}
	return outcomes
}

func (m *mockBatchRunner) Run(ctx context.Context, req service.BatchRequest) ([]domain.Outcome, error) {
	m.mu.Lock()
	m.runCalls++
	m.lastReq = req
	m.runCtx = ctx
	err := m.runErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(req.URLs) == 0 {
		return nil, domain.ErrNoLinks
	}

	outcomes := m.outcomes(req)
	if req.Sink != nil {
		req.Sink.Send(domain.NewPingEvent("b1"))
		for i, o := range outcomes {
			req.Sink.Send(domain.NewProgressEvent("b1", o, i+1, len(outcomes)))
		}
		req.Sink.Send(domain.NewCompleteEvent("b1", outcomes))
	}
	return outcomes, nil
}

func (m *mockBatchRunner) Submit(ctx context.Context, req service.BatchRequest) (domain.BatchID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits++
	m.lastReq = req
	if m.submitErr != nil {
		return "", m.submitErr
	}
	if len(req.URLs) == 0 {
		return "", domain.ErrNoLinks
	}
	return "b-async", nil
}

func (m *mockBatchRunner) History(ctx context.Context, session domain.SessionID) ([]domain.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return m.history, nil
}

func (m *mockBatchRunner) ClearHistory(ctx context.Context, session domain.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if m.clearErr != nil {
		return m.clearErr
	}
	m.history = nil
	return nil
}

// mockPinger is a test implementation of Pinger.
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

// mockProbe is a test implementation of BinaryProbe.
type mockProbe struct {
	available bool
}

func (m *mockProbe) Available() bool {
	return m.available
}

// multipartUpload builds a request carrying content under the given form field.
func multipartUpload(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/links", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return withSession(req)
}
