package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/iconidentify/clipbatch/internal/config"
	"github.com/iconidentify/clipbatch/internal/domain"
	"github.com/iconidentify/clipbatch/internal/downloader"
	"github.com/iconidentify/clipbatch/internal/repository"
	"github.com/iconidentify/clipbatch/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fetchBehavior decides what the mock fetcher does for one URL.
type fetchBehavior struct {
	files []string // written into the output directory
	err   error
	delay time.Duration
	panic bool
}

// mockFetcher implements downloader.Fetcher for testing.
type mockFetcher struct {
	fs afero.Fs

	mu        sync.Mutex
	behaviors map[string]fetchBehavior
	calls     []fetchCall
	running   int
	peak      int
}

type fetchCall struct {
	url  string
	opts downloader.Options
}

func newMockFetcher(fs afero.Fs) *mockFetcher {
	return &mockFetcher{fs: fs, behaviors: make(map[string]fetchBehavior)}
}

func (m *mockFetcher) on(url string, b fetchBehavior) *mockFetcher {
	m.behaviors[url] = b
	return m
}

func (m *mockFetcher) Fetch(ctx context.Context, url string, opts downloader.Options) error {
	m.mu.Lock()
	m.calls = append(m.calls, fetchCall{url: url, opts: opts})
	m.running++
	m.peak = max(m.peak, m.running)
	b, ok := m.behaviors[url]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
	}()

	if !ok {
		b = fetchBehavior{files: []string{filepath.Base(url) + ".mp4"}}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.panic {
		panic("fetcher exploded")
	}
	if b.err != nil {
		return domain.NewFetchError(url, "yt-dlp", b.err)
	}
	for _, name := range b.files {
		if err := afero.WriteFile(m.fs, filepath.Join(opts.OutputDir, name), []byte(url), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockFetcher) callFor(url string) (fetchCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c.url == url {
			return c, true
		}
	}
	return fetchCall{}, false
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockOutcomeStore wraps the in-memory store with call counters and
// injectable errors.
type mockOutcomeStore struct {
	*repository.InMemoryStore

	mu          sync.Mutex
	insertErr   error
	clearErr    error
	insertCalls int
	clearCalls  int
}

func newMockOutcomeStore() *mockOutcomeStore {
	return &mockOutcomeStore{InMemoryStore: repository.NewInMemoryStore()}
}

func (m *mockOutcomeStore) InsertOutcome(ctx context.Context, o domain.Outcome) error {
	m.mu.Lock()
	m.insertCalls++
	err := m.insertErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.InMemoryStore.InsertOutcome(ctx, o)
}

func (m *mockOutcomeStore) ClearOutcomes(ctx context.Context, session domain.SessionID) error {
	m.mu.Lock()
	m.clearCalls++
	err := m.clearErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.InMemoryStore.ClearOutcomes(ctx, session)
}

func (m *mockOutcomeStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCalls + m.clearCalls
}

var errNetwork = errors.New("network unreachable")

type testEnv struct {
	fs      afero.Fs
	fetcher *mockFetcher
	store   *mockOutcomeStore
	library *storage.Library
	svc     *BatchService
}

func newTestEnv(batchCfg config.BatchConfig) *testEnv {
	fs := afero.NewMemMapFs()
	env := &testEnv{
		fs:      fs,
		fetcher: newMockFetcher(fs),
		store:   newMockOutcomeStore(),
		library: storage.NewLibrary(fs, "/data"),
	}
	if batchCfg.Concurrency == 0 {
		batchCfg.Concurrency = 3
	}
	env.svc = NewBatchService(env.store, env.fetcher, env.library, batchCfg,
		config.StorageConfig{MaxSessionBytes: 5 << 30}, testLogger())
	return env
}

// collect drains a channel sink until it is released.
func collect(sink *ChannelSink) <-chan []domain.BatchEvent {
	out := make(chan []domain.BatchEvent, 1)
	go func() {
		var events []domain.BatchEvent
		for ev := range sink.Events() {
			events = append(events, ev)
		}
		out <- events
	}()
	return out
}
