package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/clipbatch/internal/config"
	"github.com/iconidentify/clipbatch/internal/domain"
	"github.com/iconidentify/clipbatch/internal/downloader"
	"github.com/iconidentify/clipbatch/internal/repository"
	"github.com/iconidentify/clipbatch/internal/storage"
	"github.com/iconidentify/clipbatch/internal/worker"
)

// BatchRequest describes one batch run.
type BatchRequest struct {
	SessionID domain.SessionID
	URLs      []string
	Sink      ProgressSink // optional

	// ClearHistory drops the session's previous outcomes before the run.
	ClearHistory bool
}

// defaultDrainTimeout bounds how long a finished batch waits for its
// progress consumer to take the remaining events.
const defaultDrainTimeout = 10 * time.Second

// unitResult is what a single URL produced: files on success, err otherwise.
type unitResult struct {
	files []string
	err   error
}

// BatchService downloads lists of URLs with bounded concurrency and records
// one outcome per URL.
type BatchService struct {
	outcomes   repository.OutcomeRepository
	fetcher    downloader.Fetcher
	library    *storage.Library
	quota      *storage.QuotaEnforcer
	finalizer  *storage.Finalizer
	pool       *worker.Pool
	background *worker.Group

	maxSessionBytes int64
	pingInterval    time.Duration
	drainTimeout    time.Duration
	logger          *slog.Logger
}

// NewBatchService creates a new batch service.
func NewBatchService(
	outcomes repository.OutcomeRepository,
	fetcher downloader.Fetcher,
	library *storage.Library,
	batchCfg config.BatchConfig,
	storageCfg config.StorageConfig,
	logger *slog.Logger,
) *BatchService {
	drainTimeout := batchCfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}

	return &BatchService{
		outcomes:  outcomes,
		fetcher:   fetcher,
		library:   library,
		quota:     storage.NewQuotaEnforcer(library.Fs(), logger),
		finalizer: storage.NewFinalizer(library.Fs()),
		pool: worker.NewPool(worker.Config{
			Workers:       batchCfg.Concurrency,
			DispatchDelay: batchCfg.DispatchDelay,
		}, logger),
		background:      worker.NewGroup(logger),
		maxSessionBytes: storageCfg.MaxSessionBytes,
		pingInterval:    batchCfg.PingInterval,
		drainTimeout:    drainTimeout,
		logger:          logger,
	}
}

// Run downloads every URL of the request and returns the outcomes in input
// order. Per-URL failures are reported as failed outcomes; only setup
// failures are returned as errors.
func (s *BatchService) Run(ctx context.Context, req BatchRequest) ([]domain.Outcome, error) {
	return s.run(ctx, newBatchID(), req)
}

// Submit validates the request and runs it in the background, detached
// from ctx. Progress is observable through the outcome history.
func (s *BatchService) Submit(ctx context.Context, req BatchRequest) (domain.BatchID, error) {
	if len(req.URLs) == 0 {
		return "", domain.ErrNoLinks
	}
	if _, err := s.library.SessionDir(req.SessionID); err != nil {
		return "", err
	}

	batchID := newBatchID()
	detached := context.WithoutCancel(ctx)

	s.background.Go(func() {
		if _, err := s.run(detached, batchID, req); err != nil {
			s.logger.Error("background batch failed",
				"batch_id", batchID,
				"session_id", req.SessionID,
				"error", err,
			)
		}
	})

	return batchID, nil
}

// Wait blocks until background batches finish or timeout elapses.
func (s *BatchService) Wait(timeout time.Duration) error {
	return s.background.Stop(timeout)
}

// History returns the outcomes recorded for a session.
func (s *BatchService) History(ctx context.Context, session domain.SessionID) ([]domain.Outcome, error) {
	return s.outcomes.ListOutcomes(ctx, session)
}

// ClearHistory deletes the outcomes recorded for a session.
func (s *BatchService) ClearHistory(ctx context.Context, session domain.SessionID) error {
	return s.outcomes.ClearOutcomes(ctx, session)
}

func (s *BatchService) run(ctx context.Context, batchID domain.BatchID, req BatchRequest) ([]domain.Outcome, error) {
	logger := s.logger.With("batch_id", batchID, "session_id", req.SessionID)

	sink := newGuardedSink(req.Sink, s.drainTimeout, logger)
	defer sink.release()

	if len(req.URLs) == 0 {
		return nil, domain.ErrNoLinks
	}

	sessionDir, err := s.library.EnsureSessionDir(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("prepare session directory: %w", err)
	}

	s.quota.Enforce(sessionDir, s.maxSessionBytes)

	if req.ClearHistory {
		if err := s.outcomes.ClearOutcomes(ctx, req.SessionID); err != nil {
			return nil, fmt.Errorf("clear history: %w", err)
		}
	}

	stopPinger := s.startPinger(sink, batchID)
	defer stopPinger()

	total := len(req.URLs)
	outcomes := make([]domain.Outcome, total)

	var (
		mu        sync.Mutex
		completed int
	)

	logger.Info("batch started", "urls", total, "workers", s.pool.Workers())
	start := time.Now()

	s.pool.Run(ctx, total, func(ctx context.Context, i int) {
		url := req.URLs[i]
		id := domain.OutcomeID(uuid.New().String())

		res := s.runUnit(ctx, logger, sessionDir, id, url)

		var outcome domain.Outcome
		if res.err != nil {
			outcome = domain.NewFailedOutcome(id, req.SessionID, batchID, url, i+1, res.err)
		} else {
			outcome = domain.NewSuccessOutcome(id, req.SessionID, batchID, url, i+1, res.files)
		}

		if err := s.outcomes.InsertOutcome(context.WithoutCancel(ctx), outcome); err != nil {
			logger.Error("failed to persist outcome", "url", url, "error", err)
		}

		outcomes[i] = outcome

		mu.Lock()
		completed++
		sink.send(domain.NewProgressEvent(batchID, outcome, completed, total))
		mu.Unlock()
	})

	stopPinger()
	sink.send(domain.NewCompleteEvent(batchID, outcomes))

	succeeded := 0
	for i := range outcomes {
		if outcomes[i].Succeeded() {
			succeeded++
		}
	}
	logger.Info("batch finished",
		"urls", total,
		"succeeded", succeeded,
		"failed", total-succeeded,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return outcomes, nil
}

// runUnit fetches one URL into a private staging directory and moves the
// result into the session directory. It never panics.
func (s *BatchService) runUnit(ctx context.Context, logger *slog.Logger, sessionDir string, id domain.OutcomeID, url string) (res unitResult) {
	staging := storage.StagingDir(sessionDir, id.String())
	logger = logger.With("url", url, "outcome_id", id)

	defer func() {
		if r := recover(); r != nil {
			s.finalizer.Discard(staging)
			logger.Error("download panicked", "panic", r)
			res = unitResult{err: fmt.Errorf("%w: panic: %v", domain.ErrFetchFailed, r)}
		}
	}()

	platform := domain.Classify(url)
	opts := downloader.BuildOptions(platform, staging)

	logger.Info("downloading", "platform", platform)

	if err := s.library.Fs().MkdirAll(staging, 0755); err != nil {
		return unitResult{err: fmt.Errorf("create staging directory: %w", err)}
	}

	if err := s.fetcher.Fetch(ctx, url, opts); err != nil {
		s.finalizer.Discard(staging)
		logger.Warn("download failed", "error", err)
		return unitResult{err: err}
	}

	files, err := s.finalizer.Finalize(staging, sessionDir)
	if err != nil {
		logger.Warn("download produced no usable file", "error", err)
		return unitResult{err: domain.NewFetchError(url, "verify", err)}
	}

	logger.Info("download completed", "files", files)
	return unitResult{files: files}
}

// startPinger sends ping events until the returned func is called or the
// sink's consumer goes away. The returned func is idempotent and waits for
// the pinger to exit.
func (s *BatchService) startPinger(sink *guardedSink, batchID domain.BatchID) func() {
	if sink == nil || s.pingInterval <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)

		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-sink.done():
				return
			case <-ticker.C:
				sink.send(domain.NewPingEvent(batchID))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-exited
		})
	}
}

func newBatchID() domain.BatchID {
	return domain.BatchID(uuid.New().String())
}
