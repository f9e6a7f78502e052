package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrShutdownTimeout is returned when work doesn't finish within timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// Task processes the job at index (0-based) of a run.
type Task func(ctx context.Context, index int)

// Config holds worker pool configuration.
type Config struct {
	Workers       int
	DispatchDelay time.Duration
}

// Pool runs the jobs of one run with at most Workers in flight. Jobs are
// handed out in order with a delay between consecutive dispatches.
type Pool struct {
	workers       int
	dispatchDelay time.Duration
	logger        *slog.Logger
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.DispatchDelay < 0 {
		cfg.DispatchDelay = 0
	}

	return &Pool{
		workers:       cfg.Workers,
		dispatchDelay: cfg.DispatchDelay,
		logger:        logger,
	}
}

// Workers returns the number of concurrent workers per run.
func (p *Pool) Workers() int {
	return p.workers
}

// Run dispatches jobs 0..n-1 and blocks until every task has returned.
// A dispatch waits for a free worker once all of them are busy, never for
// a particular task. A done ctx only skips the remaining delays; every job
// is still dispatched.
func (p *Pool) Run(ctx context.Context, n int, task Task) {
	if n <= 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i := 0; i < n; i++ {
		if i > 0 {
			p.sleep(ctx)
		}

		index := i
		g.Go(func() error {
			task(ctx, index)
			return nil
		})
		p.logger.Debug("job dispatched", "index", index, "of", n)
	}

	_ = g.Wait()
}

func (p *Pool) sleep(ctx context.Context) {
	if p.dispatchDelay <= 0 {
		return
	}
	timer := time.NewTimer(p.dispatchDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Group tracks work running detached from any request so shutdown can
// wait for it.
type Group struct {
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewGroup creates a new Group.
func NewGroup(logger *slog.Logger) *Group {
	return &Group{logger: logger}
}

// Go runs fn in a new goroutine.
func (g *Group) Go(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Stop waits for all running work, up to timeout.
func (g *Group) Stop(timeout time.Duration) error {
	g.logger.Info("waiting for background work")

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Info("background work finished")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
