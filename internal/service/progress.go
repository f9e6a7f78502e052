package service

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/clipbatch/internal/domain"
)

// ErrSinkClosed is returned by a sink whose consumer went away.
var ErrSinkClosed = errors.New("progress sink closed")

// ProgressSink receives batch events. Implementations need not be safe for
// concurrent use; BatchService calls Send from a single goroutine.
type ProgressSink interface {
	// Send delivers one event. Errors are logged and otherwise ignored.
	Send(event domain.BatchEvent) error

	// Done is closed when the consumer is no longer listening.
	Done() <-chan struct{}
}

// Releaser is implemented by sinks that want to know when a batch will
// send nothing more.
type Releaser interface {
	Release()
}

// ChannelSink delivers events over a Go channel.
type ChannelSink struct {
	events chan domain.BatchEvent
	done   chan struct{}

	closeOnce   sync.Once
	releaseOnce sync.Once
}

// NewChannelSink creates a sink with the given channel buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{
		events: make(chan domain.BatchEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Send blocks until the event is buffered or the consumer closes the sink.
func (s *ChannelSink) Send(event domain.BatchEvent) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.events <- event:
		return nil
	case <-s.done:
		return ErrSinkClosed
	}
}

// Done is closed once the consumer calls Close.
func (s *ChannelSink) Done() <-chan struct{} {
	return s.done
}

// Events returns the event stream. It is closed after the final event.
func (s *ChannelSink) Events() <-chan domain.BatchEvent {
	return s.events
}

// Close tells the producer that nobody is listening anymore.
func (s *ChannelSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Release closes the event stream.
func (s *ChannelSink) Release() {
	s.releaseOnce.Do(func() { close(s.events) })
}

// guardedSink queues events for a caller's sink and delivers them from
// its own goroutine, so a slow or stalled consumer never holds up the
// workers or the pinger. A nil *guardedSink drops everything.
type guardedSink struct {
	sink         ProgressSink
	logger       *slog.Logger
	drainTimeout time.Duration

	mu     sync.Mutex
	queue  []domain.BatchEvent
	closed bool

	wake    chan struct{}
	drained chan struct{}
}

func newGuardedSink(sink ProgressSink, drainTimeout time.Duration, logger *slog.Logger) *guardedSink {
	if sink == nil {
		return nil
	}
	g := &guardedSink{
		sink:         sink,
		logger:       logger,
		drainTimeout: drainTimeout,
		wake:         make(chan struct{}, 1),
		drained:      make(chan struct{}),
	}
	go g.drain()
	return g
}

// send enqueues an event and returns immediately.
func (g *guardedSink) send(event domain.BatchEvent) {
	if g == nil {
		return
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.queue = append(g.queue, event)
	g.mu.Unlock()
	g.notify()
}

func (g *guardedSink) notify() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *guardedSink) drain() {
	defer close(g.drained)

	for range g.wake {
		g.mu.Lock()
		events := g.queue
		g.queue = nil
		closed := g.closed
		g.mu.Unlock()

		for _, event := range events {
			g.deliver(event)
		}

		if closed {
			if r, ok := g.sink.(Releaser); ok {
				r.Release()
			}
			return
		}
	}
}

func (g *guardedSink) deliver(event domain.BatchEvent) {
	select {
	case <-g.sink.Done():
		return
	default:
	}
	if err := g.sink.Send(event); err != nil {
		g.logger.Debug("progress sink send failed", "event", event.Type, "error", err)
	}
}

func (g *guardedSink) done() <-chan struct{} {
	if g == nil {
		return nil
	}
	return g.sink.Done()
}

// release stops accepting events and waits up to the drain timeout for
// queued ones to be delivered. The sink's Release runs after the last
// delivery, even when the wait gives up.
func (g *guardedSink) release() {
	if g == nil {
		return
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	pending := len(g.queue)
	g.mu.Unlock()
	g.notify()

	if g.drainTimeout <= 0 {
		<-g.drained
		return
	}

	timer := time.NewTimer(g.drainTimeout)
	defer timer.Stop()

	select {
	case <-g.drained:
	case <-timer.C:
		g.logger.Warn("progress consumer is not reading, abandoning remaining events",
			"queued", pending,
			"timeout", g.drainTimeout,
		)
	}
}
