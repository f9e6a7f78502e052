package repository

import (
	"context"
	"sync"

	"github.com/iconidentify/clipbatch/internal/domain"
)

// InMemoryStore implements Store using in-memory storage.
type InMemoryStore struct {
	mu       sync.RWMutex
	outcomes map[domain.SessionID][]domain.Outcome
	links    map[domain.SessionID][]string
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		outcomes: make(map[domain.SessionID][]domain.Outcome),
		links:    make(map[domain.SessionID][]string),
	}
}

// InsertOutcome appends one outcome to its session's history.
func (s *InMemoryStore) InsertOutcome(ctx context.Context, outcome domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome.Files = append([]string(nil), outcome.Files...)
	s.outcomes[outcome.SessionID] = append(s.outcomes[outcome.SessionID], outcome)
	return nil
}

// ListOutcomes returns a session's history in insertion order.
func (s *InMemoryStore) ListOutcomes(ctx context.Context, session domain.SessionID) ([]domain.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.outcomes[session]
	result := make([]domain.Outcome, len(stored))
	for i, o := range stored {
		o.Files = append([]string(nil), o.Files...)
		result[i] = o
	}
	return result, nil
}

// ClearOutcomes deletes a session's history.
func (s *InMemoryStore) ClearOutcomes(ctx context.Context, session domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.outcomes, session)
	return nil
}

// ReplaceLinks swaps a session's link set.
func (s *InMemoryStore) ReplaceLinks(ctx context.Context, session domain.SessionID, links []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links[session] = append([]string(nil), links...)
	return nil
}

// ListLinks returns a session's link set.
func (s *InMemoryStore) ListLinks(ctx context.Context, session domain.SessionID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.links[session]...), nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}
