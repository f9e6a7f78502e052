package repository

import (
	"context"

	"github.com/iconidentify/clipbatch/internal/domain"
)

// OutcomeRepository persists per-URL download outcomes.
type OutcomeRepository interface {
	// InsertOutcome appends one outcome to its session's history.
	// Safe for concurrent use.
	InsertOutcome(ctx context.Context, outcome domain.Outcome) error

	// ListOutcomes returns a session's history in insertion order.
	ListOutcomes(ctx context.Context, session domain.SessionID) ([]domain.Outcome, error)

	// ClearOutcomes deletes a session's history.
	ClearOutcomes(ctx context.Context, session domain.SessionID) error
}

// LinkRepository holds the link set uploaded by each session.
type LinkRepository interface {
	// ReplaceLinks swaps a session's link set for links.
	ReplaceLinks(ctx context.Context, session domain.SessionID, links []string) error

	// ListLinks returns a session's link set in upload order.
	ListLinks(ctx context.Context, session domain.SessionID) ([]string, error)
}

// Store is a persistence backend for outcomes and links.
type Store interface {
	OutcomeRepository
	LinkRepository

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
