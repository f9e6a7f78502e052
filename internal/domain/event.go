package domain

import (
	"time"
)

// BatchEventType distinguishes the events emitted while a batch runs.
type BatchEventType string

const (
	// BatchEventProgress is sent once per completed URL.
	BatchEventProgress BatchEventType = "progress"
	// BatchEventComplete is sent once after every URL has an outcome.
	BatchEventComplete BatchEventType = "complete"
	// BatchEventPing is a liveness signal for long-lived connections.
	BatchEventPing BatchEventType = "ping"
)

// BatchEvent is a notification sent to a progress sink.
type BatchEvent struct {
	Type      BatchEventType `json:"type"`
	BatchID   BatchID        `json:"batch_id"`
	URL       string         `json:"url,omitempty"`
	Status    OutcomeStatus  `json:"status,omitempty"`
	Error     string         `json:"error,omitempty"`
	Current   int            `json:"current,omitempty"`   // 1-based index assigned at submission
	Completed int            `json:"completed,omitempty"` // URLs finished so far
	Total     int            `json:"total,omitempty"`
	Outcomes  []Outcome      `json:"outcomes,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewProgressEvent builds the event for one finished URL.
func NewProgressEvent(batch BatchID, outcome Outcome, completed, total int) BatchEvent {
	return BatchEvent{
		Type:      BatchEventProgress,
		BatchID:   batch,
		URL:       outcome.URL,
		Status:    outcome.Status,
		Error:     outcome.Error,
		Current:   outcome.Index,
		Completed: completed,
		Total:     total,
		Timestamp: time.Now(),
	}
}

// NewCompleteEvent builds the terminal event carrying all outcomes.
func NewCompleteEvent(batch BatchID, outcomes []Outcome) BatchEvent {
	return BatchEvent{
		Type:      BatchEventComplete,
		BatchID:   batch,
		Completed: len(outcomes),
		Total:     len(outcomes),
		Outcomes:  outcomes,
		Timestamp: time.Now(),
	}
}

// NewPingEvent builds a liveness event.
func NewPingEvent(batch BatchID) BatchEvent {
	return BatchEvent{
		Type:      BatchEventPing,
		BatchID:   batch,
		Timestamp: time.Now(),
	}
}
