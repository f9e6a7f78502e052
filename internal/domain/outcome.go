package domain

import (
	"time"
)

// SessionID identifies one isolated user context.
type SessionID string

// String returns the string representation of the SessionID.
func (id SessionID) String() string {
	return string(id)
}

// BatchID is a unique identifier for one batch run.
type BatchID string

// String returns the string representation of the BatchID.
func (id BatchID) String() string {
	return string(id)
}

// OutcomeID is a unique identifier for an outcome record.
type OutcomeID string

// String returns the string representation of the OutcomeID.
func (id OutcomeID) String() string {
	return string(id)
}

// OutcomeStatus is the result of attempting one URL.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the persisted result of attempting one URL in a batch.
type Outcome struct {
	ID        OutcomeID     `json:"id"`
	SessionID SessionID     `json:"session_id"`
	BatchID   BatchID       `json:"batch_id"`
	URL       string        `json:"url"`
	Index     int           `json:"index"`
	Platform  Platform      `json:"platform"`
	Status    OutcomeStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	Files     []string      `json:"files,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewSuccessOutcome creates a success outcome for a URL.
func NewSuccessOutcome(id OutcomeID, session SessionID, batch BatchID, url string, index int, files []string) Outcome {
	return Outcome{
		ID:        id,
		SessionID: session,
		BatchID:   batch,
		URL:       url,
		Index:     index,
		Platform:  Classify(url),
		Status:    OutcomeSuccess,
		Files:     files,
		CreatedAt: time.Now(),
	}
}

// NewFailedOutcome creates a failed outcome carrying the error message.
func NewFailedOutcome(id OutcomeID, session SessionID, batch BatchID, url string, index int, err error) Outcome {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Outcome{
		ID:        id,
		SessionID: session,
		BatchID:   batch,
		URL:       url,
		Index:     index,
		Platform:  Classify(url),
		Status:    OutcomeFailed,
		Error:     msg,
		CreatedAt: time.Now(),
	}
}

// Succeeded reports whether the outcome is a success.
func (o *Outcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}
