package calls

import (
	"fmt"
	"strings"
	"time"
)

// CallLogEntry is the local record of one remote call attempt.
//
// Append-only: there is no update path. Status is stored as given; the
// known values below are conventions, not a state machine.
type CallLogEntry struct {
	ID      int64 `json:"id"`
	AgentID int64 `json:"agentId"`
	// CallID is the remote call identifier.
	CallID       string  `json:"callId"`
	CallerNumber *string `json:"callerNumber"`

	// Duration is in seconds; nil until known.
	Duration *int `json:"duration"`

	Status       CallStatus `json:"status"`
	Transcript   *string    `json:"transcript"`
	RecordingURL *string    `json:"recordingUrl"`

	CreatedAt time.Time `json:"createdAt"`
}

type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusConnected CallStatus = "connected"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusMissed    CallStatus = "missed"
)

// NewCallLog is the insert shape. It is also what the pending queue carries.
type NewCallLog struct {
	AgentID      int64      `json:"agentId"`
	CallID       string     `json:"callId"`
	CallerNumber *string    `json:"callerNumber"`
	Duration     *int       `json:"duration"`
	Status       CallStatus `json:"status"`
	Transcript   *string    `json:"transcript"`
	RecordingURL *string    `json:"recordingUrl"`

	// QueuedAt is set when the entry went through the pending queue so the
	// reconciled row keeps the original time.
	QueuedAt time.Time `json:"queuedAt,omitempty"`
}

func (n NewCallLog) Validate() error {
	if n.AgentID <= 0 {
		return &ValidationError{Field: "agentId", Message: "must be a positive integer"}
	}
	if strings.TrimSpace(n.CallID) == "" {
		return &ValidationError{Field: "callId", Message: "required"}
	}
	if n.Duration != nil && *n.Duration < 0 {
		return &ValidationError{Field: "duration", Message: "must not be negative"}
	}
	return nil
}

// ValidationError names the offending input field. It matches ErrInvalidArgument.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }
