package audit

import "time"

// Event is an append-only record of a state-changing action.
//
// Events are never updated or deleted, and outlive the agent they mention:
// agent_id is a plain column, not a foreign key.
type Event struct {
	ID     string    `json:"id"`
	UserID string    `json:"userId"`
	Type   EventType `json:"type"`

	AgentID int64  `json:"agentId,omitempty"`
	CallID  string `json:"callId,omitempty"`

	// IPAddress is best-effort; see WithClientIP.
	IPAddress string `json:"ipAddress,omitempty"`
	Message   string `json:"message,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type EventType string

const (
	EventAgentCreated  EventType = "agent_created"
	EventAgentUpdated  EventType = "agent_updated"
	EventAgentDeleted  EventType = "agent_deleted"
	EventCallInitiated EventType = "call_initiated"
	EventCallLogQueued EventType = "call_log_queued"
)
