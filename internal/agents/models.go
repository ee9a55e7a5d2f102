package agents

import "time"

// RedactedSecret replaces the stored API key on every read that leaves the process.
const RedactedSecret = "***"

// AgentConfig is a user's registration of a remote voice agent.
//
// Secret invariant: APIKey holds the plaintext only inside the process.
// Anything serialized to a caller must go through Redacted().
type AgentConfig struct {
	ID     int64  `json:"id"`
	UserID string `json:"userId"`

	AgentName string `json:"agentName"`
	// AgentID is the remote (external) agent identifier.
	AgentID string `json:"agentId"`
	APIKey  string `json:"apiKey,omitempty"`

	PublicKey   *string `json:"publicKey"`
	AssistantID *string `json:"assistantId"`
	PhoneNumber *string `json:"phoneNumber"`
	Description *string `json:"description"`

	IsActive bool `json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Redacted returns a copy safe to hand to callers.
func (a AgentConfig) Redacted() AgentConfig {
	if a.APIKey != "" {
		a.APIKey = RedactedSecret
	}
	return a
}

// NewAgent is the insert shape. IsActive defaults to true when nil.
type NewAgent struct {
	UserID    string
	AgentName string
	AgentID   string
	APIKey    string

	PublicKey   *string
	AssistantID *string
	PhoneNumber *string
	Description *string
	IsActive    *bool
}

// AgentPatch carries only the columns to change; nil means untouched.
type AgentPatch struct {
	AgentName   *string `json:"agentName"`
	PhoneNumber *string `json:"phoneNumber"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

func (p AgentPatch) Empty() bool {
	return p.AgentName == nil && p.PhoneNumber == nil && p.Description == nil && p.IsActive == nil
}
