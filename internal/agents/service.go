package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"voice-console/internal/audit"
	"voice-console/internal/metrics"
	"voice-console/internal/vapi"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrForbidden means the agent exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
)

// ValidationError names the offending input field. It matches ErrInvalidArgument.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	ListForUser(ctx context.Context, userID string) ([]AgentConfig, error)
	Get(ctx context.Context, id int64) (AgentConfig, bool, error)
	Create(ctx context.Context, in NewAgent) (AgentConfig, error)
	Update(ctx context.Context, id int64, p AgentPatch) (AgentConfig, bool, error)
	Delete(ctx context.Context, id int64) error
}

// RemoteAgents resolves an external agent id. *vapi.Client implements it.
type RemoteAgents interface {
	GetAgent(ctx context.Context, id string) (json.RawMessage, error)
}

// RemoteFactory builds a remote client bound to one agent's secret.
type RemoteFactory func(apiKey string) (RemoteAgents, error)

// VapiFactory adapts vapi.Factory to RemoteFactory.
func VapiFactory(f vapi.Factory) RemoteFactory {
	return func(apiKey string) (RemoteAgents, error) {
		return f.New(apiKey)
	}
}

// CreateRequest is the agents.create input.
type CreateRequest struct {
	AgentName   string  `json:"agentName" binding:"required"`
	AgentID     string  `json:"agentId" binding:"required"`
	APIKey      string  `json:"apiKey" binding:"required"`
	PublicKey   *string `json:"publicKey"`
	AssistantID *string `json:"assistantId"`
	PhoneNumber *string `json:"phoneNumber"`
	Description *string `json:"description"`
	// Verify overrides the configured default for resolving AgentID remotely.
	Verify *bool `json:"verify"`
}

// Service owns agent config lifecycle and ownership rules.
//
// Every value it returns to a caller is redacted, except Owned which is for
// in-process use (placing calls, proxying remote requests).
type Service struct {
	store  Store
	remote RemoteFactory
	// verify is the default when a create request does not say.
	verify bool
	audit  *audit.Service
}

func NewService(store Store, remote RemoteFactory, verify bool) *Service {
	return &Service{store: store, remote: remote, verify: verify}
}

// WithAudit records lifecycle changes to the audit trail. Nil disables it.
func (s *Service) WithAudit(a *audit.Service) *Service {
	s.audit = a
	return s
}

func (s *Service) List(ctx context.Context, userID string) ([]AgentConfig, error) {
	list, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	for i := range list {
		list[i] = list[i].Redacted()
	}
	return list, nil
}

func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (AgentConfig, error) {
	req.AgentName = strings.TrimSpace(req.AgentName)
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.APIKey = strings.TrimSpace(req.APIKey)
	if err := validateCreate(req); err != nil {
		return AgentConfig{}, err
	}
	if req.PhoneNumber != nil && *req.PhoneNumber != "" && !vapi.ValidPhoneNumber(*req.PhoneNumber) {
		return AgentConfig{}, &ValidationError{Field: "phoneNumber", Message: "invalid phone number"}
	}

	verify := s.verify
	if req.Verify != nil {
		verify = *req.Verify
	}
	if verify {
		if err := s.resolve(ctx, req.APIKey, req.AgentID); err != nil {
			return AgentConfig{}, err
		}
	}

	a, err := s.store.Create(ctx, NewAgent{
		UserID:      userID,
		AgentName:   req.AgentName,
		AgentID:     req.AgentID,
		APIKey:      req.APIKey,
		PublicKey:   req.PublicKey,
		AssistantID: req.AssistantID,
		PhoneNumber: req.PhoneNumber,
		Description: req.Description,
	})
	if err != nil {
		return AgentConfig{}, fmt.Errorf("create agent: %w", err)
	}
	metrics.AgentsCreated.Inc()
	s.audit.Record(ctx, audit.Event{UserID: userID, Type: audit.EventAgentCreated, AgentID: a.ID, Message: a.AgentName})
	return a.Redacted(), nil
}

// Get returns (AgentConfig{}, false, nil) when the id does not exist.
func (s *Service) Get(ctx context.Context, userID string, id int64) (AgentConfig, bool, error) {
	a, ok, err := s.lookup(ctx, userID, id)
	if err != nil || !ok {
		return AgentConfig{}, ok, err
	}
	return a.Redacted(), true, nil
}

func (s *Service) Update(ctx context.Context, userID string, id int64, p AgentPatch) (AgentConfig, error) {
	// Ownership before body validation: another user's agent is 403 whatever the patch.
	if _, err := s.Owned(ctx, userID, id); err != nil {
		return AgentConfig{}, err
	}
	if p.AgentName != nil {
		name := strings.TrimSpace(*p.AgentName)
		if name == "" {
			return AgentConfig{}, &ValidationError{Field: "agentName", Message: "must not be empty"}
		}
		p.AgentName = &name
	}
	if p.PhoneNumber != nil && *p.PhoneNumber != "" && !vapi.ValidPhoneNumber(*p.PhoneNumber) {
		return AgentConfig{}, &ValidationError{Field: "phoneNumber", Message: "invalid phone number"}
	}
	a, ok, err := s.store.Update(ctx, id, p)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("update agent: %w", err)
	}
	if !ok {
		// Deleted between the ownership check and the write.
		return AgentConfig{}, ErrNotFound
	}
	s.audit.Record(ctx, audit.Event{UserID: userID, Type: audit.EventAgentUpdated, AgentID: id})
	return a.Redacted(), nil
}

// Delete is idempotent: a missing id succeeds. Another user's agent is ErrForbidden.
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	_, ok, err := s.lookup(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	s.audit.Record(ctx, audit.Event{UserID: userID, Type: audit.EventAgentDeleted, AgentID: id})
	return nil
}

// Owned returns the unredacted agent for in-process use.
// Missing is ErrNotFound, another user's agent is ErrForbidden.
func (s *Service) Owned(ctx context.Context, userID string, id int64) (AgentConfig, error) {
	a, ok, err := s.lookup(ctx, userID, id)
	if err != nil {
		return AgentConfig{}, err
	}
	if !ok {
		return AgentConfig{}, ErrNotFound
	}
	return a, nil
}

func (s *Service) lookup(ctx context.Context, userID string, id int64) (AgentConfig, bool, error) {
	if id <= 0 {
		return AgentConfig{}, false, &ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	a, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return AgentConfig{}, false, fmt.Errorf("get agent: %w", err)
	}
	if !ok {
		return AgentConfig{}, false, nil
	}
	if a.UserID != userID {
		return AgentConfig{}, false, ErrForbidden
	}
	return a, true, nil
}

func (s *Service) resolve(ctx context.Context, apiKey, agentID string) error {
	if s.remote == nil {
		return errors.New("agent verification is not configured")
	}
	c, err := s.remote(apiKey)
	if err != nil {
		return err
	}
	_, err = c.GetAgent(ctx, agentID)
	return err
}

func validateCreate(req CreateRequest) error {
	switch {
	case req.AgentName == "":
		return &ValidationError{Field: "agentName", Message: "required"}
	case req.AgentID == "":
		return &ValidationError{Field: "agentId", Message: "required"}
	case req.APIKey == "":
		return &ValidationError{Field: "apiKey", Message: "required"}
	}
	return nil
}
