package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-console/internal/agents"
	"voice-console/internal/audit"
	"voice-console/internal/metrics"
	"voice-console/internal/vapi"
	"voice-console/pkg/logger"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Store is the call-log persistence the service needs. *Repository implements it.
type Store interface {
	List(ctx context.Context, agentID int64) ([]CallLogEntry, error)
	Create(ctx context.Context, in NewCallLog) (CallLogEntry, error)
}

// AgentLookup resolves an agent the caller owns. *agents.Service implements it.
type AgentLookup interface {
	Owned(ctx context.Context, userID string, id int64) (agents.AgentConfig, error)
}

// RemoteCalls is the slice of the voice API used for calls. *vapi.Client implements it.
type RemoteCalls interface {
	CreateCall(ctx context.Context, p vapi.CallPayload) (json.RawMessage, error)
	GetCall(ctx context.Context, id string) (json.RawMessage, error)
}

type RemoteFactory func(apiKey string) (RemoteCalls, error)

func VapiFactory(f vapi.Factory) RemoteFactory {
	return func(apiKey string) (RemoteCalls, error) {
		return f.New(apiKey)
	}
}

type InitiateRequest struct {
	AgentID        int64  `json:"agentId"`
	CustomerNumber string `json:"customerNumber"`
}

// Service places calls through the owning agent's credentials and keeps the local log.
//
// Consistency: the remote call is the source of truth. When the log write
// fails twice the entry goes to the pending queue and the call still succeeds.
type Service struct {
	agents AgentLookup
	store  Store
	remote RemoteFactory
	queue  PendingQueue
	audit  *audit.Service
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(agents AgentLookup, store Store, remote RemoteFactory, queue PendingQueue) *Service {
	return &Service{agents: agents, store: store, remote: remote, queue: queue, clock: time.Now}
}

// WithAudit records placed calls to the audit trail. Nil disables it.
func (s *Service) WithAudit(a *audit.Service) *Service {
	s.audit = a
	return s
}

// Initiate places an outbound call and returns the remote body unchanged.
func (s *Service) Initiate(ctx context.Context, userID string, req InitiateRequest) (json.RawMessage, error) {
	if req.AgentID <= 0 {
		return nil, &ValidationError{Field: "agentId", Message: "must be a positive integer"}
	}
	// Ownership before body validation: another user's agent is 403 whatever the body.
	agent, err := s.agents.Owned(ctx, userID, req.AgentID)
	if err != nil {
		return nil, err
	}

	number := strings.TrimSpace(req.CustomerNumber)
	if number == "" {
		return nil, &ValidationError{Field: "customerNumber", Message: "required"}
	}
	if !vapi.ValidPhoneNumber(number) {
		return nil, &ValidationError{Field: "customerNumber", Message: "invalid phone number"}
	}
	client, err := s.remote(agent.APIKey)
	if err != nil {
		return nil, err
	}

	payload := vapi.CallPayload{AgentID: agent.AgentID, CustomerNumber: number}
	if agent.AssistantID != nil {
		payload.AssistantID = *agent.AssistantID
	}
	body, err := client.CreateCall(ctx, payload)
	if err != nil {
		return nil, err
	}
	metrics.CallsInitiated.Inc()

	callID, err := vapi.ResourceID(body)
	if err != nil {
		// The call was placed; without an id there is nothing to log against.
		logger.From(ctx).WarnContext(ctx, "call created without id", "agent_id", agent.ID, "err", err)
		return body, nil
	}

	entry := NewCallLog{
		AgentID:      agent.ID,
		CallID:       callID,
		CallerNumber: &number,
		Status:       CallStatusInitiated,
	}
	s.audit.Record(ctx, audit.Event{UserID: userID, Type: audit.EventCallInitiated, AgentID: agent.ID, CallID: callID})
	if s.record(ctx, entry) {
		s.audit.Record(ctx, audit.Event{UserID: userID, Type: audit.EventCallLogQueued, AgentID: agent.ID, CallID: callID})
	}
	return body, nil
}

// record writes the log entry, retrying once, then falls back to the pending queue.
// It reports whether the entry ended up queued.
func (s *Service) record(ctx context.Context, entry NewCallLog) bool {
	log := logger.From(ctx)
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if _, err = s.store.Create(ctx, entry); err == nil {
			return false
		}
	}
	log.ErrorContext(ctx, "call log write failed", "call_id", entry.CallID, "agent_id", entry.AgentID, "err", err)

	if s.queue == nil {
		return false
	}
	entry.QueuedAt = s.clock().UTC()
	// The request context may already be ending; queueing must not depend on it.
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if qerr := s.queue.Push(qctx, entry); qerr != nil {
		log.ErrorContext(ctx, "call log lost", "call_id", entry.CallID, "agent_id", entry.AgentID, "err", qerr)
		return false
	}
	metrics.CallLogsQueued.Inc()
	log.WarnContext(ctx, "call log queued for reconciliation", "call_id", entry.CallID, "agent_id", entry.AgentID)
	return true
}

// Status fetches the remote call through the owning agent's credentials. No caching.
func (s *Service) Status(ctx context.Context, userID string, agentID int64, callID string) (json.RawMessage, error) {
	agent, err := s.agents.Owned(ctx, userID, agentID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(callID) == "" {
		return nil, &ValidationError{Field: "callId", Message: "required"}
	}
	client, err := s.remote(agent.APIKey)
	if err != nil {
		return nil, err
	}
	return client.GetCall(ctx, callID)
}

func (s *Service) ListLogs(ctx context.Context, userID string, agentID int64) ([]CallLogEntry, error) {
	if _, err := s.agents.Owned(ctx, userID, agentID); err != nil {
		return nil, err
	}
	out, err := s.store.List(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list call logs: %w", err)
	}
	return out, nil
}

func (s *Service) CreateLog(ctx context.Context, userID string, in NewCallLog) (CallLogEntry, error) {
	in.QueuedAt = time.Time{}
	if in.AgentID <= 0 {
		return CallLogEntry{}, &ValidationError{Field: "agentId", Message: "must be a positive integer"}
	}
	if _, err := s.agents.Owned(ctx, userID, in.AgentID); err != nil {
		return CallLogEntry{}, err
	}
	if err := in.Validate(); err != nil {
		return CallLogEntry{}, err
	}
	e, err := s.store.Create(ctx, in)
	if err != nil {
		return CallLogEntry{}, fmt.Errorf("create call log: %w", err)
	}
	return e, nil
}

// PendingCount reports the reconciliation backlog.
func (s *Service) PendingCount(ctx context.Context) (int64, error) {
	if s.queue == nil {
		return 0, nil
	}
	return s.queue.Len(ctx)
}
