package calls

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"voice-console/internal/agents"
	"voice-console/internal/audit"
	"voice-console/internal/vapi"
)

type fakeAgents struct {
	byID map[int64]agents.AgentConfig
}

func (f *fakeAgents) Owned(ctx context.Context, userID string, id int64) (agents.AgentConfig, error) {
	a, ok := f.byID[id]
	if !ok {
		return agents.AgentConfig{}, agents.ErrNotFound
	}
	if a.UserID != userID {
		return agents.AgentConfig{}, agents.ErrForbidden
	}
	return a, nil
}

type fakeRemote struct {
	keys     []string
	payloads []vapi.CallPayload
	gets     []string
	err      error
}

func (f *fakeRemote) factory() RemoteFactory {
	return func(apiKey string) (RemoteCalls, error) {
		f.keys = append(f.keys, apiKey)
		return f, nil
	}
}

func (f *fakeRemote) CreateCall(ctx context.Context, p vapi.CallPayload) (json.RawMessage, error) {
	f.payloads = append(f.payloads, p)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"id":"call_1","status":"initiated"}`), nil
}

func (f *fakeRemote) GetCall(ctx context.Context, id string) (json.RawMessage, error) {
	f.gets = append(f.gets, id)
	return json.RawMessage(`{"id":"` + id + `","status":"ringing"}`), nil
}

// flakyStore fails its first n writes, n = failures.
type flakyStore struct {
	failures int
	attempts int
	created  []NewCallLog
}

func (s *flakyStore) List(ctx context.Context, agentID int64) ([]CallLogEntry, error) {
	out := make([]CallLogEntry, 0, len(s.created))
	for i, c := range s.created {
		if c.AgentID == agentID {
			out = append(out, CallLogEntry{ID: int64(i + 1), AgentID: c.AgentID, CallID: c.CallID, Status: c.Status})
		}
	}
	return out, nil
}

func (s *flakyStore) Create(ctx context.Context, in NewCallLog) (CallLogEntry, error) {
	s.attempts++
	if s.attempts <= s.failures {
		return CallLogEntry{}, errors.New("db unavailable")
	}
	s.created = append(s.created, in)
	return CallLogEntry{ID: int64(len(s.created)), AgentID: in.AgentID, CallID: in.CallID, Status: in.Status}, nil
}

func newCallsFixture(storeFailures int) (*Service, *fakeRemote, *flakyStore, *MemoryQueue) {
	asst := "asst_1"
	lookup := &fakeAgents{byID: map[int64]agents.AgentConfig{
		1: {ID: 1, UserID: "owner", AgentID: "agent_ext", APIKey: "sk-owner", AssistantID: &asst},
	}}
	remote := &fakeRemote{}
	st := &flakyStore{failures: storeFailures}
	q := NewMemoryQueue()
	return NewService(lookup, st, remote.factory(), q), remote, st, q
}

func TestInitiate_WritesInitiatedLog(t *testing.T) {
	svc, remote, st, q := newCallsFixture(0)

	body, err := svc.Initiate(context.Background(), "owner", InitiateRequest{AgentID: 1, CustomerNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if string(body) != `{"id":"call_1","status":"initiated"}` {
		t.Fatalf("expected remote body passthrough, got %s", body)
	}
	if len(remote.keys) != 1 || remote.keys[0] != "sk-owner" {
		t.Fatalf("expected agent secret used, got %v", remote.keys)
	}
	p := remote.payloads[0]
	if p.AgentID != "agent_ext" || p.AssistantID != "asst_1" || p.CustomerNumber != "+15551234567" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if len(st.created) != 1 || st.created[0].CallID != "call_1" || st.created[0].Status != CallStatusInitiated {
		t.Fatalf("expected one initiated log, got %+v", st.created)
	}
	if n, _ := q.Len(context.Background()); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestInitiate_RetriesOnceThenSucceeds(t *testing.T) {
	svc, _, st, q := newCallsFixture(1)
	if _, err := svc.Initiate(context.Background(), "owner", InitiateRequest{AgentID: 1, CustomerNumber: "+15551234567"}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if st.attempts != 2 || len(st.created) != 1 {
		t.Fatalf("expected success on retry, attempts=%d created=%d", st.attempts, len(st.created))
	}
	if n, _ := q.Len(context.Background()); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestInitiate_QueuesLogAfterSecondFailure(t *testing.T) {
	svc, _, st, q := newCallsFixture(2)
	body, err := svc.Initiate(context.Background(), "owner", InitiateRequest{AgentID: 1, CustomerNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("expected call to still succeed, got %v", err)
	}
	if len(body) == 0 {
		t.Fatalf("expected remote body")
	}
	if st.attempts != 2 {
		t.Fatalf("expected exactly one retry, got %d attempts", st.attempts)
	}
	c, ok, err := q.Claim(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected queued entry, ok=%v err=%v", ok, err)
	}
	e := c.Entry
	if e.CallID != "call_1" || e.AgentID != 1 || e.QueuedAt.IsZero() {
		t.Fatalf("unexpected queued entry: %+v", e)
	}
}

func TestInitiate_ForeignAgentNeverReachesRemote(t *testing.T) {
	svc, remote, st, _ := newCallsFixture(0)
	_, err := svc.Initiate(context.Background(), "intruder", InitiateRequest{AgentID: 1, CustomerNumber: "+15551234567"})
	if !errors.Is(err, agents.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(remote.keys) != 0 || len(remote.payloads) != 0 || st.attempts != 0 {
		t.Fatalf("expected no remote call and no log")
	}
}

func TestInitiate_RemoteFailureWritesNoLog(t *testing.T) {
	svc, remote, st, _ := newCallsFixture(0)
	remote.err = &vapi.RemoteError{Op: "create call", StatusCode: 400, Message: "Invalid phone number"}

	_, err := svc.Initiate(context.Background(), "owner", InitiateRequest{AgentID: 1, CustomerNumber: "+15551234567"})
	var re *vapi.RemoteError
	if !errors.As(err, &re) || re.Message != "Invalid phone number" {
		t.Fatalf("expected remote error, got %v", err)
	}
	if st.attempts != 0 {
		t.Fatalf("expected no log write")
	}
}

func TestInitiate_RejectsBadNumber(t *testing.T) {
	svc, remote, _, _ := newCallsFixture(0)
	_, err := svc.Initiate(context.Background(), "owner", InitiateRequest{AgentID: 1, CustomerNumber: "not a number"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if len(remote.keys) != 0 {
		t.Fatalf("expected no remote call")
	}
}

func TestInitiate_OwnershipBeforeValidation(t *testing.T) {
	svc, remote, st, _ := newCallsFixture(0)
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "intruder", InitiateRequest{AgentID: 1, CustomerNumber: "not a number"}); !errors.Is(err, agents.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Status(ctx, "intruder", 1, " "); !errors.Is(err, agents.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.CreateLog(ctx, "intruder", NewCallLog{AgentID: 1}); !errors.Is(err, agents.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(remote.keys) != 0 || st.attempts != 0 {
		t.Fatalf("expected no remote call and no write")
	}
}

func TestStatus_PassesThrough(t *testing.T) {
	svc, remote, _, _ := newCallsFixture(0)
	body, err := svc.Status(context.Background(), "owner", 1, "call_9")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if string(body) != `{"id":"call_9","status":"ringing"}` || len(remote.gets) != 1 {
		t.Fatalf("unexpected status result: %s", body)
	}
	if _, err := svc.Status(context.Background(), "intruder", 1, "call_9"); !errors.Is(err, agents.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateLog_ValidatesAndChecksOwnership(t *testing.T) {
	svc, _, st, _ := newCallsFixture(0)
	ctx := context.Background()

	if _, err := svc.CreateLog(ctx, "owner", NewCallLog{AgentID: 1}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected missing callId rejected, got %v", err)
	}
	if _, err := svc.CreateLog(ctx, "intruder", NewCallLog{AgentID: 1, CallID: "c"}); !errors.Is(err, agents.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.CreateLog(ctx, "owner", NewCallLog{AgentID: 1, CallID: "c", Status: "custom-status"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	logs, err := svc.ListLogs(ctx, "owner", 1)
	if err != nil || len(logs) != 1 || logs[0].Status != "custom-status" {
		t.Fatalf("unexpected logs: %+v err=%v", logs, err)
	}
	if len(st.created) != 1 {
		t.Fatalf("expected one row")
	}
}

func TestInitiate_AuditsCallAndQueuedLog(t *testing.T) {
	svc, _, _, _ := newCallsFixture(2)
	trail := audit.NewMemoryRepo()
	svc.WithAudit(audit.NewService(trail))

	if _, err := svc.Initiate(context.Background(), "owner", InitiateRequest{AgentID: 1, CustomerNumber: "+15551234567"}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	events := trail.Events()
	if len(events) != 2 || events[0].Type != audit.EventCallInitiated || events[1].Type != audit.EventCallLogQueued {
		t.Fatalf("unexpected audit trail: %+v", events)
	}
	if events[0].CallID != "call_1" || events[0].UserID != "owner" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}
