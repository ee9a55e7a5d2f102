package simulator

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"voice-console/internal/vapi"

	"github.com/oklog/ulid/v2"
)

// Status progression of a simulated call, measured from creation.
const (
	ringingAfter   = 2 * time.Second
	connectedAfter = 5 * time.Second
)

var idPrefixes = map[string]string{
	vapi.ResourceCredential:  "cred",
	vapi.ResourceAgent:       "agent",
	vapi.ResourcePhoneNumber: "phone",
	vapi.ResourceCall:        "call",
	vapi.ResourceAssistant:   "asst",
}

type record struct {
	id        string
	createdAt time.Time
	body      map[string]any
}

// State is one simulated remote account. Every handler instance gets its own;
// nothing is shared across instances.
type State struct {
	mu    sync.Mutex
	kinds map[string]map[string]*record
	// clock is injectable so tests can step call status without sleeping.
	clock func() time.Time
}

func NewState() *State {
	s := &State{kinds: map[string]map[string]*record{}, clock: time.Now}
	for kind := range idPrefixes {
		s.kinds[kind] = map[string]*record{}
	}
	return s
}

// WithClock replaces the time source. Intended for tests.
func (s *State) WithClock(clock func() time.Time) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
	return s
}

// Seed loads the demo account: one credential, agent, phone number and assistant.
func (s *State) Seed() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock().UTC()
	s.put(vapi.ResourceCredential, "cred_demo_twilio_001", now, map[string]any{"provider": "twilio"})
	s.put(vapi.ResourceAgent, "agent_demo_001", now, map[string]any{
		"name":  "Demo Agent",
		"model": map[string]any{"provider": "openai", "model": "gpt-4"},
		"voice": map[string]any{"provider": "elevenlabs", "voiceId": "EXAVITQu4vr4xnSDxMaL"},
	})
	s.put(vapi.ResourcePhoneNumber, "phone_demo_001", now, map[string]any{
		"phoneNumber":  "+1 (555) 123-4567",
		"credentialId": "cred_demo_twilio_001",
	})
	s.put(vapi.ResourceAssistant, "asst_demo_001", now, map[string]any{
		"name":  "Demo Assistant",
		"model": map[string]any{"provider": "openai", "model": "gpt-4"},
	})
	return s
}

func (s *State) create(kind string, body map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock().UTC()
	id := idPrefixes[kind] + "_" + strings.ToLower(ulid.Make().String())
	if kind == vapi.ResourceCall {
		body["status"] = "initiated"
		body["duration"] = 0
	}
	r := s.put(kind, id, now, body)
	return s.view(kind, r, now)
}

func (s *State) get(kind, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.kinds[kind][id]
	if !ok {
		return nil, false
	}
	return s.view(kind, r, s.clock()), true
}

// list returns resources oldest first; offset and limit apply when positive.
func (s *State) list(kind string, offset, limit int) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]*record, 0, len(s.kinds[kind]))
	for _, r := range s.kinds[kind] {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].createdAt.Equal(recs[j].createdAt) {
			return recs[i].id < recs[j].id
		}
		return recs[i].createdAt.Before(recs[j].createdAt)
	})
	if offset > 0 {
		if offset >= len(recs) {
			recs = nil
		} else {
			recs = recs[offset:]
		}
	}
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	now := s.clock()
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.view(kind, r, now))
	}
	return out
}

func (s *State) update(kind, id string, patch map[string]any) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.kinds[kind][id]
	if !ok {
		return nil, false
	}
	for k, v := range patch {
		if k == "id" || k == "createdAt" {
			continue
		}
		r.body[k] = v
	}
	now := s.clock().UTC()
	r.body["updatedAt"] = now.Format(time.RFC3339Nano)
	return s.view(kind, r, now), true
}

// remove is idempotent, like the real API's delete.
func (s *State) remove(kind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kinds[kind], id)
}

func (s *State) put(kind, id string, now time.Time, body map[string]any) *record {
	r := &record{id: id, createdAt: now, body: body}
	s.kinds[kind][id] = r
	return r
}

// view copies the record for the caller and derives call status from elapsed time.
func (s *State) view(kind string, r *record, now time.Time) map[string]any {
	out := make(map[string]any, len(r.body)+2)
	for k, v := range r.body {
		out[k] = v
	}
	out["id"] = r.id
	out["createdAt"] = r.createdAt.Format(time.RFC3339Nano)
	if kind == vapi.ResourceCall {
		out["status"] = callStatus(r.body["status"], now.Sub(r.createdAt))
	}
	return out
}

// callStatus advances only calls still in the initial state; an explicit status set
// through update wins.
func callStatus(stored any, elapsed time.Duration) any {
	if stored != "initiated" {
		return stored
	}
	switch {
	case elapsed >= connectedAfter:
		return "connected"
	case elapsed >= ringingAfter:
		return "ringing"
	default:
		return "initiated"
	}
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
