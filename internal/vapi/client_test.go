package vapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	raw    string
	body   map[string]any
}

func newServer(t *testing.T, status int, resp string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.auth = r.Header.Get("Authorization")
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			rec.raw = string(b)
			_ = json.Unmarshal(b, &rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New("sk-test", WithBaseURL(baseURL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(" "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRoutesPerResource(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		call   func(c *Client) (json.RawMessage, error)
		method string
		path   string
	}{
		{"create credential", func(c *Client) (json.RawMessage, error) {
			return c.CreateCredential(ctx, CredentialPayload{Provider: "twilio"})
		}, http.MethodPost, "/credential"},
		{"get credential", func(c *Client) (json.RawMessage, error) { return c.GetCredential(ctx, "cred_1") }, http.MethodGet, "/credential/cred_1"},
		{"list credentials", func(c *Client) (json.RawMessage, error) { return c.ListCredentials(ctx) }, http.MethodGet, "/credential"},
		{"delete credential", func(c *Client) (json.RawMessage, error) { return c.DeleteCredential(ctx, "cred_1") }, http.MethodDelete, "/credential/cred_1"},
		{"create agent", func(c *Client) (json.RawMessage, error) { return c.CreateAgent(ctx, AgentPayload{Name: "a"}) }, http.MethodPost, "/agent"},
		{"update agent", func(c *Client) (json.RawMessage, error) {
			name := "b"
			return c.UpdateAgent(ctx, "agent_1", AgentUpdate{Name: &name})
		}, http.MethodPatch, "/agent/agent_1"},
		{"delete agent", func(c *Client) (json.RawMessage, error) { return c.DeleteAgent(ctx, "agent_1") }, http.MethodDelete, "/agent/agent_1"},
		{"create phone number", func(c *Client) (json.RawMessage, error) {
			return c.CreatePhoneNumber(ctx, PhoneNumberPayload{PhoneNumber: "+15551234567", CredentialID: "cred_1"})
		}, http.MethodPost, "/phone-number"},
		{"list phone numbers", func(c *Client) (json.RawMessage, error) { return c.ListPhoneNumbers(ctx) }, http.MethodGet, "/phone-number"},
		{"get call", func(c *Client) (json.RawMessage, error) { return c.GetCall(ctx, "call_1") }, http.MethodGet, "/call/call_1"},
		{"create assistant", func(c *Client) (json.RawMessage, error) {
			return c.CreateAssistant(ctx, AssistantPayload{Name: "asst"})
		}, http.MethodPost, "/assistant"},
		{"get assistant", func(c *Client) (json.RawMessage, error) { return c.GetAssistant(ctx, "asst_1") }, http.MethodGet, "/assistant/asst_1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, rec := newServer(t, http.StatusOK, `{"id":"x"}`)
			out, err := tc.call(newClient(t, srv.URL))
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if rec.method != tc.method || rec.path != tc.path {
				t.Fatalf("expected %s %s, got %s %s", tc.method, tc.path, rec.method, rec.path)
			}
			if rec.auth != "Bearer sk-test" {
				t.Fatalf("expected bearer auth, got %q", rec.auth)
			}
			if string(out) != `{"id":"x"}` {
				t.Fatalf("expected raw body passthrough, got %s", out)
			}
		})
	}
}

func TestListCalls_SendsFilters(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `[]`)
	if _, err := newClient(t, srv.URL).ListCalls(context.Background(), ListFilter{Limit: 10, Offset: 20}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.query != "limit=10&offset=20" {
		t.Fatalf("unexpected query %q", rec.query)
	}
}

func TestCreateCall_MergesExtraFields(t *testing.T) {
	srv, rec := newServer(t, http.StatusCreated, `{"id":"call_1","status":"initiated"}`)
	_, err := newClient(t, srv.URL).CreateCall(context.Background(), CallPayload{
		AssistantID:    "asst_1",
		CustomerNumber: "+15551234567",
		Extra:          map[string]any{"metadata": map[string]any{"k": "v"}, "customerNumber": "ignored"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.body["customerNumber"] != "+15551234567" {
		t.Fatalf("typed field must win over extra, got %v", rec.body["customerNumber"])
	}
	if _, ok := rec.body["metadata"]; !ok {
		t.Fatalf("expected extra field forwarded: %v", rec.body)
	}
}

func TestCreateCall_ExtraKeepsLargeIntegers(t *testing.T) {
	var p CallPayload
	in := `{"customerNumber":"+15551234567","metadata":{"orderId":9007199254740993,"ratio":0.1}}`
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	srv, rec := newServer(t, http.StatusCreated, `{"id":"call_1"}`)
	if _, err := newClient(t, srv.URL).CreateCall(context.Background(), p); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.Contains(rec.raw, `"orderId":9007199254740993`) || !strings.Contains(rec.raw, `"ratio":0.1`) {
		t.Fatalf("expected numbers forwarded unchanged, got %s", rec.raw)
	}
}

func TestRemoteError_UsesUpstreamMessage(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"message":["name must be a string","model is required"]}`)
	_, err := newClient(t, srv.URL).CreateAgent(context.Background(), AgentPayload{Name: "a"})
	if !errors.Is(err, ErrRemoteCallFailed) {
		t.Fatalf("expected ErrRemoteCallFailed, got %v", err)
	}
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RemoteError")
	}
	if re.StatusCode != http.StatusBadRequest || re.Message != "name must be a string; model is required" {
		t.Fatalf("unexpected remote error: %+v", re)
	}
	if !strings.Contains(err.Error(), "failed to create agent") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestRemoteError_FallsBackToStatusText(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound, `not json`)
	_, err := newClient(t, srv.URL).GetAgent(context.Background(), "missing")
	var re *RemoteError
	if !errors.As(err, &re) || re.Message != "404 Not Found" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRemoteError_Transport(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{}`)
	srv.Close()
	_, err := newClient(t, srv.URL).ListAgents(context.Background())
	var re *RemoteError
	if !errors.As(err, &re) || re.StatusCode != 0 || re.Message == "" {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestLocalValidation_NoNetworkCall(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{}`)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	if _, err := c.GetAgent(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty id, got %v", err)
	}
	if _, err := c.CreateCall(ctx, CallPayload{CustomerNumber: "call me"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad number, got %v", err)
	}
	if _, err := c.UpdateAgent(ctx, "agent_1", AgentUpdate{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty update, got %v", err)
	}
	if rec.method != "" {
		t.Fatalf("expected no request, got %s %s", rec.method, rec.path)
	}
}

func TestDelete_EmptyBody(t *testing.T) {
	srv, _ := newServer(t, http.StatusNoContent, ``)
	out, err := newClient(t, srv.URL).DeleteAgent(context.Background(), "agent_1")
	if err != nil || out != nil {
		t.Fatalf("expected nil body and no error, got %s %v", out, err)
	}
}

func TestPayload_UnmarshalKeepsUnknownFields(t *testing.T) {
	var p AgentPayload
	if err := json.Unmarshal([]byte(`{"name":"a","firstMessage":"hi"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Name != "a" || p.Extra["firstMessage"] != "hi" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if _, ok := p.Extra["name"]; ok {
		t.Fatalf("typed field leaked into extra")
	}
}

func TestResourceID(t *testing.T) {
	id, err := ResourceID(json.RawMessage(`{"id":"call_1"}`))
	if err != nil || id != "call_1" {
		t.Fatalf("unexpected: %q %v", id, err)
	}
	if _, err := ResourceID(json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error for missing id")
	}
}
