package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"voice-console/internal/metrics"
)

const DefaultBaseURL = "https://api.vapi.ai"

// Resource path segments on the remote API.
const (
	ResourceCredential  = "credential"
	ResourceAgent       = "agent"
	ResourcePhoneNumber = "phone-number"
	ResourceCall        = "call"
	ResourceAssistant   = "assistant"
)

// maxErrorBody bounds how much of an error response is read for the message.
const maxErrorBody = 64 << 10

// Client is a stateless wrapper over the voice API. The only state is the
// secret captured at construction; every method is one HTTP round trip.
//
// Results are the raw response body. No retries and no client-side timeout:
// cancellation comes from ctx.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInvalidArgument)
	}
	c := &Client{baseURL: DefaultBaseURL, apiKey: apiKey, http: http.DefaultClient}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Factory builds clients that share a base URL and transport; the secret varies per agent.
type Factory struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (f Factory) New(apiKey string) (*Client, error) {
	opts := []Option{WithHTTPClient(f.HTTPClient)}
	if f.BaseURL != "" {
		opts = append(opts, WithBaseURL(f.BaseURL))
	}
	return New(apiKey, opts...)
}

/* ===================== CREDENTIALS ===================== */

func (c *Client) CreateCredential(ctx context.Context, p CredentialPayload) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.create(ctx, ResourceCredential, "credential", p)
}

func (c *Client) GetCredential(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, ResourceCredential, "credential", id)
}

func (c *Client) ListCredentials(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, ResourceCredential, "credentials", nil)
}

func (c *Client) DeleteCredential(ctx context.Context, id string) (json.RawMessage, error) {
	return c.delete(ctx, ResourceCredential, "credential", id)
}

/* ===================== AGENTS ===================== */

func (c *Client) CreateAgent(ctx context.Context, p AgentPayload) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.create(ctx, ResourceAgent, "agent", p)
}

func (c *Client) GetAgent(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, ResourceAgent, "agent", id)
}

func (c *Client) ListAgents(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, ResourceAgent, "agents", nil)
}

func (c *Client) UpdateAgent(ctx context.Context, id string, p AgentUpdate) (json.RawMessage, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.do(ctx, ResourceAgent, "update agent", http.MethodPatch, "/"+ResourceAgent+"/"+url.PathEscape(id), nil, p)
}

func (c *Client) DeleteAgent(ctx context.Context, id string) (json.RawMessage, error) {
	return c.delete(ctx, ResourceAgent, "agent", id)
}

/* ===================== PHONE NUMBERS ===================== */

func (c *Client) CreatePhoneNumber(ctx context.Context, p PhoneNumberPayload) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.create(ctx, ResourcePhoneNumber, "phone number", p)
}

func (c *Client) GetPhoneNumber(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, ResourcePhoneNumber, "phone number", id)
}

func (c *Client) ListPhoneNumbers(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, ResourcePhoneNumber, "phone numbers", nil)
}

func (c *Client) DeletePhoneNumber(ctx context.Context, id string) (json.RawMessage, error) {
	return c.delete(ctx, ResourcePhoneNumber, "phone number", id)
}

/* ===================== CALLS ===================== */

func (c *Client) CreateCall(ctx context.Context, p CallPayload) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.create(ctx, ResourceCall, "call", p)
}

func (c *Client) GetCall(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, ResourceCall, "call", id)
}

func (c *Client) ListCalls(ctx context.Context, f ListFilter) (json.RawMessage, error) {
	q := url.Values{}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return c.list(ctx, ResourceCall, "calls", q)
}

/* ===================== ASSISTANTS ===================== */

func (c *Client) CreateAssistant(ctx context.Context, p AssistantPayload) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.create(ctx, ResourceAssistant, "assistant", p)
}

func (c *Client) GetAssistant(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, ResourceAssistant, "assistant", id)
}

func (c *Client) ListAssistants(ctx context.Context) (json.RawMessage, error) {
	return c.list(ctx, ResourceAssistant, "assistants", nil)
}

/* ===================== INTERNAL ===================== */

func (c *Client) create(ctx context.Context, resource, noun string, body any) (json.RawMessage, error) {
	return c.do(ctx, resource, "create "+noun, http.MethodPost, "/"+resource, nil, body)
}

func (c *Client) get(ctx context.Context, resource, noun, id string) (json.RawMessage, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	return c.do(ctx, resource, "get "+noun, http.MethodGet, "/"+resource+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) list(ctx context.Context, resource, noun string, q url.Values) (json.RawMessage, error) {
	return c.do(ctx, resource, "list "+noun, http.MethodGet, "/"+resource, q, nil)
}

func (c *Client) delete(ctx context.Context, resource, noun, id string) (json.RawMessage, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	return c.do(ctx, resource, "delete "+noun, http.MethodDelete, "/"+resource+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, resource, op, method, path string, q url.Values, body any) (out json.RawMessage, err error) {
	start := time.Now()
	verb, _, _ := strings.Cut(op, " ")
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.RemoteCallsTotal.WithLabelValues(resource, verb, outcome).Inc()
		metrics.RemoteCallDuration.WithLabelValues(resource, verb).Observe(time.Since(start).Seconds())
	}()

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("vapi: encode %s payload: %w", resource, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, &RemoteError{Op: op, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: upstreamMessage(resp.StatusCode, b)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	if !json.Valid(b) {
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "response is not valid JSON"}
	}
	return json.RawMessage(b), nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidArgument)
	}
	return nil
}

// ResourceID reads the "id" field of a remote resource body.
func ResourceID(raw json.RawMessage) (string, error) {
	var v struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("vapi: decode resource id: %w", err)
	}
	if v.ID == "" {
		return "", fmt.Errorf("vapi: resource has no id")
	}
	return v.ID, nil
}
