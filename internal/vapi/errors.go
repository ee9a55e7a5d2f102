package vapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrRemoteCallFailed is the single failure kind for transport and upstream errors.
	// Match it with errors.Is; use errors.As with *RemoteError for details.
	ErrRemoteCallFailed = errors.New("vapi: remote call failed")

	ErrInvalidArgument = errors.New("vapi: invalid argument")
)

// RemoteError carries the upstream message when the API returned one,
// otherwise the transport error text or HTTP status text.
type RemoteError struct {
	// Op is a human-readable operation name, e.g. "create call".
	Op string
	// StatusCode is 0 when the request never got a response.
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Message)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteCallFailed }

// upstreamMessage extracts "message" (string or string array) or "error" from an error body.
func upstreamMessage(status int, body []byte) string {
	var env struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		for _, raw := range []json.RawMessage{env.Message, env.Error} {
			if msg := decodeMessage(raw); msg != "" {
				return msg
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%d %s", status, text)
	}
	return fmt.Sprintf("unexpected status %d", status)
}

func decodeMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, "; "))
	}
	return ""
}
