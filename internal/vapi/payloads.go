package vapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Payloads are explicit per resource kind. Fields the API accepts but this
// service does not model travel in Extra; typed fields win on key collisions.

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Model struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type Voice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId,omitempty"`
}

type CredentialPayload struct {
	Provider            string `json:"provider"`
	AuthorizationHeader string `json:"authorizationHeader,omitempty"`
	APIKey              string `json:"apiKey,omitempty"`

	Extra map[string]any `json:"-"`
}

func (p CredentialPayload) Validate() error {
	if strings.TrimSpace(p.Provider) == "" {
		return fmt.Errorf("%w: credential provider is required", ErrInvalidArgument)
	}
	return nil
}

type AgentPayload struct {
	Name          string   `json:"name"`
	Model         *Model   `json:"model,omitempty"`
	Voice         *Voice   `json:"voice,omitempty"`
	PhoneNumberID string   `json:"phoneNumberId,omitempty"`
	CredentialIDs []string `json:"credentialIds,omitempty"`

	Extra map[string]any `json:"-"`
}

func (p AgentPayload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: agent name is required", ErrInvalidArgument)
	}
	return validateModel(p.Model)
}

// AgentUpdate is a partial agent; nil fields are not sent.
type AgentUpdate struct {
	Name          *string  `json:"name,omitempty"`
	Model         *Model   `json:"model,omitempty"`
	Voice         *Voice   `json:"voice,omitempty"`
	PhoneNumberID *string  `json:"phoneNumberId,omitempty"`
	CredentialIDs []string `json:"credentialIds,omitempty"`

	Extra map[string]any `json:"-"`
}

func (p AgentUpdate) Validate() error {
	if p.Name == nil && p.Model == nil && p.Voice == nil && p.PhoneNumberID == nil && p.CredentialIDs == nil && len(p.Extra) == 0 {
		return fmt.Errorf("%w: agent update has no fields", ErrInvalidArgument)
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: agent name cannot be blank", ErrInvalidArgument)
	}
	return validateModel(p.Model)
}

type PhoneNumberPayload struct {
	PhoneNumber  string `json:"phoneNumber"`
	CredentialID string `json:"credentialId"`

	Extra map[string]any `json:"-"`
}

func (p PhoneNumberPayload) Validate() error {
	if !phonePattern.MatchString(p.PhoneNumber) {
		return fmt.Errorf("%w: phone number is invalid", ErrInvalidArgument)
	}
	if strings.TrimSpace(p.CredentialID) == "" {
		return fmt.Errorf("%w: credential id is required", ErrInvalidArgument)
	}
	return nil
}

type CallPayload struct {
	PhoneNumberID  string `json:"phoneNumberId,omitempty"`
	AssistantID    string `json:"assistantId,omitempty"`
	AgentID        string `json:"agentId,omitempty"`
	CustomerNumber string `json:"customerNumber"`

	Extra map[string]any `json:"-"`
}

func (p CallPayload) Validate() error {
	if !phonePattern.MatchString(p.CustomerNumber) {
		return fmt.Errorf("%w: customer number is invalid", ErrInvalidArgument)
	}
	return nil
}

type AssistantPayload struct {
	Name  string `json:"name"`
	Model *Model `json:"model,omitempty"`
	Voice *Voice `json:"voice,omitempty"`

	Extra map[string]any `json:"-"`
}

func (p AssistantPayload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: assistant name is required", ErrInvalidArgument)
	}
	return validateModel(p.Model)
}

// ListFilter pages list endpoints that support it (calls).
type ListFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

var phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]+$`)

// ValidPhoneNumber reports whether s looks like a dialable number.
func ValidPhoneNumber(s string) bool { return phonePattern.MatchString(s) }

func validateModel(m *Model) error {
	if m == nil {
		return nil
	}
	if m.Provider == "" || m.Model == "" {
		return fmt.Errorf("%w: model provider and model are required", ErrInvalidArgument)
	}
	return nil
}

func (p CredentialPayload) MarshalJSON() ([]byte, error) {
	type alias CredentialPayload
	return marshalWithExtra(alias(p), p.Extra)
}

func (p *CredentialPayload) UnmarshalJSON(b []byte) error {
	type alias CredentialPayload
	return unmarshalWithExtra(b, (*alias)(p), &p.Extra)
}

func (p AgentPayload) MarshalJSON() ([]byte, error) {
	type alias AgentPayload
	return marshalWithExtra(alias(p), p.Extra)
}

func (p *AgentPayload) UnmarshalJSON(b []byte) error {
	type alias AgentPayload
	return unmarshalWithExtra(b, (*alias)(p), &p.Extra)
}

func (p AgentUpdate) MarshalJSON() ([]byte, error) {
	type alias AgentUpdate
	return marshalWithExtra(alias(p), p.Extra)
}

func (p *AgentUpdate) UnmarshalJSON(b []byte) error {
	type alias AgentUpdate
	return unmarshalWithExtra(b, (*alias)(p), &p.Extra)
}

func (p PhoneNumberPayload) MarshalJSON() ([]byte, error) {
	type alias PhoneNumberPayload
	return marshalWithExtra(alias(p), p.Extra)
}

func (p *PhoneNumberPayload) UnmarshalJSON(b []byte) error {
	type alias PhoneNumberPayload
	return unmarshalWithExtra(b, (*alias)(p), &p.Extra)
}

func (p CallPayload) MarshalJSON() ([]byte, error) {
	type alias CallPayload
	return marshalWithExtra(alias(p), p.Extra)
}

func (p *CallPayload) UnmarshalJSON(b []byte) error {
	type alias CallPayload
	return unmarshalWithExtra(b, (*alias)(p), &p.Extra)
}

func (p AssistantPayload) MarshalJSON() ([]byte, error) {
	type alias AssistantPayload
	return marshalWithExtra(alias(p), p.Extra)
}

func (p *AssistantPayload) UnmarshalJSON(b []byte) error {
	type alias AssistantPayload
	return unmarshalWithExtra(b, (*alias)(p), &p.Extra)
}

func marshalWithExtra(typed any, extra map[string]any) ([]byte, error) {
	b, err := json.Marshal(typed)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	merged := make(map[string]any, len(extra))
	for k, v := range extra {
		merged[k] = v
	}
	fields, err := decodeObject(b)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func unmarshalWithExtra(b []byte, typed any, extra *map[string]any) error {
	if err := json.Unmarshal(b, typed); err != nil {
		return err
	}
	all, err := decodeObject(b)
	if err != nil {
		return err
	}
	for name := range jsonFieldNames(reflect.TypeOf(typed).Elem()) {
		delete(all, name)
	}
	if len(all) == 0 {
		*extra = nil
		return nil
	}
	*extra = all
	return nil
}

// decodeObject keeps numbers as json.Number so pass-through values such as
// 64-bit ids survive a round trip unchanged.
func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func jsonFieldNames(t reflect.Type) map[string]struct{} {
	out := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = struct{}{}
	}
	return out
}
