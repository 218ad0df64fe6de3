package ingress

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ProviderIDs carries the raw identifiers a provider attaches to an event.
// Every field is optional; session key derivation falls back through them.
type ProviderIDs struct {
	EventID        string `json:"event_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	ChannelID      string `json:"channel_id,omitempty"`
	ThreadID       string `json:"thread_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Session is the derived conversation identity attached to an envelope.
type Session struct {
	Key    string   `json:"key,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// Attachment is a provider-neutral media reference.
type Attachment struct {
	Kind string `json:"kind"`
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
}

// Button is a provider-neutral interactive control echoed back on click.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Entities are pre-extracted references from the message text.
type Entities struct {
	Mentions []string `json:"mentions,omitempty"`
	URLs     []string `json:"urls,omitempty"`
}

// Envelope is the canonical inbound event. Adapters produce it; the core
// treats it as read-only input.
type Envelope struct {
	Tenant      string            `json:"tenant"`
	Provider    string            `json:"provider"`
	ProviderIDs ProviderIDs       `json:"provider_ids"`
	Session     Session           `json:"session,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Text        string            `json:"text,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Buttons     []Button          `json:"buttons,omitempty"`
	Entities    Entities          `json:"entities,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ChannelData json.RawMessage   `json:"channel_data,omitempty"`
	Raw         json.RawMessage   `json:"raw,omitempty"`
}

// EventID returns the identifier used for dedup: the provider event id, or
// the message id when the provider sends none.
func (e *Envelope) EventID() string {
	if e == nil {
		return ""
	}
	if e.ProviderIDs.EventID != "" {
		return e.ProviderIDs.EventID
	}
	return e.ProviderIDs.MessageID
}

// FlowHint returns the flow id an adapter pinned via metadata, if any.
func (e *Envelope) FlowHint() string {
	if e == nil {
		return ""
	}
	return e.Metadata["flow_id"]
}

// Validate checks the fields the core cannot proceed without.
func (e *Envelope) Validate() error {
	if e == nil {
		return fmt.Errorf("nil envelope")
	}
	if strings.TrimSpace(e.Tenant) == "" {
		return fmt.Errorf("envelope missing tenant")
	}
	if strings.TrimSpace(e.Provider) == "" {
		return fmt.Errorf("envelope missing provider")
	}
	return nil
}
