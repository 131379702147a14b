// Package chat defines the canonical message shape shared by every part of
// the sync core, plus the normalization boundary that turns raw transport
// payloads into that shape.
//
// Payloads arrive from three origins (optimistic apply, push delivery, poll
// delivery) and historically used diverging field names. Everything is
// normalized exactly once at ingress; no code downstream of this package
// branches on field-name variants.
package chat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProvisionalPrefix namespaces locally generated message ids so they can
// never collide with canonical ids assigned by the remote service.
const ProvisionalPrefix = "local:"

// Attachment describes an optional file attached to a message.
type Attachment struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
	Mime string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Message is the one canonical message shape used by the sync core.
// CreatedAt is milliseconds since the Unix epoch.
type Message struct {
	ID          string      `json:"id"`
	ChannelID   string      `json:"channel_id"`
	SenderID    string      `json:"sender_id"`
	SenderName  string      `json:"sender_name,omitempty"`
	Body        string      `json:"body"`
	CreatedAt   int64       `json:"created_at"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	Edited      bool        `json:"edited,omitempty"`
	Provisional bool        `json:"provisional,omitempty"`
	Failed      bool        `json:"failed,omitempty"`
}

// NewProvisional constructs a locally applied message awaiting remote
// acknowledgment. The id is namespaced and random, never derived from the
// wall clock.
func NewProvisional(channelID, senderID, body string, attachment *Attachment) Message {
	return Message{
		ID:          ProvisionalPrefix + uuid.New().String(),
		ChannelID:   channelID,
		SenderID:    senderID,
		Body:        body,
		CreatedAt:   time.Now().UnixMilli(),
		Attachment:  attachment,
		Provisional: true,
	}
}

// IsProvisional reports whether id belongs to the provisional namespace.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// ParseMessage normalizes a raw JSON payload into a canonical Message.
func ParseMessage(raw []byte) (Message, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Message{}, fmt.Errorf("parsing message payload: %w", err)
	}
	return Normalize(payload)
}

// Normalize maps a decoded payload onto the canonical shape, accepting the
// field-name variants the remote service and push transport have used over
// time. An empty id or channel is rejected; everything else is best-effort.
func Normalize(payload map[string]any) (Message, error) {
	msg := Message{
		ID:         pickString(payload, "id", "message_id", "messageId"),
		ChannelID:  pickString(payload, "channel_id", "channelId", "channel"),
		SenderID:   pickString(payload, "sender_id", "senderId", "from", "user_id"),
		SenderName: pickString(payload, "sender_name", "senderName", "username"),
		Body:       pickString(payload, "body", "content", "text"),
		Edited:     pickBool(payload, "edited", "is_edited"),
	}

	if msg.ID == "" {
		return Message{}, fmt.Errorf("message payload has no id")
	}
	if msg.ChannelID == "" {
		return Message{}, fmt.Errorf("message %s has no channel", msg.ID)
	}

	msg.CreatedAt = pickTimestamp(payload, "created_at", "createdAt", "timestamp", "ts")
	msg.Provisional = IsProvisional(msg.ID)

	if att, ok := payload["attachment"].(map[string]any); ok {
		msg.Attachment = &Attachment{
			Name: pickString(att, "name", "filename"),
			URL:  pickString(att, "url", "href"),
			Mime: pickString(att, "mime", "mime_type", "content_type"),
			Size: int64(pickNumber(att, "size")),
		}
	}

	return msg, nil
}

func pickString(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := payload[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			// Some origins send numeric ids.
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func pickBool(payload map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := payload[k].(bool); ok {
			return v
		}
	}
	return false
}

func pickNumber(payload map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := payload[k].(float64); ok {
			return v
		}
	}
	return 0
}

// pickTimestamp accepts millisecond epochs, second epochs, and RFC3339
// strings. Values that look like seconds (before ~2001 in ms terms) are
// scaled up so mixed-origin payloads compare correctly.
func pickTimestamp(payload map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := payload[k].(type) {
		case float64:
			ms := int64(v)
			if ms != 0 && ms < 1_000_000_000_000 {
				ms *= 1000
			}
			if ms != 0 {
				return ms
			}
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t.UnixMilli()
			}
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n != 0 {
				if n < 1_000_000_000_000 {
					n *= 1000
				}
				return n
			}
		}
	}
	return time.Now().UnixMilli()
}

// Excerpt returns a short preview of the body for notification events.
func (m Message) Excerpt(max int) string {
	runes := []rune(m.Body)
	if len(runes) <= max {
		return m.Body
	}
	return string(runes[:max]) + "…"
}
