package bus

// Kind distinguishes notification events routed to the host UI.
type Kind string

const (
	// KindMessage is an untargeted broadcast for ordinary traffic in a
	// non-active channel.
	KindMessage Kind = "message"
	// KindMention targets the viewer whose handle appears in the body.
	KindMention Kind = "mention"
)

// Notification is one unread/mention event emitted by the badge router.
type Notification struct {
	Kind      Kind   `json:"kind"`
	ChannelID string `json:"channel_id"`
	SenderID  string `json:"sender_id"`
	Excerpt   string `json:"excerpt"`
	// TargetID is the viewer id for mention events; empty for broadcasts.
	TargetID string `json:"target_id,omitempty"`
}
