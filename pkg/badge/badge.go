// Package badge maintains per-channel unread/mention counters and emits
// notification events for traffic outside the active channel.
package badge

import (
	"context"
	"strings"
	"sync"

	"github.com/tickerdesk/chatsync/pkg/bus"
	"github.com/tickerdesk/chatsync/pkg/chat"
)

const excerptLen = 80

// Badge is one channel's counters. Both reset to zero only when the channel
// becomes active.
type Badge struct {
	Unread   int `json:"unread"`
	Mentions int `json:"mentions"`
}

// Router observes every inbound and reconciled message, regardless of which
// channel is active, and owns all badge state.
type Router struct {
	mu      sync.Mutex
	badges  map[string]*Badge
	active  string
	viewer  string
	mention string
	bus     *bus.NotificationBus
}

// NewRouter creates a router for the given viewer. handle is the viewer's
// display handle; a body containing "@handle" counts as a mention.
func NewRouter(viewerID, handle string, nb *bus.NotificationBus) *Router {
	return &Router{
		badges:  make(map[string]*Badge),
		viewer:  viewerID,
		mention: "@" + strings.ToLower(handle),
		bus:     nb,
	}
}

// Activate marks a channel active and clears exactly its badge. Other
// channels' badges are untouched.
func (r *Router) Activate(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = channelID
	r.badges[channelID] = &Badge{}
}

// Observe accounts one message. Self-sends and active-channel traffic never
// count; everything else increments unread and emits a notification event.
func (r *Router) Observe(m chat.Message) {
	r.mu.Lock()
	if m.SenderID == r.viewer || m.ChannelID == r.active {
		r.mu.Unlock()
		return
	}

	b, ok := r.badges[m.ChannelID]
	if !ok {
		b = &Badge{}
		r.badges[m.ChannelID] = b
	}
	b.Unread++

	mentioned := r.mention != "@" && strings.Contains(strings.ToLower(m.Body), r.mention)
	if mentioned {
		b.Mentions++
	}
	r.mu.Unlock()

	if r.bus == nil {
		return
	}
	n := bus.Notification{
		Kind:      bus.KindMessage,
		ChannelID: m.ChannelID,
		SenderID:  m.SenderID,
		Excerpt:   m.Excerpt(excerptLen),
	}
	if mentioned {
		n.Kind = bus.KindMention
		n.TargetID = r.viewer
	}
	_ = r.bus.Publish(context.TODO(), n)
}

// Badges returns a snapshot of all channel badges.
func (r *Router) Badges() map[string]Badge {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Badge, len(r.badges))
	for id, b := range r.badges {
		out[id] = *b
	}
	return out
}

// ActiveChannel returns the currently active channel id.
func (r *Router) ActiveChannel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}
