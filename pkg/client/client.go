// Package client assembles the synchronization core into one session-scoped
// object: the transport coordinator, the optimistic send pipeline, and the
// public surface the host product calls.
//
// A Client is constructed once per session and passed by reference; nothing
// in this package lives in package-level state.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tickerdesk/chatsync/pkg/access"
	"github.com/tickerdesk/chatsync/pkg/badge"
	"github.com/tickerdesk/chatsync/pkg/bus"
	"github.com/tickerdesk/chatsync/pkg/cache"
	"github.com/tickerdesk/chatsync/pkg/chat"
	"github.com/tickerdesk/chatsync/pkg/health"
	"github.com/tickerdesk/chatsync/pkg/logger"
	"github.com/tickerdesk/chatsync/pkg/remote"
	"github.com/tickerdesk/chatsync/pkg/store"
	"github.com/tickerdesk/chatsync/pkg/transport"
	"github.com/tickerdesk/chatsync/pkg/xp"
)

// Viewer is the session identity: who reads, posts, and gets mentioned.
type Viewer struct {
	ID     string
	Handle string
	Tier   access.Tier
}

// Options wires the client's collaborators. Remote and Push are required;
// everything else defaults.
type Options struct {
	Viewer       Viewer
	Remote       remote.Service
	Push         transport.Push
	Store        *store.Store
	Cache        *cache.Cache
	Bus          *bus.NotificationBus
	Monitor      *health.Monitor
	PollInterval time.Duration
	HealthTick   time.Duration
}

// Client is the session facade over the synchronization core.
type Client struct {
	viewer  Viewer
	remote  remote.Service
	push    transport.Push
	store   *store.Store
	cache   *cache.Cache
	bus     *bus.NotificationBus
	monitor *health.Monitor
	badges  *badge.Router
	ledger  *xp.Ledger

	pollInterval time.Duration

	mu          sync.Mutex
	channels    map[string]chat.Channel
	active      string
	subscribers map[string]int
	pollCancel  context.CancelFunc
	runCtx      context.Context
	cancel      context.CancelFunc
	started     bool
}

// New builds an unstarted client from opts.
func New(opts Options) (*Client, error) {
	if opts.Remote == nil {
		return nil, fmt.Errorf("client: remote service is required")
	}
	if opts.Push == nil {
		return nil, fmt.Errorf("client: push transport is required")
	}

	st := opts.Store
	if st == nil {
		st = store.New(nil)
	}
	nb := opts.Bus
	if nb == nil {
		nb = bus.NewNotificationBus()
	}
	mon := opts.Monitor
	if mon == nil {
		mon = health.NewMonitor(opts.Remote.Probe)
	}
	if opts.HealthTick > 0 {
		mon.SetTick(opts.HealthTick)
	}
	localCache := opts.Cache
	if localCache == nil {
		localCache = cache.New("")
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Client{
		viewer:       opts.Viewer,
		remote:       opts.Remote,
		push:         opts.Push,
		store:        st,
		cache:        localCache,
		bus:          nb,
		monitor:      mon,
		badges:       badge.NewRouter(opts.Viewer.ID, opts.Viewer.Handle, nb),
		ledger:       xp.NewLedger(0),
		pollInterval: pollInterval,
		channels:     make(map[string]chat.Channel),
		subscribers:  make(map[string]int),
	}, nil
}

// Start launches the push transport, the health monitor, and loads the
// channel catalog. Safe to call once per session.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("client already started")
	}
	c.started = true
	c.runCtx, c.cancel = context.WithCancel(ctx)
	runCtx := c.runCtx
	c.mu.Unlock()

	c.push.OnStateChange(func(connected bool) {
		c.onPushState(connected)
	})
	// Background-channel traffic feeds badge accounting even without a
	// subscription.
	c.push.OnBroadcast(func(raw json.RawMessage) {
		c.onPushMessage(raw)
	})
	c.monitor.OnChange(func(s health.State) {
		c.onHealthChange(s)
	})

	if err := c.push.Start(runCtx); err != nil {
		return err
	}
	go c.monitor.Run(runCtx)

	channels, err := c.remote.ListChannels(runCtx)
	if err != nil {
		logger.WarnCF("client", "channel catalog unavailable at start", map[string]any{
			"error": err.Error(),
		})
	}
	c.mu.Lock()
	for _, ch := range channels {
		c.channels[ch.ID] = ch
	}
	c.mu.Unlock()

	logger.InfoCF("client", "session started", map[string]any{
		"viewer":   c.viewer.ID,
		"tier":     string(c.viewer.Tier),
		"channels": len(channels),
	})
	return nil
}

// Stop tears down transports and closes the notification stream.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.stopPoll()
	c.push.Stop()
	c.bus.Close()
}

// Send runs the optimistic write path:
//
//  1. permission gate, before any mutation
//  2. provisional apply, so the sender sees their message immediately
//  3. durable write, regardless of push transport state
//  4. reconcile: replace the provisional with the canonical copy
//
// On a durable-write failure the provisional message stays visible, marked
// failed; there is no automatic retry.
func (c *Client) Send(ctx context.Context, channelID, body string, attachment *chat.Attachment) (chat.Message, error) {
	ch, ok := c.channel(channelID)
	if !ok {
		return chat.Message{}, chat.NewError(chat.CodeInvalidInput,
			fmt.Sprintf("unknown channel %q", channelID), nil)
	}
	if !access.CanPost(c.viewer.Tier, ch) {
		return chat.Message{}, chat.NewError(chat.CodePermissionDenied,
			fmt.Sprintf("tier %s may not post to %s", c.viewer.Tier, channelID), nil)
	}
	if body == "" && attachment == nil {
		return chat.Message{}, chat.NewError(chat.CodeInvalidInput, "empty message", nil)
	}

	provisional := chat.NewProvisional(channelID, c.viewer.ID, body, attachment)
	c.store.Merge(channelID, []chat.Message{provisional})

	canonical, err := c.remote.Write(ctx, channelID, body, attachment)
	if err != nil {
		c.store.MarkFailed(provisional.ID)
		// Persist the failed marker now; a reload must still show it.
		c.saveSnapshot(channelID)
		logger.WarnCF("client", "durable write failed", map[string]any{
			"channel":     channelID,
			"provisional": provisional.ID,
			"error":       err.Error(),
		})
		provisional.Failed = true
		return provisional, chat.NewError(chat.CodeDurableWriteFailed, "send not persisted", err)
	}

	canonical.ChannelID = channelID
	c.store.Replace(provisional.ID, canonical)
	c.saveSnapshot(channelID)

	total := c.ledger.Award(body, attachment != nil)
	logger.DebugCF("client", "send persisted", map[string]any{
		"channel": channelID,
		"id":      canonical.ID,
		"xp":      total,
	})
	return canonical, nil
}

// SwitchActiveChannel makes channelID the active channel: tears down the old
// subscription and poll timer, seeds the new channel from the local cache,
// subscribes via push, reconciles against the remote service, and clears the
// channel's badge.
func (c *Client) SwitchActiveChannel(ctx context.Context, channelID string) error {
	ch, ok := c.channel(channelID)
	if !ok {
		return chat.NewError(chat.CodeInvalidInput,
			fmt.Sprintf("unknown channel %q", channelID), nil)
	}
	if !access.CanView(c.viewer.Tier, ch) {
		return chat.NewError(chat.CodePermissionDenied,
			fmt.Sprintf("tier %s may not view %s", c.viewer.Tier, channelID), nil)
	}

	c.mu.Lock()
	previous := c.active
	c.active = channelID
	c.mu.Unlock()

	if previous != "" && previous != channelID {
		c.releaseChannel(previous)
	}

	// First paint from the cache, before any network round trip.
	if cached := c.cache.Load(channelID); len(cached) > 0 {
		c.store.Seed(channelID, cached)
	}

	c.badges.Activate(channelID)
	// Re-activating the current channel keeps its existing subscription;
	// acquiring again would leave a count the release path never drains.
	if previous != channelID {
		c.acquireChannel(channelID)
	}

	// Reconcile against the source of truth; failures fall to the poll
	// loop, they never block the switch.
	c.reconcile(ctx, channelID)

	if c.monitor.State() != health.StateConnected {
		c.startPoll(channelID)
	}

	logger.InfoCF("client", "active channel switched", map[string]any{
		"from": previous,
		"to":   channelID,
	})
	return nil
}

// Badges returns a snapshot of every channel's unread/mention counters.
func (c *Client) Badges() map[string]badge.Badge {
	return c.badges.Badges()
}

// ConnectionState returns the session's connection state.
func (c *Client) ConnectionState() health.State {
	return c.monitor.State()
}

// Notifications is the stream of message/mention events for non-active
// channels. The channel stays open for the life of the process; use
// NextNotification for a consumer that must unblock when the client stops.
func (c *Client) Notifications() <-chan bus.Notification {
	return c.bus.Events()
}

// NextNotification blocks for the next event. It returns false once the
// client has stopped or ctx ends.
func (c *Client) NextNotification(ctx context.Context) (bus.Notification, bool) {
	return c.bus.Consume(ctx)
}

// Messages returns the visible, ordered log for a channel.
func (c *Client) Messages(channelID string) []chat.Message {
	return c.store.Messages(channelID)
}

// Channels returns the session's channel catalog.
func (c *Client) Channels() []chat.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

// SetNetworkReachable forwards the host-provided network signal.
func (c *Client) SetNetworkReachable(up bool) {
	c.monitor.SetNetworkReachable(up)
}

// XP returns the viewer's cumulative XP for this session.
func (c *Client) XP() float64 {
	return c.ledger.Total()
}

// Level returns the viewer's level derived from cumulative XP.
func (c *Client) Level() int {
	return c.ledger.Level()
}

func (c *Client) channel(id string) (chat.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[id]
	return ch, ok
}

// SetChannels replaces the channel catalog, for catalog refreshes and tests.
func (c *Client) SetChannels(channels []chat.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = make(map[string]chat.Channel, len(channels))
	for _, ch := range channels {
		c.channels[ch.ID] = ch
	}
}
