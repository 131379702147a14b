package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tickerdesk/chatsync/pkg/chat"
	"github.com/tickerdesk/chatsync/pkg/health"
	"github.com/tickerdesk/chatsync/pkg/logger"
)

// Transport coordination: one push subscription per active channel and at
// most one poll timer, mutually exclusive with CONNECTED. The poll loop
// runs at a fixed short interval and swallows failures: staleness during
// an outage is preferable to silence, so there is no backoff here.

// acquireChannel increments the channel's subscriber count, establishing
// the push subscription on the first subscriber.
func (c *Client) acquireChannel(channelID string) {
	c.mu.Lock()
	c.subscribers[channelID]++
	first := c.subscribers[channelID] == 1
	c.mu.Unlock()

	if !first {
		return
	}
	if err := c.push.Subscribe(channelID, func(raw json.RawMessage) {
		c.onPushMessage(raw)
	}); err != nil {
		logger.WarnCF("client", "push subscribe failed", map[string]any{
			"channel": channelID,
			"error":   err.Error(),
		})
	}
}

// releaseChannel decrements the subscriber count. The last unsubscribe
// deterministically tears down the push subscription and the poll timer.
func (c *Client) releaseChannel(channelID string) {
	c.mu.Lock()
	if c.subscribers[channelID] > 0 {
		c.subscribers[channelID]--
	}
	last := c.subscribers[channelID] == 0
	if last {
		delete(c.subscribers, channelID)
	}
	c.mu.Unlock()

	if !last {
		return
	}
	if err := c.push.Unsubscribe(channelID); err != nil {
		logger.DebugCF("client", "push unsubscribe failed", map[string]any{
			"channel": channelID,
			"error":   err.Error(),
		})
	}
	c.stopPoll()
}

// onPushMessage normalizes one pushed payload and ingests it.
func (c *Client) onPushMessage(raw json.RawMessage) {
	msg, err := chat.ParseMessage(raw)
	if err != nil {
		logger.WarnCF("client", "dropping malformed push payload", map[string]any{
			"error": err.Error(),
		})
		return
	}
	c.ingest([]chat.Message{msg})
}

// ingest merges inbound messages through dedup and routes the survivors to
// the badge router. Both push and poll deliveries land here.
func (c *Client) ingest(msgs []chat.Message) {
	byChannel := make(map[string][]chat.Message)
	for _, m := range msgs {
		byChannel[m.ChannelID] = append(byChannel[m.ChannelID], m)
	}
	for channelID, batch := range byChannel {
		accepted := c.store.Merge(channelID, batch)
		for _, m := range accepted {
			c.badges.Observe(m)
		}
		if len(accepted) > 0 {
			c.saveSnapshot(channelID)
		}
	}
}

// reconcile fetches the channel's recent messages once and merges them.
func (c *Client) reconcile(ctx context.Context, channelID string) {
	msgs, err := c.remote.FetchRecent(ctx, channelID)
	if err != nil {
		logger.DebugCF("client", "reconcile fetch failed", map[string]any{
			"channel": channelID,
			"error":   err.Error(),
		})
		return
	}
	c.ingest(msgs)
}

// onPushState reacts to push transport edges: the monitor owns the state
// machine, and a recovered connection triggers one reconcile to close the
// gap the outage left.
func (c *Client) onPushState(connected bool) {
	c.monitor.SetPushLive(connected)
	if !connected {
		return
	}
	c.mu.Lock()
	active := c.active
	runCtx := c.runCtx
	c.mu.Unlock()
	if active != "" && runCtx != nil {
		go c.reconcile(runCtx, active)
	}
}

// onHealthChange enforces push/poll mutual exclusion.
func (c *Client) onHealthChange(s health.State) {
	if s == health.StateConnected {
		c.stopPoll()
		return
	}
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active != "" {
		c.startPoll(active)
	}
}

// startPoll launches the fallback poll loop for a channel. No-op when a
// poll timer already runs or when the session is CONNECTED.
func (c *Client) startPoll(channelID string) {
	if c.monitor.State() == health.StateConnected {
		return
	}

	c.mu.Lock()
	if c.pollCancel != nil || c.runCtx == nil {
		c.mu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(c.runCtx)
	c.pollCancel = cancel
	c.mu.Unlock()

	logger.InfoCF("client", "poll fallback started", map[string]any{"channel": channelID})
	go c.pollLoop(pollCtx, channelID)
}

// stopPoll cancels the poll timer if one is running.
func (c *Client) stopPoll() {
	c.mu.Lock()
	cancel := c.pollCancel
	c.pollCancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		logger.InfoC("client", "poll fallback stopped")
	}
}

// PollActive reports whether a poll timer is currently running.
func (c *Client) PollActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollCancel != nil
}

// pollLoop fetches at the fixed interval until cancelled. Failures are
// swallowed and retried on the next tick.
func (c *Client) pollLoop(ctx context.Context, channelID string) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs, err := c.remote.FetchRecent(ctx, channelID)
			if err != nil {
				logger.DebugCF("client", "poll fetch failed", map[string]any{
					"channel": channelID,
					"error":   err.Error(),
				})
				continue
			}
			c.ingest(msgs)
		}
	}
}

// saveSnapshot persists the channel's current log for first-paint seeding.
func (c *Client) saveSnapshot(channelID string) {
	if err := c.cache.Save(channelID, c.store.Messages(channelID)); err != nil {
		logger.DebugCF("client", "snapshot save failed", map[string]any{
			"channel": channelID,
			"error":   err.Error(),
		})
	}
}
