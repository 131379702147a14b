// Package transport implements the push side of message delivery: a
// websocket client over which the remote service proactively delivers new
// messages for subscribed channels.
//
// Push is a delivery optimization, never the persistence path. Losing it
// degrades the session to polling; it never loses a send.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tickerdesk/chatsync/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 45 * time.Second
	pingInterval = 15 * time.Second
	ackWait      = 10 * time.Second
)

// MessageHandler receives the raw payload of one pushed message. Payloads
// are handed to the normalization boundary before anything else sees them.
type MessageHandler func(raw json.RawMessage)

// Push is the subscription surface the coordinator consumes. The concrete
// WSTransport below speaks websocket; tests substitute fakes.
type Push interface {
	Start(ctx context.Context) error
	Stop()
	Subscribe(channelID string, onMessage MessageHandler) error
	Unsubscribe(channelID string) error
	IsConnected() bool
	OnStateChange(fn func(connected bool))
	// OnBroadcast receives message frames for channels without their own
	// subscription handler. The service pushes background-channel traffic
	// so the badge router can keep unread counts for non-active channels.
	OnBroadcast(fn MessageHandler)
}

// frame is the wire format. Requests carry an id echoed by the matching ack.
type frame struct {
	Type    string          `json:"type"` // "subscribe" | "unsubscribe" | "ack" | "message"
	ID      uint64          `json:"id,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WSTransport maintains one websocket connection, resubscribing to all
// channels after every redial.
type WSTransport struct {
	url       string
	authToken string

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
	subs      map[string]MessageHandler
	broadcast MessageHandler
	listeners []func(bool)
	cancel    context.CancelFunc

	nextID  atomic.Uint64
	pending map[uint64]chan error
	pendMu  sync.Mutex
}

// NewWSTransport creates an unstarted transport for the given ws:// or
// wss:// endpoint.
func NewWSTransport(url, authToken string) *WSTransport {
	return &WSTransport{
		url:       url,
		authToken: authToken,
		subs:      make(map[string]MessageHandler),
		pending:   make(map[uint64]chan error),
	}
}

// Start launches the dial/read/redial loop. It returns once the loop is
// running; connection state is reported through OnStateChange listeners.
func (t *WSTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return fmt.Errorf("push transport already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(runCtx)
	return nil
}

// Stop tears down the connection and the redial loop.
func (t *WSTransport) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	conn := t.conn
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// IsConnected reports whether the websocket is currently live.
func (t *WSTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// OnStateChange registers a listener for connect/disconnect edges.
func (t *WSTransport) OnStateChange(fn func(bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// OnBroadcast registers the fallback handler for unsubscribed channels.
func (t *WSTransport) OnBroadcast(fn MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcast = fn
}

// Subscribe registers a handler and, when connected, sends the subscribe
// request. While disconnected the subscription is recorded and replayed on
// the next successful dial.
func (t *WSTransport) Subscribe(channelID string, onMessage MessageHandler) error {
	t.mu.Lock()
	t.subs[channelID] = onMessage
	connected := t.connected
	t.mu.Unlock()

	if !connected {
		return nil
	}
	return t.request("subscribe", channelID)
}

// Unsubscribe drops the handler and, when connected, tells the service to
// stop delivering for the channel.
func (t *WSTransport) Unsubscribe(channelID string) error {
	t.mu.Lock()
	delete(t.subs, channelID)
	connected := t.connected
	t.mu.Unlock()

	if !connected {
		return nil
	}
	return t.request("unsubscribe", channelID)
}

// run dials, reads until failure, and redials with backoff until cancelled.
func (t *WSTransport) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := t.dial(ctx)
		if err != nil {
			attempt++
			delay := redialDelay(attempt)
			logger.WarnCF("transport", "push dial failed", map[string]any{
				"attempt": attempt,
				"retry":   delay.String(),
				"error":   err.Error(),
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		t.setConnected(conn)
		t.resubscribe()

		pingCtx, stopPing := context.WithCancel(ctx)
		go t.pingLoop(pingCtx, conn)
		t.readLoop(conn)
		stopPing()

		t.setDisconnected()
		logger.InfoC("transport", "push connection closed")
	}
}

func (t *WSTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := map[string][]string{}
	if t.authToken != "" {
		header["Authorization"] = []string{"Bearer " + t.authToken}
	}
	conn, resp, err := dialer.DialContext(ctx, t.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (t *WSTransport) setConnected(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.connected = true
	listeners := make([]func(bool), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(true)
	}
}

func (t *WSTransport) setDisconnected() {
	t.mu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn = nil
	t.connected = false
	listeners := make([]func(bool), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	t.failPending()
	for _, fn := range listeners {
		fn(false)
	}
}

// resubscribe replays all recorded subscriptions on a fresh connection.
func (t *WSTransport) resubscribe() {
	t.mu.Lock()
	channels := make([]string, 0, len(t.subs))
	for ch := range t.subs {
		channels = append(channels, ch)
	}
	t.mu.Unlock()

	for _, ch := range channels {
		if err := t.request("subscribe", ch); err != nil {
			logger.WarnCF("transport", "resubscribe failed", map[string]any{
				"channel": ch,
				"error":   err.Error(),
			})
		}
	}
}

// request sends a correlated request frame and waits for its ack.
func (t *WSTransport) request(kind, channelID string) error {
	id := t.nextID.Add(1)
	ch := make(chan error, 1)

	t.pendMu.Lock()
	t.pending[id] = ch
	t.pendMu.Unlock()
	defer func() {
		t.pendMu.Lock()
		delete(t.pending, id)
		t.pendMu.Unlock()
	}()

	if err := t.writeFrame(frame{Type: kind, ID: id, Channel: channelID}); err != nil {
		return err
	}

	select {
	case err := <-ch:
		return err
	case <-time.After(ackWait):
		return fmt.Errorf("%s %s: ack timeout", kind, channelID)
	}
}

func (t *WSTransport) writeFrame(f frame) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("push transport not connected")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	// gorilla permits one concurrent writer per connection.
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.WarnCF("transport", "dropping malformed frame", map[string]any{"error": err.Error()})
			continue
		}
		t.dispatch(f)
	}
}

func (t *WSTransport) dispatch(f frame) {
	switch f.Type {
	case "ack":
		t.pendMu.Lock()
		ch, ok := t.pending[f.ID]
		t.pendMu.Unlock()
		if ok {
			if f.Error != "" {
				ch <- fmt.Errorf("%s", f.Error)
			} else {
				ch <- nil
			}
		}
	case "message":
		t.mu.Lock()
		handler := t.subs[f.Channel]
		if handler == nil {
			handler = t.broadcast
		}
		t.mu.Unlock()
		if handler != nil {
			handler(f.Payload)
		}
	default:
		logger.DebugCF("transport", "ignoring frame", map[string]any{"type": f.Type})
	}
}

func (t *WSTransport) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// failPending unblocks requests in flight when the connection drops.
func (t *WSTransport) failPending() {
	t.pendMu.Lock()
	defer t.pendMu.Unlock()
	for id, ch := range t.pending {
		select {
		case ch <- fmt.Errorf("connection lost"):
		default:
		}
		delete(t.pending, id)
	}
}
