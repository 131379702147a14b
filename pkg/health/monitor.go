// Package health tracks reachability of the push transport, the remote
// service, and the host network, and exposes the session's single
// ConnectionState.
//
// The machine has no terminal state: it runs for the lifetime of the
// session and is expected to oscillate as transports fail and recover.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/tickerdesk/chatsync/pkg/logger"
)

// State is the session-wide connection state. Exactly one value at a time.
type State string

const (
	// StateConnecting: push transport is down, remote service reachable
	// (or not yet probed). The poll fallback carries traffic.
	StateConnecting State = "CONNECTING"
	// StateConnected: push transport reports live. No poll timer may run.
	StateConnected State = "CONNECTED"
	// StateDegradedServer: the reachability probe against the remote
	// service fails while the host network reports reachable.
	StateDegradedServer State = "DEGRADED_SERVER"
	// StateDegradedNetwork: the host network reports unreachable.
	StateDegradedNetwork State = "DEGRADED_NETWORK"
)

// DefaultTick is the fixed re-evaluation interval.
const DefaultTick = 2 * time.Second

// ProbeFunc checks remote service reachability. A nil error means reachable.
type ProbeFunc func(ctx context.Context) error

// Monitor owns the ConnectionState. Constructed once per session and passed
// by reference to every consumer; there is no package-level instance.
type Monitor struct {
	mu        sync.Mutex
	state     State
	pushLive  bool
	networkUp bool
	probe     ProbeFunc
	listeners []func(State)
	tick      time.Duration
	kickCh    chan struct{}
}

// NewMonitor creates a monitor in CONNECTING with the network assumed
// reachable until the host signals otherwise.
func NewMonitor(probe ProbeFunc) *Monitor {
	return &Monitor{
		state:     StateConnecting,
		networkUp: true,
		probe:     probe,
		tick:      DefaultTick,
		kickCh:    make(chan struct{}, 1),
	}
}

// SetTick overrides the re-evaluation interval, mainly for tests.
func (m *Monitor) SetTick(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.tick = d
	}
}

// State returns the current connection state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers a listener invoked on every state transition.
func (m *Monitor) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// SetPushLive records a push transport signal. Going live is CONNECTED
// immediately; going down drops to CONNECTING and schedules an immediate
// probe re-evaluation.
func (m *Monitor) SetPushLive(live bool) {
	m.mu.Lock()
	m.pushLive = live
	var notify []func(State)
	var next State
	if live {
		notify, next = m.transitionLocked(StateConnected)
	} else if m.state == StateConnected {
		notify, next = m.transitionLocked(StateConnecting)
	}
	m.mu.Unlock()

	fire(notify, next)
	if !live {
		m.kick()
	}
}

// SetNetworkReachable records the host-provided network signal and
// schedules an immediate re-evaluation.
func (m *Monitor) SetNetworkReachable(up bool) {
	m.mu.Lock()
	m.networkUp = up
	m.mu.Unlock()
	m.kick()
}

// Evaluate recomputes the state from the current signals, probing the
// remote service when the push transport is down.
func (m *Monitor) Evaluate(ctx context.Context) State {
	m.mu.Lock()
	if m.pushLive {
		notify, next := m.transitionLocked(StateConnected)
		m.mu.Unlock()
		fire(notify, next)
		return next
	}
	if !m.networkUp {
		notify, next := m.transitionLocked(StateDegradedNetwork)
		m.mu.Unlock()
		fire(notify, next)
		return next
	}
	probe := m.probe
	m.mu.Unlock()

	target := StateConnecting
	if probe != nil {
		if err := probe(ctx); err != nil {
			logger.DebugCF("health", "probe failed", map[string]any{"error": err.Error()})
			target = StateDegradedServer
		}
	}

	m.mu.Lock()
	// Signals may have moved while the probe was in flight.
	if m.pushLive {
		target = StateConnected
	} else if !m.networkUp {
		target = StateDegradedNetwork
	}
	notify, next := m.transitionLocked(target)
	m.mu.Unlock()
	fire(notify, next)
	return next
}

// Run re-evaluates on a fixed tick and immediately on any signal change,
// until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.mu.Lock()
	tick := m.tick
	m.mu.Unlock()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Evaluate(ctx)
		case <-m.kickCh:
			m.Evaluate(ctx)
		}
	}
}

func (m *Monitor) kick() {
	select {
	case m.kickCh <- struct{}{}:
	default:
	}
}

// transitionLocked switches state and returns the listeners to notify.
// Callers fire them after releasing the lock.
func (m *Monitor) transitionLocked(next State) ([]func(State), State) {
	if m.state == next {
		return nil, next
	}
	logger.InfoCF("health", "connection state changed", map[string]any{
		"from": string(m.state),
		"to":   string(next),
	})
	m.state = next
	listeners := make([]func(State), len(m.listeners))
	copy(listeners, m.listeners)
	return listeners, next
}

func fire(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}
