// Package bus carries notification events from the sync core to whatever
// the host product renders them with; toasts, badges, and sounds are all
// external.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed NotificationBus.
var ErrBusClosed = errors.New("notification bus closed")

type NotificationBus struct {
	events chan Notification
	done   chan struct{}
	closed atomic.Bool
}

func NewNotificationBus() *NotificationBus {
	return &NotificationBus{
		events: make(chan Notification, 100),
		done:   make(chan struct{}),
	}
}

func (nb *NotificationBus) Publish(ctx context.Context, n Notification) error {
	if nb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case nb.events <- n:
		return nil
	case <-nb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (nb *NotificationBus) Consume(ctx context.Context) (Notification, bool) {
	select {
	case n, ok := <-nb.events:
		return n, ok
	case <-nb.done:
		return Notification{}, false
	case <-ctx.Done():
		return Notification{}, false
	}
}

// Events exposes the raw channel for select-based consumers.
func (nb *NotificationBus) Events() <-chan Notification {
	return nb.events
}

// Close releases blocked publishers and consumers via the done channel. The
// events channel itself is never closed, so a publisher racing Close can
// never panic on send.
func (nb *NotificationBus) Close() {
	if nb.closed.CompareAndSwap(false, true) {
		close(nb.done)
	}
}
