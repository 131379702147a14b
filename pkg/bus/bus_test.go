package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsume(t *testing.T) {
	nb := NewNotificationBus()
	defer nb.Close()
	ctx := context.Background()

	in := Notification{Kind: KindMessage, ChannelID: "signals", SenderID: "u1", Excerpt: "hi"}
	if err := nb.Publish(ctx, in); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	out, ok := nb.Consume(ctx)
	if !ok {
		t.Fatal("Consume returned closed")
	}
	if out != in {
		t.Errorf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestPublishAfterClose(t *testing.T) {
	nb := NewNotificationBus()
	nb.Close()

	err := nb.Publish(context.Background(), Notification{Kind: KindMessage})
	if err != ErrBusClosed {
		t.Errorf("Publish after close = %v, want ErrBusClosed", err)
	}
}

func TestConsumeUnblocksOnClose(t *testing.T) {
	nb := NewNotificationBus()
	done := make(chan bool, 1)

	go func() {
		_, ok := nb.Consume(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	nb.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Consume on closed bus reported ok")
		}
	case <-time.After(time.Second):
		t.Fatal("Consume did not unblock on close")
	}
}

func TestConsumeRespectsContext(t *testing.T) {
	nb := NewNotificationBus()
	defer nb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := nb.Consume(ctx); ok {
		t.Error("Consume with expired context reported ok")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	nb := NewNotificationBus()
	nb.Close()
	nb.Close()
}
