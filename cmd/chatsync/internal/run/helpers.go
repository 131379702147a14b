package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tickerdesk/chatsync/cmd/chatsync/internal"
	"github.com/tickerdesk/chatsync/pkg/access"
	"github.com/tickerdesk/chatsync/pkg/bus"
	"github.com/tickerdesk/chatsync/pkg/cache"
	"github.com/tickerdesk/chatsync/pkg/client"
	"github.com/tickerdesk/chatsync/pkg/logger"
	"github.com/tickerdesk/chatsync/pkg/remote"
	"github.com/tickerdesk/chatsync/pkg/store"
	"github.com/tickerdesk/chatsync/pkg/transport"
)

func runCmd(debug bool, startChannel string) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if startChannel == "" {
		startChannel = cfg.Sync.StartChannel
	}

	remoteClient, err := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.AuthToken)
	if err != nil {
		return fmt.Errorf("error creating remote client: %w", err)
	}
	push := transport.NewWSTransport(cfg.Remote.PushURL, cfg.Remote.AuthToken)

	session, err := client.New(client.Options{
		Viewer: client.Viewer{
			ID:     cfg.Viewer.ID,
			Handle: cfg.Viewer.Handle,
			Tier:   access.TierFromSubscription(cfg.Viewer.Subscription),
		},
		Remote:       remoteClient,
		Push:         push,
		Store:        store.New(store.NewDedupEngine(int64(cfg.Sync.DedupWindowMs))),
		Cache:        cache.New(cfg.CacheDir()),
		PollInterval: millis(cfg.Sync.PollIntervalMs),
		HealthTick:   millis(cfg.Sync.HealthTickMs),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("error starting session: %w", err)
	}
	defer session.Stop()

	if startChannel != "" {
		if err := session.SwitchActiveChannel(ctx, startChannel); err != nil {
			return fmt.Errorf("error activating channel %s: %w", startChannel, err)
		}
	}

	fmt.Printf("chatsync %s running (state: %s)\n", internal.FormatVersion(), session.ConnectionState())

	go streamNotifications(ctx, session)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nShutting down...")
	return nil
}

// streamNotifications logs unread/mention events until the session closes.
func streamNotifications(ctx context.Context, session *client.Client) {
	for {
		n, ok := session.NextNotification(ctx)
		if !ok {
			return
		}
		logNotification(n)
	}
}

func logNotification(n bus.Notification) {
	fields := map[string]any{
		"channel": n.ChannelID,
		"sender":  n.SenderID,
		"excerpt": n.Excerpt,
	}
	if n.Kind == bus.KindMention {
		logger.InfoCF("notify", "you were mentioned", fields)
		return
	}
	logger.InfoCF("notify", "new message", fields)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
