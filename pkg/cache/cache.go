// Package cache persists per-channel message snapshots so a channel paints
// from local state before the first network round trip completes. The cache
// is never authoritative: everything it returns is re-merged through dedup
// against live deliveries.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/tickerdesk/chatsync/pkg/chat"
	"github.com/tickerdesk/chatsync/pkg/logger"
)

// SnapshotLimit caps how many messages are written per channel file.
const SnapshotLimit = 200

// Cache stores one JSON snapshot file per channel under dir.
type Cache struct {
	dir string
}

// New creates a cache rooted at dir. An empty dir disables persistence:
// Load returns nothing and Save is a no-op.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Load returns the cached snapshot for a channel, or nil when no usable
// snapshot exists. Corrupt or missing files are treated as empty: the
// cache only ever reduces first-paint latency, it never blocks seeding.
func (c *Cache) Load(channelID string) []chat.Message {
	if c.dir == "" {
		return nil
	}
	data, err := os.ReadFile(c.path(channelID))
	if err != nil {
		return nil
	}
	var msgs []chat.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		logger.WarnCF("cache", "discarding corrupt snapshot", map[string]any{
			"channel": channelID,
			"error":   err.Error(),
		})
		return nil
	}
	return msgs
}

// Save writes a channel snapshot, keeping the newest SnapshotLimit entries.
// Failed-send markers are persisted so a reload still shows them.
func (c *Cache) Save(channelID string, msgs []chat.Message) error {
	if c.dir == "" {
		return nil
	}
	if len(msgs) > SnapshotLimit {
		msgs = msgs[len(msgs)-SnapshotLimit:]
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path(channelID), data, 0o600)
}

func (c *Cache) path(channelID string) string {
	return filepath.Join(c.dir, sanitize(channelID)+".json")
}

// sanitize keeps channel ids filesystem-safe.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
