// Package config loads chatsync configuration: defaults first, then the
// JSON config file, then CHATSYNC_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Remote RemoteConfig `json:"remote"`
	Viewer ViewerConfig `json:"viewer"`
	Sync   SyncConfig   `json:"sync"`
	Cache  CacheConfig  `json:"cache"`
}

// RemoteConfig points at the channel/message service and its push endpoint.
type RemoteConfig struct {
	BaseURL   string `env:"CHATSYNC_REMOTE_BASE_URL"   json:"base_url"`
	PushURL   string `env:"CHATSYNC_REMOTE_PUSH_URL"   json:"push_url"`
	AuthToken string `env:"CHATSYNC_REMOTE_AUTH_TOKEN" json:"auth_token,omitempty"`
}

// ViewerConfig is the session context: who is reading, and what their
// subscription status is. Tier derivation happens in pkg/access.
type ViewerConfig struct {
	ID           string `env:"CHATSYNC_VIEWER_ID"           json:"id"`
	Handle       string `env:"CHATSYNC_VIEWER_HANDLE"       json:"handle"`
	Subscription string `env:"CHATSYNC_VIEWER_SUBSCRIPTION" json:"subscription"`
}

// SyncConfig tunes the synchronization core. The poll interval is fixed and
// short on purpose: poll failures are swallowed and retried next tick, never
// backed off, because staleness during an outage beats silence.
type SyncConfig struct {
	PollIntervalMs int    `env:"CHATSYNC_SYNC_POLL_INTERVAL_MS" json:"poll_interval_ms"`
	HealthTickMs   int    `env:"CHATSYNC_SYNC_HEALTH_TICK_MS"   json:"health_tick_ms"`
	DedupWindowMs  int    `env:"CHATSYNC_SYNC_DEDUP_WINDOW_MS"  json:"dedup_window_ms"`
	StartChannel   string `env:"CHATSYNC_SYNC_START_CHANNEL"    json:"start_channel,omitempty"`
}

// CacheConfig controls the local first-paint snapshot cache.
type CacheConfig struct {
	Enabled bool   `env:"CHATSYNC_CACHE_ENABLED" json:"enabled"`
	Dir     string `env:"CHATSYNC_CACHE_DIR"     json:"dir"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Remote: RemoteConfig{
			BaseURL: "http://localhost:8480",
			PushURL: "ws://localhost:8480/v1/push",
		},
		Sync: SyncConfig{
			PollIntervalMs: 1000,
			HealthTickMs:   2000,
			DedupWindowMs:  3000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     filepath.Join(home, ".chatsync", "cache"),
		},
	}
}

// LoadConfig reads the config file at path (missing file means defaults)
// and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration, creating the directory if needed.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects configurations the sync core cannot run with.
func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote.base_url is required")
	}
	if c.Remote.PushURL == "" {
		return errors.New("remote.push_url is required")
	}
	if c.Sync.PollIntervalMs <= 0 {
		return errors.New("sync.poll_interval_ms must be positive")
	}
	if c.Sync.HealthTickMs <= 0 {
		return errors.New("sync.health_tick_ms must be positive")
	}
	return nil
}

// CacheDir returns the snapshot cache directory, or "" when caching is off.
func (c *Config) CacheDir() string {
	if !c.Cache.Enabled {
		return ""
	}
	return c.Cache.Dir
}
