package internal

import (
	"os"
	"path/filepath"

	"github.com/tickerdesk/chatsync/pkg/config"
)

var (
	version   = "dev"
	gitCommit string
)

// GetConfigPath returns the default config file location.
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatsync", "config.json")
}

// LoadConfig loads the config from the default path with env overrides.
func LoadConfig() (*config.Config, error) {
	return config.LoadConfig(GetConfigPath())
}

// FormatVersion returns the version string with optional git commit.
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += " (git: " + gitCommit + ")"
	}
	return v
}
