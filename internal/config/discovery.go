package config

import (
	"errors"
	"os"
	"path/filepath"
)

// EnvConfigPath overrides config discovery.
const EnvConfigPath = "SENTRYMOST_CONFIG"

// ErrNoConfig means discovery found no config file; callers fall back to env-only mode.
var ErrNoConfig = errors.New("no config found (checked: $SENTRYMOST_CONFIG, ~/.config/sentrymost/config.yaml, /etc/sentrymost/config.yaml, ./config.yaml)")

// DiscoverConfig finds the config file by checking standard locations.
// Priority order: $SENTRYMOST_CONFIG, ~/.config/sentrymost, /etc/sentrymost, ./config.yaml
func DiscoverConfig() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	candidates := make([]string, 0, 3)
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "sentrymost", "config.yaml"))
	}
	candidates = append(candidates,
		filepath.Join("/etc", "sentrymost", "config.yaml"),
		"config.yaml",
	)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", ErrNoConfig
}
