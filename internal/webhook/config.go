package webhook

import (
	"fmt"

	"github.com/mattjoyce/sentrymost/internal/config"
)

// FromGlobalConfig converts the loaded config.Config to webhook.Config.
func FromGlobalConfig(cfg *config.Config, version string) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	maxBodySize := int64(DefaultMaxBodySize)
	if cfg.Server.MaxBodySize != "" {
		size, err := config.ParseSize(cfg.Server.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("invalid max_body_size %q: %w", cfg.Server.MaxBodySize, err)
		}
		maxBodySize = size
	}

	if cfg.Sentry.Secret == "" {
		return Config{}, fmt.Errorf("no sentry secret configured")
	}

	return Config{
		Listen:          cfg.Server.Listen,
		Path:            cfg.Server.Path,
		Secret:          cfg.Sentry.Secret,
		SignatureHeader: cfg.Sentry.SignatureHeader,
		MaxBodySize:     maxBodySize,
		ChannelID:       cfg.Mattermost.ChannelID,
		NotifyTimeout:   cfg.Mattermost.Timeout,
		Version:         version,
	}, nil
}
