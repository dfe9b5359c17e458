package config

import "time"

// Config represents the complete sentrymost configuration.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Server     ServerConfig     `yaml:"server"`
	Sentry     SentryConfig     `yaml:"sentry"`
	Mattermost MattermostConfig `yaml:"mattermost"`

	// Source is the file the config was read from; empty in env-only mode.
	Source string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig defines the inbound webhook listener.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	Path        string `yaml:"path"`
	MaxBodySize string `yaml:"max_body_size"` // e.g. "1MB", "65536"
}

// SentryConfig holds the shared webhook secret.
type SentryConfig struct {
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header"`
}

// MattermostConfig identifies where notifications are posted.
type MattermostConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Token     string        `yaml:"token"`
	ChannelID string        `yaml:"channel_id"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "sentrymost",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Listen:      "127.0.0.1:8080",
			Path:        "/alert",
			MaxBodySize: "1MB",
		},
		Sentry: SentryConfig{
			SignatureHeader: "sentry-hook-signature",
		},
		Mattermost: MattermostConfig{
			Timeout: 5 * time.Second,
		},
	}
}
