package webhook

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks github.com/mattjoyce/sentrymost/internal/webhook Notifier

// Notifier delivers a rendered message to a chat channel.
type Notifier interface {
	CreatePost(ctx context.Context, channelID, message string) error
}

// Config holds webhook server configuration.
type Config struct {
	// Listen is the bind address, e.g. "127.0.0.1:8080".
	Listen string

	// Path is the alert endpoint (default "/alert").
	Path string

	// Secret is the HMAC key shared with Sentry.
	Secret string

	// SignatureHeader carries the hex digest (default "sentry-hook-signature").
	SignatureHeader string

	// MaxBodySize is the maximum accepted request body in bytes (default 1MB).
	MaxBodySize int64

	// ChannelID is the Mattermost channel notifications go to.
	ChannelID string

	// NotifyTimeout bounds a single notification attempt (default 5s).
	NotifyTimeout time.Duration

	// Version is reported by /healthz.
	Version string
}

// StatusResponse is the JSON body for acknowledged requests.
type StatusResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the JSON body for /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version,omitempty"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Default values
const (
	DefaultPath            = "/alert"
	DefaultSignatureHeader = "sentry-hook-signature"
	DefaultMaxBodySize     = 1048576 // 1 MB
	DefaultNotifyTimeout   = 5 * time.Second
)
