// Package doctor validates sentrymost configuration and reachability.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mattjoyce/sentrymost/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Pinger checks that the chat server is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// mattermostIDPattern matches the 26 character ids Mattermost uses for channels.
var mattermostIDPattern = regexp.MustCompile(`^[a-z0-9]{26}$`)

const minSecretLength = 16

// Validate runs all static checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateConfig(r)
	d.warnPublicListener(r)
	d.warnInsecureBaseURL(r)
	d.warnChannelID(r)
	d.warnWeakSecret(r)
	d.warnTimeout(r)
	d.warnDebugLogging(r)

	r.Valid = len(r.Errors) == 0
	return r
}

// CheckConnectivity pings the chat server and records an error on failure.
func (d *Doctor) CheckConnectivity(ctx context.Context, r *Result, p Pinger) {
	if err := p.Ping(ctx); err != nil {
		d.addError(r, "mattermost", "mattermost.base_url",
			fmt.Sprintf("server not reachable: %v", err))
	}
	r.Valid = len(r.Errors) == 0
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateConfig re-runs the loader's validation so programmatic configs are covered too.
func (d *Doctor) validateConfig(r *Result) {
	if err := config.Validate(d.cfg); err != nil {
		d.addError(r, "config", "", err.Error())
	}
}

// warnPublicListener flags binds on every interface.
func (d *Doctor) warnPublicListener(r *Result) {
	host, _, err := net.SplitHostPort(d.cfg.Server.Listen)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		d.addWarning(r, "server", "server.listen",
			fmt.Sprintf("listening on all interfaces (%s); consider a reverse proxy with TLS", d.cfg.Server.Listen))
	}
}

// warnInsecureBaseURL flags plain-http chat servers; the bearer token travels in clear.
func (d *Doctor) warnInsecureBaseURL(r *Result) {
	u, err := url.Parse(d.cfg.Mattermost.BaseURL)
	if err != nil || u.Scheme != "http" {
		return
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return
	}
	d.addWarning(r, "mattermost", "mattermost.base_url",
		"base_url uses http; the bearer token is sent unencrypted")
}

// warnChannelID flags values that look like channel names instead of ids.
func (d *Doctor) warnChannelID(r *Result) {
	id := d.cfg.Mattermost.ChannelID
	if id == "" || mattermostIDPattern.MatchString(id) {
		return
	}
	d.addWarning(r, "mattermost", "mattermost.channel_id",
		fmt.Sprintf("channel_id %q does not look like a Mattermost id (26 lowercase alphanumerics); channel names are not accepted by the posts API", id))
}

func (d *Doctor) warnWeakSecret(r *Result) {
	if s := d.cfg.Sentry.Secret; s != "" && len(s) < minSecretLength {
		d.addWarning(r, "sentry", "sentry.secret",
			fmt.Sprintf("secret is shorter than %d characters", minSecretLength))
	}
}

// warnTimeout flags timeouts long enough to hold webhook connections open.
func (d *Doctor) warnTimeout(r *Result) {
	if d.cfg.Mattermost.Timeout > 30*time.Second {
		d.addWarning(r, "mattermost", "mattermost.timeout",
			fmt.Sprintf("timeout %s is long; Sentry waits on the notification before receiving its response", d.cfg.Mattermost.Timeout))
	}
}

func (d *Doctor) warnDebugLogging(r *Result) {
	if strings.EqualFold(d.cfg.Service.LogLevel, "debug") {
		d.addWarning(r, "service", "service.log_level",
			"debug logging records alert payload data")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
