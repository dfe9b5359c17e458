package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/sentrymost/internal/config"
)

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Sentry.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Mattermost.BaseURL = "https://chat.example.com"
	cfg.Mattermost.Token = "token"
	cfg.Mattermost.ChannelID = "4xp9fdt7pbgium38k3a6kx4ihe"
	return cfg
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := New(validConfig()).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", r.Warnings)
	}
}

func TestValidate_MissingToken(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Mattermost.Token = ""
	r := New(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "config", "mattermost.token")
}

func TestValidate_Warnings(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		category string
		contains string
	}{
		{"public listener", func(c *config.Config) { c.Server.Listen = "0.0.0.0:8080" }, "server", "all interfaces"},
		{"plain http", func(c *config.Config) { c.Mattermost.BaseURL = "http://chat.example.com" }, "mattermost", "unencrypted"},
		{"channel name", func(c *config.Config) { c.Mattermost.ChannelID = "town-square" }, "mattermost", "does not look like"},
		{"short secret", func(c *config.Config) { c.Sentry.Secret = "short" }, "sentry", "shorter than"},
		{"long timeout", func(c *config.Config) { c.Mattermost.Timeout = time.Minute }, "mattermost", "is long"},
		{"debug logging", func(c *config.Config) { c.Service.LogLevel = "debug" }, "service", "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			r := New(cfg).Validate()
			if !r.Valid {
				t.Fatalf("warnings must not invalidate config: %v", r.Errors)
			}
			assertHasWarning(t, r, tt.category, tt.contains)
		})
	}
}

func TestValidate_LocalHTTPIsFine(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Mattermost.BaseURL = "http://localhost:8065"
	r := New(cfg).Validate()
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", r.Warnings)
	}
}

func TestCheckConnectivity(t *testing.T) {
	t.Parallel()
	d := New(validConfig())

	r := d.Validate()
	d.CheckConnectivity(context.Background(), r, stubPinger{})
	if !r.Valid {
		t.Fatalf("expected valid, got: %v", r.Errors)
	}

	r = d.Validate()
	d.CheckConnectivity(context.Background(), r, stubPinger{err: errors.New("connection refused")})
	if r.Valid {
		t.Fatal("expected invalid after failed ping")
	}
	assertHasError(t, r, "mattermost", "connection refused")
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	if got := FormatHuman(&Result{Valid: true}); got != "Configuration valid.\n" {
		t.Errorf("unexpected output: %q", got)
	}

	out := FormatHuman(&Result{
		Valid:    false,
		Errors:   []Issue{{Category: "config", Message: "sentry.secret is required"}},
		Warnings: []Issue{{Category: "server", Field: "server.listen", Message: "public"}},
	})
	for _, want := range []string{"Configuration invalid (1 error(s), 1 warning(s))", "ERROR [config] sentry.secret is required", "WARN  [server] server.listen: public"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	out, err := FormatJSON(&Result{Valid: true, Warnings: []Issue{{Category: "sentry", Message: "m"}}})
	if err != nil {
		t.Fatal(err)
	}
	var decoded Result
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !decoded.Valid || len(decoded.Warnings) != 1 {
		t.Errorf("unexpected decode: %+v", decoded)
	}
}

func assertHasError(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.Category == category && strings.Contains(e.Message, substring) {
			return
		}
	}
	t.Fatalf("expected error with category=%q containing %q, got: %v", category, substring, r.Errors)
}

func assertHasWarning(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Category == category && strings.Contains(w.Message, substring) {
			return
		}
	}
	t.Fatalf("expected warning with category=%q containing %q, got: %v", category, substring, r.Warnings)
}
