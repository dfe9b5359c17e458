package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment variables read in env-only mode.
const (
	EnvBind              = "BIND"
	EnvSentrySecret      = "SENTRY_SECRET"
	EnvMattermostBaseURL = "MATTERMOST_BASE_URL"
	EnvMattermostToken   = "MATTERMOST_TOKEN"
	EnvMattermostChannel = "MATTERMOST_CHANNEL_ID"
	EnvMattermostTimeout = "MATTERMOST_TIMEOUT"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
)

// Load reads and parses configuration from a YAML file.
// A directory is accepted and must contain config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := ResolveConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", absPath, err)
	}
	cfg.Source = absPath

	cfg = applyConfigDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadEnv builds the configuration from environment variables, after loading
// envFile (typically ".env") when it exists. Variables already set in the
// process environment win over the file.
func LoadEnv(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Service: ServiceConfig{
			LogLevel:  os.Getenv(EnvLogLevel),
			LogFormat: os.Getenv(EnvLogFormat),
		},
		Server: ServerConfig{
			Listen: os.Getenv(EnvBind),
		},
		Sentry: SentryConfig{
			Secret: os.Getenv(EnvSentrySecret),
		},
		Mattermost: MattermostConfig{
			BaseURL:   os.Getenv(EnvMattermostBaseURL),
			Token:     os.Getenv(EnvMattermostToken),
			ChannelID: os.Getenv(EnvMattermostChannel),
		},
	}

	if raw := os.Getenv(EnvMattermostTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvMattermostTimeout, err)
		}
		cfg.Mattermost.Timeout = d
	}

	// BIND has no default in env-only mode.
	for _, name := range []string{EnvMattermostToken, EnvMattermostChannel, EnvMattermostBaseURL, EnvSentrySecret, EnvBind} {
		if os.Getenv(name) == "" {
			return nil, fmt.Errorf("%s missing from environment", name)
		}
	}

	cfg = applyConfigDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ResolveConfigFile returns the absolute path of the config file for a file
// or directory argument.
func ResolveConfigFile(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// verifyConfigHash checks the file against .checksums when a manifest exists.
func verifyConfigHash(path string) error {
	dir := filepath.Dir(path)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		if errors.Is(err, ErrNoChecksums) {
			return nil
		}
		return err
	}

	basename := filepath.Base(path)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: sentrymost config lock --config %s", basename, dir, path)
	}

	if err := VerifyFileHash(path, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: sentrymost config lock --config %s", path, err, path)
	}
	return nil
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = defaults.Server.Path
	}
	if cfg.Server.MaxBodySize == "" {
		cfg.Server.MaxBodySize = defaults.Server.MaxBodySize
	}

	if cfg.Sentry.SignatureHeader == "" {
		cfg.Sentry.SignatureHeader = defaults.Sentry.SignatureHeader
	}

	if cfg.Mattermost.Timeout == 0 {
		cfg.Mattermost.Timeout = defaults.Mattermost.Timeout
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place so validation can name the variable.
		return match
	})
}

// Validate performs basic validation on the configuration.
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	switch strings.ToLower(cfg.Service.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		return fmt.Errorf("server.listen %q is not a host:port address: %w", cfg.Server.Listen, err)
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		return fmt.Errorf("server.path must start with '/' (got %q)", cfg.Server.Path)
	}
	if _, err := ParseSize(cfg.Server.MaxBodySize); err != nil {
		return fmt.Errorf("server.max_body_size %q: %w", cfg.Server.MaxBodySize, err)
	}

	required := []struct {
		field string
		value string
	}{
		{"sentry.secret", cfg.Sentry.Secret},
		{"sentry.signature_header", cfg.Sentry.SignatureHeader},
		{"mattermost.base_url", cfg.Mattermost.BaseURL},
		{"mattermost.token", cfg.Mattermost.Token},
		{"mattermost.channel_id", cfg.Mattermost.ChannelID},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.field)
		}
		if err := checkUnresolvedEnvVar(r.field, r.value); err != nil {
			return err
		}
	}

	u, err := url.Parse(cfg.Mattermost.BaseURL)
	if err != nil {
		return fmt.Errorf("mattermost.base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("mattermost.base_url must be an absolute http(s) URL (got %q)", cfg.Mattermost.BaseURL)
	}

	if cfg.Mattermost.Timeout <= 0 {
		return fmt.Errorf("mattermost.timeout must be positive")
	}

	return nil
}

func checkUnresolvedEnvVar(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

// ParseSize parses size strings like "1MB", "64KB", "2048576" to bytes.
func ParseSize(size string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
