package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/sentrymost/internal/config"
	"github.com/mattjoyce/sentrymost/internal/doctor"
	"github.com/mattjoyce/sentrymost/internal/lock"
	"github.com/mattjoyce/sentrymost/internal/log"
	"github.com/mattjoyce/sentrymost/internal/mattermost"
	"github.com/mattjoyce/sentrymost/internal/webhook"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		os.Exit(runSystemNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))

	// --- ROOT ALIASES ---
	case "start":
		os.Exit(runStart(args))
	case "version":
		fmt.Printf("sentrymost version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`sentrymost - Relay Sentry issue alerts to a Mattermost channel

Usage:
  sentrymost <noun> <action> [flags]

Core Resources (Nouns):
  system    Relay lifecycle
  config    Configuration validation and integrity

System Commands:
  system start      Start the webhook listener in foreground

Config Commands:
  config check      Validate configuration (optionally ping Mattermost)
  config lock       Write .checksums for the config file

General:
  start             Alias for 'system start'
  version           Show version information
  help              Show this help message

Without a config file, settings are read from the environment (and .env):
  BIND, SENTRY_SECRET, MATTERMOST_BASE_URL, MATTERMOST_TOKEN, MATTERMOST_CHANNEL_ID

Use 'sentrymost <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

// --- HELP ---

func isHelpToken(arg string) bool {
	return arg == "help" || arg == "--help" || arg == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: sentrymost system <action>

Actions:
  start     Start the webhook listener in foreground
`)
}

func printSystemStartHelp() {
	fmt.Print(`Usage: sentrymost system start [--config PATH] [--env-file PATH] [--pid-file PATH]

Flags:
  --config PATH     Config file or directory (default: discovered, else environment)
  --env-file PATH   Dotenv file read in environment mode (default: .env)
  --pid-file PATH   Hold an exclusive lock on PATH while running
`)
}

func printConfigNounHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: sentrymost config <action>

Actions:
  check     Validate configuration
  lock      Write .checksums next to the config file
`)
}

func printConfigCheckHelp() {
	fmt.Print(`Usage: sentrymost config check [--config PATH] [--env-file PATH] [--format human|json] [--json] [--strict] [--ping]

Flags:
  --config PATH     Config file or directory (default: discovered, else environment)
  --env-file PATH   Dotenv file read in environment mode (default: .env)
  --format FORMAT   Output format: human or json (default: human)
  --json            Shorthand for --format json
  --strict          Treat warnings as errors
  --ping            Also check that Mattermost is reachable with the configured token
`)
}

func printConfigLockHelp() {
	fmt.Print(`Usage: sentrymost config lock [--config PATH] [--dry-run] [-v|--verbose]

Flags:
  --config PATH   Config file or directory (default: discovered)
  --dry-run       Compute the hash without writing .checksums
  -v, --verbose   Print the computed hash
`)
}

// --- COMMANDS ---

// loadConfig reads the config file when one is given or discovered, and falls
// back to the environment otherwise.
func loadConfig(configPath, envFile string) (*config.Config, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfig()
		switch {
		case err == nil:
			configPath = discovered
		case errors.Is(err, config.ErrNoConfig):
			return config.LoadEnv(envFile)
		default:
			return nil, err
		}
	}
	return config.Load(configPath)
}

func newMattermostClient(cfg *config.Config) *mattermost.Client {
	return mattermost.NewClient(cfg.Mattermost.BaseURL, cfg.Mattermost.Token,
		mattermost.WithTimeout(cfg.Mattermost.Timeout))
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	envFile := fs.String("env-file", ".env", "Dotenv file for environment mode")
	pidFile := fs.String("pid-file", "", "Refuse to start while another instance holds this pid file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	source := cfg.Source
	if source == "" {
		source = "environment"
	}
	logger.Info("sentrymost starting", "version", version, "config", source)

	if *pidFile != "" {
		pid, err := lock.Acquire(*pidFile)
		if err != nil {
			logger.Error("failed to acquire pid file (another instance may be running)", "path", *pidFile, "error", err)
			return 1
		}
		defer pid.Release()
		logger.Info("acquired pid file", "path", pid.Path())
	}

	whCfg, err := webhook.FromGlobalConfig(cfg, version)
	if err != nil {
		logger.Error("invalid webhook configuration", "error", err)
		return 1
	}

	client := newMattermostClient(cfg)
	server := webhook.New(whCfg, client, log.WithComponent("webhook"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("webhook server failed", "listen", whCfg.Listen, "error", err)
		return 1
	}

	logger.Info("sentrymost stopped")
	return 0
}

func runConfigCheck(args []string) int {
	var configPath, envFile, format string
	var strict, jsonOut, ping bool

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.StringVar(&envFile, "env-file", ".env", "Dotenv file for environment mode")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	fs.BoolVar(&ping, "ping", false, "Check Mattermost reachability")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if jsonOut {
		format = "json"
	}

	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	doc := doctor.New(cfg)
	result := doc.Validate()
	if ping && result.Valid {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Mattermost.Timeout+time.Second)
		doc.CheckConnectivity(ctx, result, newMattermostClient(cfg))
		cancel()
	}

	switch format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 1
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var verbose, verboseShort, dryRun bool

	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&verboseShort, "v", false, "Verbose output")
	fs.BoolVar(&dryRun, "dry-run", false, "Dry run")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	isVerbose := verbose || verboseShort

	if configPath == "" {
		discovered, err := config.DiscoverConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		configPath = discovered
	}

	report, err := config.Lock(configPath, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	if isVerbose {
		fmt.Printf("  HASH %s  %s\n", report.Hash, report.ConfigPath)
	}
	if report.Written {
		fmt.Printf("Wrote %s\n", report.ChecksumPath)
	} else {
		fmt.Printf("Dry run: %s not written\n", report.ChecksumPath)
	}
	return 0
}
