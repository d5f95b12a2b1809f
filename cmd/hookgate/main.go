package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/doctor"
	"github.com/mattjoyce/hookgate/internal/feed"
	"github.com/mattjoyce/hookgate/internal/journal"
	"github.com/mattjoyce/hookgate/internal/lock"
	"github.com/mattjoyce/hookgate/internal/log"
	"github.com/mattjoyce/hookgate/internal/storage"
	"github.com/mattjoyce/hookgate/internal/tui/watch"
	"github.com/mattjoyce/hookgate/internal/tunnel"
	"github.com/mattjoyce/hookgate/internal/webhook"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "watch":
		os.Exit(runWatch(args))
	case "doctor":
		os.Exit(runDoctor(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "version":
		fmt.Printf("hookgate version %s\n", version)
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
	fmt.Print(`hookgate - Webhook gateway with managed tunnel lifecycle

Usage:
  hookgate <command> [flags]

Commands:
  start         Start the webhook server and tunnel in foreground
  watch         Live delivery dashboard
  doctor        Validate configuration
  config lock   Authorize current config state (update integrity hash)
  config check  Alias for doctor

General:
  version       Show version information
  help          Show this help message

Use 'hookgate <command> --help' for command-specific flags.
`)
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
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "check":
		if hasHelpFlag(actionArgs) {
			printDoctorHelp()
			return 0
		}
		return runDoctor(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: hookgate config <action> [flags]")
	fmt.Fprintln(w, "Actions: lock, check")
}

func printConfigLockHelp() {
	fmt.Println("Usage: hookgate config lock [--config PATH] [--dry-run]")
	fmt.Println("Authorize current configuration state by regenerating the integrity hash.")
}

func printDoctorHelp() {
	fmt.Println("Usage: hookgate doctor [--config PATH] [--format human|json] [--strict] [--json]")
	fmt.Println("Validate configuration syntax, feeds, and tunnel settings.")
}

// --- ACTION IMPLEMENTATIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("hookgate starting", "version", version, "config", resolvedPath)

	pidLockPath := getPIDLockPath(cfg)
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open delivery journal", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("delivery journal opened", "path", cfg.State.Path)

	registry := feed.NewRegistry()
	for _, fc := range cfg.Feeds {
		handler := feed.LogHandler(log.WithFeed(fc.Name))
		if fc.ForwardURL != "" {
			handler = feed.ForwardHandler(fc.ForwardURL, log.WithFeed(fc.Name))
		}
		auth := feed.AllowAll()
		if fc.Token != "" {
			auth = feed.TokenAuthenticator(fc.Token)
		}
		if err := registry.Subscribe(fc.Name, handler, auth); err != nil {
			logger.Error("failed to subscribe feed", "feed", fc.Name, "error", err)
			return 1
		}
		logger.Info("feed subscribed", "feed", fc.Name, "forward_url", fc.ForwardURL)
	}

	provider := tunnel.NewAgentClient(cfg.Webhook.Tunnel.AgentAPI)
	provider.SetAuthToken(cfg.Webhook.Tunnel.AuthToken)

	server := webhook.New(
		webhook.Config{Host: cfg.Webhook.Host, Port: cfg.Webhook.Port},
		registry,
		provider,
		journal.New(db),
		log.WithComponent("webhook"),
	)

	if err := server.Start(); err != nil {
		logger.Error("webhook server failed to start", "error", err)
		return 1
	}
	defer server.Stop()

	msg, healthy := server.StartupMessage()
	fmt.Println(msg)
	if !healthy {
		logger.Warn("webhook bind address is not fully resolved")
	}
	for _, name := range registry.Names() {
		logger.Info("feed reachable", "feed", name, "url", server.SubscriptionURL(name))
	}

	logger.Info("hookgate running (press Ctrl+C to stop)")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	server.Stop()
	logger.Info("hookgate stopped")
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	db, err := storage.OpenSQLite(context.Background(), cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open delivery journal: %v\n", err)
		return 1
	}
	defer db.Close()

	model := watch.New(journal.New(db), "")
	if _, err := tea.NewProgram(model).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch TUI failed: %v\n", err)
		return 1
	}
	return 0
}

func runDoctor(args []string) int {
	var configPath string
	var strict, jsonOut bool
	var format string

	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if jsonOut {
		format = "json"
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()

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
		return 2
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var dryRun bool

	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&dryRun, "dry-run", false, "Dry run")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		configPath = discovered
	}

	manifestPath, hash, err := config.Lock(configPath, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	fmt.Printf("  HASH %s: %s\n", filepath.Base(configPath), hash)
	if dryRun {
		fmt.Printf("  DRY-RUN .checksums: %s (not written)\n", manifestPath)
		fmt.Println("Dry run completed (no files written).")
	} else {
		fmt.Printf("  WROTE .checksums: %s\n", manifestPath)
		fmt.Println("Successfully locked configuration.")
	}
	return 0
}

func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, "", err
		}
		configPath = discovered
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

// getPIDLockPath derives the lock file from the journal path, so the lock and
// the database always live in the same directory.
func getPIDLockPath(cfg *config.Config) string {
	dbPath := cfg.State.Path
	dbDir := filepath.Dir(dbPath)
	dbBase := filepath.Base(dbPath)
	ext := filepath.Ext(dbBase)
	return filepath.Join(dbDir, dbBase[:len(dbBase)-len(ext)]+".pid")
}
