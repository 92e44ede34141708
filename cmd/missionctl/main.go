package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/missionctl/internal/agentcli"
	"github.com/mattjoyce/missionctl/internal/api"
	"github.com/mattjoyce/missionctl/internal/auth"
	"github.com/mattjoyce/missionctl/internal/config"
	"github.com/mattjoyce/missionctl/internal/dispatch"
	"github.com/mattjoyce/missionctl/internal/doctor"
	"github.com/mattjoyce/missionctl/internal/events"
	"github.com/mattjoyce/missionctl/internal/gateway"
	"github.com/mattjoyce/missionctl/internal/lock"
	"github.com/mattjoyce/missionctl/internal/log"
	"github.com/mattjoyce/missionctl/internal/orchestrator"
	"github.com/mattjoyce/missionctl/internal/store"
	"github.com/mattjoyce/missionctl/internal/supervisor"
	"github.com/mattjoyce/missionctl/internal/tui"
	"github.com/mattjoyce/missionctl/internal/tui/watch"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "task":
		return runTaskNoun(args)

	// --- ROOT ALIASES ---
	case "start":
		return runStart(args)
	case "doctor":
		return runDoctor(args)
	case "watch":
		return runWatch(args)
	case "dispatch":
		return runDispatch(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runSystemNoun(args []string) int {
	if len(args) < 1 || args[0] == "help" {
		printSystemNounHelp()
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		return runStart(actionArgs)
	case "doctor":
		return runDoctor(actionArgs)
	case "watch":
		return runWatch(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		printSystemNounHelp()
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 || args[0] == "help" {
		printConfigNounHelp()
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "hash-update", "lock":
		return runConfigHashUpdate(args[1:])
	case "check":
		return runDoctor(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		printConfigNounHelp()
		return 1
	}
}

func runTaskNoun(args []string) int {
	if len(args) < 1 || args[0] == "help" {
		printTaskNounHelp()
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "browse", "list":
		return runBrowse(args[1:])
	case "dispatch":
		return runDispatch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown task action: %s\n", args[0])
		printTaskNounHelp()
		return 1
	}
}

// --- ACTION IMPLEMENTATIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("missionctl starting", "version", version, "config", *configPath)

	pidLockPath := filepath.Join(cfg.Store.Path, "missionctl.pid")
	pidLock, err := lock.AcquirePIDLock(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	st, err := store.NewFileStore(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open record store", "path", cfg.Store.Path, "error", err)
		return 1
	}
	logger.Info("record store opened", "path", cfg.Store.Path)

	hub := events.NewHub(500)
	registry := supervisor.DefaultRegistry()
	sup := supervisor.NewService(registry, st, hub)

	var gwClient *gateway.Client
	if cfg.Gateway.URL != "" {
		gwClient = gateway.NewClient(gateway.Config{
			URL:   cfg.Gateway.URL,
			Token: cfg.Gateway.Token,
		}, cfg.Gateway.Timeout)
		logger.Info("gateway configured", "url", cfg.Gateway.URL)
	} else {
		logger.Warn("no gateway configured, dispatch will use the agent CLI only")
	}

	var runner *agentcli.Runner
	if cfg.AgentCLI.Bin != "" {
		runner = agentcli.NewRunner(cfg.AgentCLI.Bin)
		logger.Info("agent CLI configured", "bin", cfg.AgentCLI.Bin)
	}

	var strategies []dispatch.Strategy
	var gwSender dispatch.GatewaySender
	if gwClient != nil {
		gwSender = gwClient
		strategies = append(strategies, &dispatch.GatewayStrategy{Gateway: gwClient})
	}
	if runner != nil {
		strategies = append(strategies, &dispatch.CLIStrategy{Runner: runner})
	}
	if len(strategies) == 0 {
		logger.Error("no delivery channel available; configure gateway.url or agent_cli.bin")
		return 1
	}

	disp := dispatch.New(st, hub, gwSender, strategies)
	orch := orchestrator.New(st, disp, hub, orchestrator.Options{
		TickInterval: cfg.Service.TickInterval,
		RetryAfter:   cfg.Service.RetryAfter,
		MaxAttempts:  cfg.Service.MaxAttempts,
		StuckAfter:   cfg.Service.StuckAfter,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	if cfg.Service.OrchestratorEnabled {
		orch.Start(ctx)
		defer orch.Stop()
	} else {
		logger.Warn("orchestrator disabled; stale tasks will not be swept")
	}

	if cfg.API.Enabled {
		tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
		for _, t := range cfg.API.Auth.Tokens {
			tokens = append(tokens, auth.TokenConfig{
				Token:  t.Token,
				Scopes: t.Scopes,
			})
		}
		apiConfig := api.Config{
			Listen:         cfg.API.Listen,
			APIKey:         cfg.API.Auth.APIKey,
			Tokens:         tokens,
			AllowedOrigins: cfg.API.CORSOrigins,
			AutoDispatch:   cfg.Service.AutoDispatch,
		}
		var gw api.GatewayClient
		if gwClient != nil {
			gw = gwClient
		}
		var cron api.CronRunner
		if runner != nil {
			cron = runner
		}
		apiServer := api.New(apiConfig, st, disp, sup, gw, cron, hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("missionctl running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("missionctl stopped")
	return 0
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output validation result as JSON")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	d := doctor.New(cfg, supervisor.DefaultRegistry())
	result := d.Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if *strict && len(result.Warnings) > 0 {
		return 1
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Mission control API URL")
	apiKey := fs.String("api-key", os.Getenv("MISSIONCTL_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or MISSIONCTL_API_KEY env var.")
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runBrowse(args []string) int {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Mission control API URL")
	apiKey := fs.String("api-key", os.Getenv("MISSIONCTL_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or MISSIONCTL_API_KEY env var.")
		return 1
	}

	b := tui.NewBrowser(*apiURL, *apiKey)
	p := tea.NewProgram(b)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// runDispatch fires a one-off dispatch from the command line, without going
// through the HTTP API. Useful for scripted and cron-driven delivery.
func runDispatch(args []string) int {
	fs := flag.NewFlagSet("dispatch", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file or directory")
	agentID := fs.String("agent", "", "Dispatch to a single agent instead of all assignees")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: missionctl dispatch [--config PATH] [--agent ID] <task_id>")
		return 1
	}
	taskID := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup("ERROR")
	st, err := store.NewFileStore(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open record store: %v\n", err)
		return 1
	}

	var strategies []dispatch.Strategy
	var gwSender dispatch.GatewaySender
	if cfg.Gateway.URL != "" {
		gwClient := gateway.NewClient(gateway.Config{
			URL:   cfg.Gateway.URL,
			Token: cfg.Gateway.Token,
		}, cfg.Gateway.Timeout)
		gwSender = gwClient
		strategies = append(strategies, &dispatch.GatewayStrategy{Gateway: gwClient})
	}
	if cfg.AgentCLI.Bin != "" {
		strategies = append(strategies, &dispatch.CLIStrategy{Runner: agentcli.NewRunner(cfg.AgentCLI.Bin)})
	}
	if len(strategies) == 0 {
		fmt.Fprintln(os.Stderr, "No delivery channel available; configure gateway.url or agent_cli.bin")
		return 1
	}

	disp := dispatch.New(st, nil, gwSender, strategies)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	records, err := disp.RetryDispatch(ctx, taskID, *agentID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dispatch failed: %v\n", err)
		return 1
	}

	out, _ := json.MarshalIndent(records, "", "  ")
	fmt.Println(string(out))

	for _, rec := range records {
		if rec.Status != dispatch.StatusDispatched {
			return 1
		}
	}
	return 0
}

func runConfigHashUpdate(args []string) int {
	fs := flag.NewFlagSet("hash-update", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	absPath, err := filepath.Abs(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve config path: %v\n", err)
		return 1
	}
	if err := config.GenerateChecksums(absPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update checksums: %v\n", err)
		return 1
	}
	fmt.Printf("Updated checksums for %s\n", absPath)
	return 0
}

// --- VERSION ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: missionctl version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("missionctl %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// --- HELP ---

func printUsage() {
	fmt.Print(`missionctl - Agent task dispatch and orchestration service

Usage:
  missionctl <noun> <action> [flags]

Core Resources (Nouns):
  system    Service lifecycle and health
  config    Configuration and integrity
  task      Task inspection and dispatch

System Commands:
  system start      Start the dispatch service in foreground
  system doctor     Validate configuration and environment
  system watch      Real-time dispatch monitoring TUI

Config Commands:
  config hash-update  Authorize current config (update integrity hash)
  config check        Validate configuration (alias for doctor)

Task Commands:
  task browse       Interactive task browser TUI
  task dispatch     Dispatch a task from the command line

General:
  --version         Show version information
  version           Show version information
  help              Show this help message
`)
}

func printSystemNounHelp() {
	fmt.Println("Usage: missionctl system <start|doctor|watch> [flags]")
}

func printConfigNounHelp() {
	fmt.Println("Usage: missionctl config <hash-update|check> [flags]")
}

func printTaskNounHelp() {
	fmt.Println("Usage: missionctl task <browse|dispatch> [flags]")
}
