// Personabot entry point.
//
// Usage:
//
//	personabot serve                       # start the bot
//	personabot serve --config config.yaml  # with a config file
//	personabot version                     # print version info
//	personabot health                      # probe a running instance
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/personabot/personabot/character"
	"github.com/personabot/personabot/config"
	"github.com/personabot/personabot/conversation"
	"github.com/personabot/personabot/internal/metrics"
	"github.com/personabot/personabot/llm"
	"github.com/personabot/personabot/llm/providers/openaicompat"
	"github.com/personabot/personabot/llm/providers/yandex"
	"github.com/personabot/personabot/session"
	"github.com/personabot/personabot/telegram"
)

// Injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting personabot",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// Interface-typed so a disabled collector stays a true nil behind
	// the consumers' nil checks.
	var (
		completionMetrics llm.MetricsRecorder
		sessionGauge      session.SessionGauge
		turnRecorder      conversation.TurnRecorder
		updateRecorder    telegram.UpdateRecorder
	)
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector("personabot", prometheus.DefaultRegisterer, logger)
		completionMetrics = collector
		sessionGauge = collector
		turnRecorder = collector
		updateRecorder = collector
		go serveMetrics(cfg.Metrics.Port, logger)
	}

	completer, err := buildCompleter(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("failed to build completion provider", zap.Error(err))
	}
	completer = llm.WithMetrics(completer, completionMetrics)

	catalog := character.NewCatalog(cfg.Characters.Path, logger)
	registry := session.NewRegistry(catalog, completer, sessionGauge, logger)
	orchestrator := conversation.New(catalog, completer, conversation.Config{
		TurnDelay: cfg.Conversation.TurnDelay,
	}, turnRecorder, logger)

	client := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.BaseURL, cfg.Telegram.PollTimeout, logger)
	bot := telegram.NewBot(client, registry, orchestrator, catalog, telegram.BotConfig{
		AdminChatIDs:  cfg.Telegram.AdminChatIDs,
		PollTimeout:   cfg.Telegram.PollTimeout,
		SendInterval:  cfg.Telegram.SendInterval,
		DefaultRounds: cfg.Conversation.DefaultRounds,
	}, updateRecorder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("bot terminated", zap.Error(err))
	}
	logger.Info("personabot stopped")
}

func buildCompleter(cfg config.LLMConfig, logger *zap.Logger) (llm.Completer, error) {
	switch cfg.Provider {
	case "yandexgpt":
		return yandex.New(yandex.Config{
			APIKey:      cfg.APIKey,
			FolderID:    cfg.FolderID,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case "openai-compat":
		return openaicompat.New(openaicompat.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func serveMetrics(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics endpoint stopped", zap.Error(err))
	}
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:9090", "Metrics endpoint address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func printVersion() {
	fmt.Printf("personabot %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`personabot - character chat bot

Usage:
  personabot serve [--config <path>]   Start the bot
  personabot version                   Print version info
  personabot health [--addr <url>]     Probe a running instance`)
}
