// Kite - Crowd-sourced fraud identifier intelligence.
// Copyright (c) 2025 opensource.intel
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/opensource-intel/kite/internal/api"
	"github.com/opensource-intel/kite/internal/bus"
	"github.com/opensource-intel/kite/internal/cache"
	"github.com/opensource-intel/kite/internal/domain"
	"github.com/opensource-intel/kite/internal/frequency"
	"github.com/opensource-intel/kite/internal/intel"
	"github.com/opensource-intel/kite/internal/reports"
	"github.com/opensource-intel/kite/internal/repository"
	"github.com/opensource-intel/kite/internal/rules"
	"github.com/opensource-intel/kite/internal/webhook"
	"github.com/opensource-intel/kite/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load .env if present; real environment always wins
	_ = godotenv.Load()

	// Initialize structured logger
	cfg := loadConfig()

	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kite",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"ai_enabled", cfg.Intel.APIKey != "",
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Frequency Service
	freqSvc := frequency.NewService(repo, cacheImpl)

	// Initialize AI Classifier
	classifier := intel.NewGeminiClassifier(cfg.Intel, logger)
	if !classifier.Enabled() {
		slog.Warn("GEMINI_API_KEY not set - AI analysis disabled, scoring is pattern-only")
	}

	// Initialize Watch Rule Engine
	engine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize watch rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := loadWatchRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load watch rules", "error", err)
		os.Exit(1)
	}
	slog.Info("watch rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize Webhook Notifier
	notifier := webhook.New(
		cfg.Alerts.WebhookURL,
		time.Duration(cfg.Alerts.WebhookTimeoutSecs)*time.Second,
		logger,
	)
	if notifier.Enabled() {
		slog.Info("webhook notifier enabled", "url", cfg.Alerts.WebhookURL)
	}

	// Initialize Report Service
	svc := reports.NewService(repo, classifier, freqSvc, busImpl, cacheImpl, logger)

	// Initialize Alert Worker
	alertWorker := worker.NewWorker(busImpl, engine, notifier, logger)
	if err := alertWorker.Start(); err != nil {
		slog.Error("failed to start alert worker", "error", err)
		os.Exit(1)
	}
	slog.Info("alert worker started")

	// Initialize Server
	srv := api.NewServer(cfg.Server, svc, repo, cacheImpl, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kite is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop alert worker first so in-flight events drain
	if err := alertWorker.Stop(); err != nil {
		slog.Error("failed to stop alert worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kite shutdown complete")
}

// loadConfig builds the configuration from tier defaults plus KITE_*
// environment overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("KITE_TIER") == "pro" {
		cfg = domain.ProConfig()
	}

	if v := os.Getenv("KITE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := envInt("KITE_PORT"); v > 0 {
		cfg.Server.Port = v
	}

	if v := os.Getenv("KITE_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("KITE_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("KITE_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := envInt("KITE_POSTGRES_PORT"); v > 0 {
		cfg.Repository.PostgresPort = v
	}
	if v := os.Getenv("KITE_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("KITE_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("KITE_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("KITE_POSTGRES_SSLMODE"); v != "" {
		cfg.Repository.PostgresSSLMode = v
	}

	if v := os.Getenv("KITE_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("KITE_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}

	if v := os.Getenv("KITE_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}

	cfg.Intel.APIKey = os.Getenv("GEMINI_API_KEY")
	if v := os.Getenv("KITE_GEMINI_MODEL"); v != "" {
		cfg.Intel.Model = v
	}

	if v := os.Getenv("KITE_WEBHOOK_URL"); v != "" {
		cfg.Alerts.WebhookURL = v
	}

	if v := os.Getenv("KITE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KITE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if os.Getenv("KITE_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}

	return cfg
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

// loadWatchRules loads watch rules from the database into the engine. On a
// fresh database the builtin rule set is seeded first so critical-risk
// alerts work out of the box.
func loadWatchRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListWatchRules(ctx)
	if err != nil {
		return err
	}

	if len(dbRules) == 0 {
		builtins := rules.BuiltinRules()
		for _, rule := range builtins {
			if err := repo.SaveWatchRule(ctx, rule); err != nil {
				slog.Warn("failed to seed builtin watch rule", "id", rule.ID, "error", err)
			}
		}
		slog.Info("seeded builtin watch rules", "count", len(builtins))
		return engine.LoadRules(builtins)
	}

	slog.Info("loading watch rules from database", "count", len(dbRules))
	return engine.LoadRules(dbRules)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪁 KITE                     ║")
	fmt.Println("  ║   Fraud Identifier Intelligence Engine    ║")
	fmt.Println("  ║     Report it once, warn everyone.        ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /api/reports                  - Submit a fraud report")
	fmt.Println("    GET    /api/reports                  - List reports")
	fmt.Println("    GET    /api/reports/{id}             - Get report by ID")
	fmt.Println("    GET    /api/reports/lookup/{value}   - Look up an identifier")
	fmt.Println("    POST   /api/analysis                 - AI analysis without reporting")
	fmt.Println("    GET    /api/dashboard/stats          - Dashboard statistics")
	fmt.Println("    GET    /api/watchrules               - List watch rules")
	fmt.Println("    POST   /api/watchrules               - Create a watch rule")
	fmt.Println("    DELETE /api/watchrules/{id}          - Delete a watch rule")
	fmt.Println("    POST   /api/watchrules/reload        - Hot-reload watch rules")
	fmt.Println("    GET    /health                       - Health check")
	fmt.Println("    GET    /metrics                      - Prometheus metrics")
	fmt.Println()
}
