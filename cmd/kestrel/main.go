// Kestrel - Real-time fraud monitoring for payment transactions.
// Copyright (c) 2025 kestrel-monitoring
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kestrel-monitoring/kestrel/internal/api"
	"github.com/kestrel-monitoring/kestrel/internal/bus"
	"github.com/kestrel-monitoring/kestrel/internal/cache"
	"github.com/kestrel-monitoring/kestrel/internal/dataset"
	"github.com/kestrel-monitoring/kestrel/internal/detection"
	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/notify"
	"github.com/kestrel-monitoring/kestrel/internal/repository"
	"github.com/kestrel-monitoring/kestrel/internal/review"
	"github.com/kestrel-monitoring/kestrel/internal/risk"
	"github.com/kestrel-monitoring/kestrel/internal/rules"
	"github.com/kestrel-monitoring/kestrel/internal/velocity"
	"github.com/kestrel-monitoring/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Local overrides from .env, if present
	_ = godotenv.Load()

	// Load configuration
	cfg := domain.FromEnv()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	slog.SetDefault(slog.New(handler))

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"detection_url", cfg.Detection.BaseURL,
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

	// Seed the anonymized demo dataset (idempotent)
	if os.Getenv("KESTREL_SKIP_SEED") != "true" {
		seeded, err := dataset.Seed(ctx, repo)
		if err != nil {
			slog.Warn("failed to seed dataset", "error", err)
		} else {
			slog.Info("dataset seeded", "transactions", seeded)
		}
	}

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

	// Initialize Velocity Service
	velocitySvc := velocity.NewService(repo, cacheImpl)

	// Initialize Rule Engine with velocity getter
	engine, err := rules.NewEngine(velocitySvc.Getter(), 100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Load operator rules from database (no hardcoded defaults)
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Embedded detection service: the built-in checks plus operator rules
	detector := detection.NewService(engine, rules.DefaultOptions(), velocitySvc, repo, cfg.Detection.VelocityWindowSecs)

	// Notification store with toast logging
	store := notify.New(notify.NewLogAlerter(slog.Default()), busImpl)

	// Detection client for the analyzer; by default it talks to this
	// process's own /api/detect-fraud endpoint.
	client := detection.NewClient(cfg.Detection)

	// Risk analyzer (remote first, local heuristics on failure)
	analyzer := risk.New(client, store, nil)

	// Reviewers
	fraudRev := review.NewFraudReviewer(store)
	suspectRev := review.NewSuspiciousReviewer(store, client, repo)

	// Async screening worker
	screeningWorker := worker.NewWorker(busImpl, repo, analyzer)
	if err := screeningWorker.Start(worker.Config{WorkerCount: 5}); err != nil {
		slog.Error("failed to start screening worker", "error", err)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, detector, analyzer, store, fraudRev, suspectRev, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop screening worker first
	if err := screeningWorker.Stop(); err != nil {
		slog.Error("failed to stop screening worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadRulesFromDatabase loads rules from the database into the engine.
// All rules are configured via POST /api/rules - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /api/rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  KESTREL - fraud monitoring")
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/detect-fraud               - Score a transaction")
	fmt.Println("    POST /api/confirm-transaction        - Confirm a suspicious transaction")
	fmt.Println("    GET  /api/transactions               - List the transaction dataset")
	fmt.Println("    GET  /api/stats                      - Aggregate metrics")
	fmt.Println("    POST /api/transactions/{id}/analyze  - Run the risk analyzer")
	fmt.Println("    POST /api/transactions/{id}/decision - Resolve a suspicious transaction")
	fmt.Println("    POST /api/transactions/{id}/screen   - Queue async screening")
	fmt.Println("    GET  /api/notifications              - Fraud alerts")
	fmt.Println("    GET  /api/rules                      - List detection rules")
	fmt.Println("    POST /api/rules/reload               - Hot-reload rules from database")
	fmt.Println("    GET  /health                         - Health check")
	fmt.Println()
}
