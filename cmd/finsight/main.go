// FinSight - Personal finance analytics with real-time fraud scoring.
// Copyright (c) 2025 opensource.finance
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

	"github.com/opensource-finance/finsight/internal/alert"
	"github.com/opensource-finance/finsight/internal/api"
	"github.com/opensource-finance/finsight/internal/audit"
	"github.com/opensource-finance/finsight/internal/auth"
	"github.com/opensource-finance/finsight/internal/bus"
	"github.com/opensource-finance/finsight/internal/cache"
	"github.com/opensource-finance/finsight/internal/config"
	"github.com/opensource-finance/finsight/internal/dashboard"
	"github.com/opensource-finance/finsight/internal/domain"
	"github.com/opensource-finance/finsight/internal/ingest"
	"github.com/opensource-finance/finsight/internal/query"
	"github.com/opensource-finance/finsight/internal/repository"
	"github.com/opensource-finance/finsight/internal/rules"
	"github.com/opensource-finance/finsight/internal/subscription"
	"github.com/opensource-finance/finsight/internal/tadp"
	"github.com/opensource-finance/finsight/internal/telemetry"
	"github.com/opensource-finance/finsight/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(config.NewLogger(cfg.Logging))

	slog.Info("starting finsight",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"profile", cfg.Profile,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"timezone", cfg.Analytics.TimeZone,
		"auth_required", cfg.Auth.Required,
	)
	if cfg.Auth.JWTSecret == domain.DefaultConfig().Auth.JWTSecret {
		slog.Warn("using the default JWT secret; set FINSIGHT_JWT_SECRET")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

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

	// Initialize Rule Engine with the built-in fraud rules
	engine, err := rules.NewDefaultEngine(cfg.Analytics.RuleWorkers)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	loc := cfg.Analytics.Location()
	recorder := audit.NewRecorder()
	detector := subscription.NewDetector(repo, loc, recorder)

	// Initialize Worker
	eventWorker := worker.NewWorker(busImpl, detector)
	if err := eventWorker.Start(worker.Config{AutoDetect: cfg.Analytics.AutoDetect}); err != nil {
		slog.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	deps := api.Dependencies{
		Store:         repo,
		Cache:         cacheImpl,
		Bus:           busImpl,
		Engine:        engine,
		Auth:          auth.NewService(repo, cacheImpl, cfg.Auth),
		Ingest:        ingest.NewService(repo, tadp.NewScorer(engine, nil), busImpl, recorder, loc),
		Query:         query.NewService(repo),
		Alerts:        alert.NewService(repo, recorder),
		Subscriptions: detector,
		Dashboard:     dashboard.NewAggregator(repo, loc),
		Location:      loc,
		AuthRequired:  cfg.Auth.Required,
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, deps, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("finsight is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop accepting requests before the worker so no event is left unhandled
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if err := eventWorker.Stop(); err != nil {
		slog.Error("failed to stop worker", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("failed to flush traces", "error", err)
	}

	slog.Info("finsight shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  FinSight - personal finance analytics")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Profile:  %s\n", cfg.Profile)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /auth/register               - Create an account")
	fmt.Println("    POST /auth/login                  - Obtain a bearer token")
	fmt.Println("    POST /transactions                - Ingest and score a transaction")
	fmt.Println("    GET  /transactions                - Search transactions")
	fmt.Println("    GET  /dashboard/summary           - Income, spending and fraud summary")
	fmt.Println("    GET  /fraud/alerts                - List fraud alerts")
	fmt.Println("    PUT  /fraud/alerts/{id}/resolve   - Resolve an alert")
	fmt.Println("    POST /subscriptions/detect        - Detect recurring payments")
	fmt.Println("    GET  /subscriptions/due-soon      - Upcoming subscription payments")
	fmt.Println("    GET  /rules                       - Loaded fraud rules")
	fmt.Println("    GET  /health                      - Health check")
	fmt.Println()
}
