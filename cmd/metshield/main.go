// MetShield - Healthcare claim fraud detection in real time.
// Copyright (c) 2025 metshield.io
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

	"github.com/metshield/metshield/internal/api"
	"github.com/metshield/metshield/internal/bus"
	"github.com/metshield/metshield/internal/cache"
	"github.com/metshield/metshield/internal/domain"
	"github.com/metshield/metshield/internal/feed"
	"github.com/metshield/metshield/internal/repository"
	"github.com/metshield/metshield/internal/rules"
	"github.com/metshield/metshield/internal/velocity"
	"github.com/metshield/metshield/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("METSHIELD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting metshield",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("METSHIELD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
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

	// Initialize velocity tracker
	tracker := velocity.NewTracker(repo, cacheImpl)
	slog.Info("velocity tracker initialized")

	// Initialize indicator engine
	engine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	indicators := cfg.Scoring.Indicators
	if len(indicators) == 0 {
		indicators = rules.BuiltinIndicators()
	}
	if err := engine.LoadIndicators(indicators); err != nil {
		slog.Error("failed to load indicators", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "indicators", engine.IndicatorCount())

	// Initialize risk classifier
	classifier := rules.NewClassifier(cfg.Scoring)

	// Initialize live feed plumbing
	buffer := feed.NewBuffer(cfg.Feed.BufferSize)
	broadcaster := feed.NewBroadcaster(cfg.Feed.SubscriberQueueSize)
	defer broadcaster.Close()
	dispatcher := feed.NewDispatcher(buffer, broadcaster, repo, busImpl, cacheImpl)
	slog.Info("feed initialized",
		"buffer_size", buffer.Cap(),
		"subscriber_queue", cfg.Feed.SubscriberQueueSize,
	)

	// Initialize async scoring Worker (Pro tier)
	asyncScoring := cfg.Tier == domain.TierPro || os.Getenv("METSHIELD_ASYNC_WORKER") == "true"
	var asyncWorker *worker.Worker
	if asyncScoring {
		asyncWorker = worker.NewWorker(busImpl, repo, engine, classifier, tracker, dispatcher)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start scoring worker", "error", err)
			asyncScoring = false
		} else {
			slog.Info("async scoring worker started")
		}
	}

	// Initialize Server
	handler := api.NewHandler(repo, cacheImpl, busImpl, engine, classifier, tracker, dispatcher, buffer, broadcaster, cfg.Feed, Version, asyncScoring)
	srv := api.NewServer(cfg.Server, handler)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("metshield is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop scoring worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("metshield shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              🛡  METSHIELD                 ║")
	fmt.Println("  ║    Healthcare Claim Fraud Detection       ║")
	fmt.Println("  ║       Every claim, scored live.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/v1/claims        - Submit a claim for scoring")
	fmt.Println("    GET  /api/v1/claims        - List recent claims")
	fmt.Println("    GET  /api/v1/claims/{id}   - Get claim and score by ID")
	fmt.Println("    GET  /api/v1/feed          - Live feed (SSE)")
	fmt.Println("    GET  /api/v1/alerts        - List recent fraud alerts")
	fmt.Println("    GET  /api/v1/stats         - Daily scoring stats")
	fmt.Println("    GET  /api/v1/indicators    - List loaded indicators")
	fmt.Println("    PUT  /api/v1/indicators    - Hot-reload the indicator set")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
