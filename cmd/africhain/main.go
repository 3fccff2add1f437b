// AfriChain - counterfeit listing detection that deploys in 60 seconds.

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

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/api"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/bus"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/cache"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/engine"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/market"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/repository"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/rules"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/worker"
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
	if os.Getenv("AFRICHAIN_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting africhain",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("AFRICHAIN_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
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

	// Initialize Market Pricing Service
	marketSvc := market.NewService(repo, cacheImpl)
	slog.Info("market pricing service initialized")

	// Initialize Evaluator Registry
	registry, err := rules.DefaultRegistry()
	if err != nil {
		slog.Error("failed to initialize evaluator registry", "error", err)
		os.Exit(1)
	}

	// Initialize Rule Catalog and warm it from the database
	// (no hardcoded defaults - configure rules via POST /rules)
	catalog := rules.NewCatalog(repo, cfg.Engine.CatalogTTL)
	if err := catalog.Refresh(ctx); err != nil {
		slog.Warn("failed to warm rule catalog", "error", err)
	}
	slog.Info("rule catalog initialized", "rules_count", catalog.Size())

	// Initialize Evaluation Engine
	eng := engine.New(repo, catalog, registry, marketSvc, cfg.Engine)
	slog.Info("evaluation engine initialized",
		"batch_concurrency", cfg.Engine.BatchConcurrency,
		"conflict_strategy", cfg.Engine.ConflictStrategy,
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("AFRICHAIN_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, eng, cacheImpl)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "topic", domain.TopicListingIngested)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, catalog, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("africhain is ready",
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
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("africhain shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                 AFRICHAIN")
	fmt.Println("       Counterfeit Listing Detection Engine")
	fmt.Println("        Eyes on every listing.")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /products             - Register a product listing")
	fmt.Println("    GET  /products/{id}        - Get product by ID")
	fmt.Println("    POST /evaluate             - Evaluate a product listing")
	fmt.Println("    POST /evaluate/batch       - Evaluate a batch of listings")
	fmt.Println("    GET  /evaluations/{id}     - Get evaluation by ID")
	fmt.Println("    GET  /rules                - List all rules")
	fmt.Println("    POST /rules                - Create a new rule")
	fmt.Println("    POST /rules/reload         - Hot-reload rules from database")
	fmt.Println("    GET  /combinations         - List rule combinations")
	fmt.Println("    POST /combinations         - Create a rule combination")
	fmt.Println("    GET  /chains               - List rule chains")
	fmt.Println("    POST /chains               - Create a rule chain")
	fmt.Println("    GET  /suppliers/{id}/flags - Get supplier flag count")
	fmt.Println("    GET  /stats                - Engine statistics")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
