package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resource-pool-backend/config"
	"resource-pool-backend/internal/api"
	"resource-pool-backend/internal/db"
	"resource-pool-backend/internal/engine"
	"resource-pool-backend/internal/intent"
	"resource-pool-backend/internal/notification"
	"resource-pool-backend/internal/resolver"
	"resource-pool-backend/internal/store"
	"resource-pool-backend/internal/sweep"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	logger := log.New(os.Stdout, "resource-pool ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Push transport is optional: missing VAPID keys make every dispatch a
	// no-op instead of an error.
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys not configured; push notifications are disabled")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	if err := appStore.SeedCatalog(ctx, cfg.Catalog.ForceReseed); err != nil {
		logger.Fatalf("failed to seed resource catalog: %v", err)
	}
	logger.Println("resource catalog ready")

	// Notification worker pool (fire-and-forget push delivery)
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
	workerPool.Start(ctx)

	loc := time.UTC
	if cfg.Sweep.Timezone != "" {
		if parsed, err := time.LoadLocation(cfg.Sweep.Timezone); err != nil {
			logger.Printf("invalid timezone %q, falling back to UTC: %v", cfg.Sweep.Timezone, err)
		} else {
			loc = parsed
		}
	}

	arbiter := engine.New(appStore, workerPool, loc)

	// Freeform reply collaborator (optional)
	var freeform resolver.Resolver
	if cfg.Resolver.Enabled && cfg.Resolver.URL != "" {
		freeform = resolver.NewHTTP(&cfg.Resolver)
		logger.Println("freeform resolver configured")
	}
	dispatcher := intent.NewDispatcher(arbiter, appStore, freeform)

	// Recurring reminder/snapshot sweep
	sweepSvc := sweep.NewService(&cfg.Sweep, arbiter)
	go sweepSvc.Run(ctx)

	// Initialize router
	handler := api.NewHandler(arbiter, dispatcher, appStore, webpushOptions)
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
