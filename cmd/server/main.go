// Package main is the entrypoint for the QuietCut API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quietcut/quietcut/internal/api"
	"github.com/quietcut/quietcut/internal/api/handler"
	mw "github.com/quietcut/quietcut/internal/api/middleware"
	"github.com/quietcut/quietcut/internal/api/response"
	"github.com/quietcut/quietcut/internal/blob"
	"github.com/quietcut/quietcut/internal/cache"
	"github.com/quietcut/quietcut/internal/config"
	"github.com/quietcut/quietcut/internal/dispatch"
	"github.com/quietcut/quietcut/internal/media"
	"github.com/quietcut/quietcut/internal/queue"
	"github.com/quietcut/quietcut/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Connect blob storage
	blobs, err := blob.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect blob storage: %w", err)
	}
	slog.Info("blob storage connected", "bucket", cfg.Storage.Bucket)

	// 6. Connect work queue
	conn, err := queue.Dial(cfg.Queue)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer conn.Close()

	publisher, err := queue.NewRabbitPublisher(conn, cfg.Queue)
	if err != nil {
		return fmt.Errorf("create queue publisher: %w", err)
	}
	defer publisher.Close()
	slog.Info("queue connected", "exchange", cfg.Queue.Exchange)

	// 7. Build services
	pgStore := store.NewPostgresStore(pool)
	prober := media.NewFFprobe(cfg.Processing.FFprobePath)
	dispatcher := dispatch.New(pgStore, blobs, publisher, prober, cfg.Server.MaxUploadBytes)
	finder := &handler.CachedJobFinder{Cache: redisCache, Store: pgStore}

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMinute),

		HealthHandler: healthHandler(pgStore, redisCache, blobs),
		CreateJob:     handler.NewCreateJobHandler(dispatcher, cfg.Server.MaxUploadBytes),
		GetJob:        handler.NewGetJobHandler(finder),
		ListJobs:      handler.NewListJobsHandler(pgStore),
		DownloadJob:   handler.NewDownloadHandler(finder, blobs, cfg.Storage.URLExpiry),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Minute, // large uploads stream on the request path
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database, cache, and blob-storage connectivity.
func healthHandler(s store.Store, c cache.Cache, b blob.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"storage":  "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := b.Ping(r.Context()); err != nil {
			checks["storage"] = "degraded"
		}

		for _, v := range checks {
			if v != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
