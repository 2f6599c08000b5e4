// Package main is the entrypoint for the QuietCut processing workers and
// the reconciliation sweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/quietcut/quietcut/internal/blob"
	"github.com/quietcut/quietcut/internal/cache"
	"github.com/quietcut/quietcut/internal/config"
	"github.com/quietcut/quietcut/internal/media"
	"github.com/quietcut/quietcut/internal/processor/ffmpeg"
	"github.com/quietcut/quietcut/internal/processor/whisper"
	"github.com/quietcut/quietcut/internal/queue"
	"github.com/quietcut/quietcut/internal/store"
	"github.com/quietcut/quietcut/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "workers", cfg.Processing.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	blobs, err := blob.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect blob storage: %w", err)
	}

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

	pgStore := store.NewPostgresStore(pool)
	prober := media.NewFFprobe(cfg.Processing.FFprobePath)
	free := ffmpeg.New(cfg.Processing, prober)
	premium := whisper.New(cfg.Processing, whisper.NewHTTPTranscriber(cfg.Whisper))

	var wg sync.WaitGroup

	// Each worker gets its own consumer channel; the queue connection is
	// the only shared handle.
	for i := 0; i < cfg.Processing.Workers; i++ {
		consumer, err := queue.NewRabbitConsumer(conn, cfg.Queue)
		if err != nil {
			return fmt.Errorf("create queue consumer: %w", err)
		}

		w := worker.New(fmt.Sprintf("worker-%d", i), pgStore, blobs, redisCache,
			consumer, free, premium, os.TempDir())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("worker stopped", "error", err)
				stop()
			}
		}()
	}

	sweeper := worker.NewSweeper(pgStore, publisher, cfg.Processing)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining workers...")
	wg.Wait()

	slog.Info("workers stopped gracefully")
	return nil
}
