package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/quietcut/quietcut/internal/config"
	"github.com/quietcut/quietcut/internal/queue"
	"github.com/quietcut/quietcut/internal/store"
)

// Sweeper is the reconciliation pass: it force-fails jobs stuck in
// processing past the timeout (crashed worker) and re-publishes pending
// jobs whose enqueue was lost. Timeouts and cadence come from config.
type Sweeper struct {
	store             store.Store
	publisher         queue.Publisher
	processingTimeout time.Duration
	pendingTimeout    time.Duration
	interval          time.Duration
}

func NewSweeper(s store.Store, p queue.Publisher, cfg config.ProcessingConfig) *Sweeper {
	return &Sweeper{
		store:             s,
		publisher:         p,
		processingTimeout: cfg.ProcessingTimeout,
		pendingTimeout:    cfg.PendingTimeout,
		interval:          cfg.SweepInterval,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	failed, err := s.store.FailStuckJobs(ctx, s.processingTimeout)
	if err != nil {
		slog.Error("sweep stuck jobs", "error", err)
	} else if failed > 0 {
		slog.Warn("force-failed stuck jobs", "count", failed)
	}

	stale, err := s.store.ListStalePendingJobs(ctx, s.pendingTimeout)
	if err != nil {
		slog.Error("sweep stale pending jobs", "error", err)
		return
	}
	for _, id := range stale {
		// Re-publication can duplicate delivery; the claim CAS makes the
		// duplicate a no-op.
		if err := s.publisher.Publish(ctx, id); err != nil {
			slog.Error("re-enqueue stale pending job", "job_id", id, "error", err)
			continue
		}
		slog.Info("re-enqueued stale pending job", "job_id", id)
	}
}
