// Package worker consumes queued job ids and drives each claimed job to a
// terminal state. Worker-side failures never propagate to the submitter;
// they land in the job's error message and are read back over the status
// endpoint.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/quietcut/quietcut/internal/blob"
	"github.com/quietcut/quietcut/internal/cache"
	"github.com/quietcut/quietcut/internal/processor"
	"github.com/quietcut/quietcut/internal/queue"
	"github.com/quietcut/quietcut/internal/store"
	"github.com/quietcut/quietcut/pkg/models"
)

// Worker owns one queue consumer handle, constructed at startup and passed
// in; there is no shared queue state between workers.
type Worker struct {
	id       string
	store    store.Store
	blobs    blob.Store
	cache    cache.Cache
	consumer queue.Consumer
	free     processor.Processor
	premium  processor.Processor
	workDir  string
}

func New(id string, s store.Store, b blob.Store, c cache.Cache, consumer queue.Consumer, free, premium processor.Processor, workDir string) *Worker {
	return &Worker{
		id:       id,
		store:    s,
		blobs:    b,
		cache:    c,
		consumer: consumer,
		free:     free,
		premium:  premium,
		workDir:  workDir,
	}
}

// Run consumes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("worker starting", "worker", w.id)
	return w.consumer.Consume(ctx, w.handle)
}

// handle processes one delivery. It returns nil for everything except
// infrastructure errors: a processing failure is recorded on the job, and a
// lost claim is the expected duplicate-delivery no-op, so neither should be
// redelivered.
func (w *Worker) handle(ctx context.Context, jobID uuid.UUID) error {
	job, err := w.store.ClaimJob(ctx, jobID)
	if errors.Is(err, store.ErrAlreadyClaimed) || errors.Is(err, store.ErrNotFound) {
		slog.Info("skipping already-claimed job", "worker", w.id, "job_id", jobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	w.refreshCache(ctx, job)

	slog.Info("processing job", "worker", w.id, "job_id", job.ID, "tier", job.Tier)

	artifactKey, err := w.process(ctx, job)
	if err != nil {
		slog.Warn("job failed", "worker", w.id, "job_id", job.ID, "error", err)
		failed, ferr := w.store.FailJob(ctx, job.ID, reason(err))
		if ferr != nil {
			return fmt.Errorf("record job failure: %w", ferr)
		}
		w.refreshCache(ctx, failed)
		return nil
	}

	completed, err := w.store.CompleteJob(ctx, job.ID, artifactKey)
	if err != nil {
		return fmt.Errorf("record job completion: %w", err)
	}
	w.refreshCache(ctx, completed)

	slog.Info("job completed", "worker", w.id, "job_id", job.ID, "artifact", artifactKey)
	return nil
}

// process downloads the upload, runs the tier's backend, and uploads the
// artifact. Returns the artifact key.
func (w *Worker) process(ctx context.Context, job *models.Job) (string, error) {
	proc := w.free
	if job.Tier == models.TierPremium {
		proc = w.premium
	}

	dir, err := os.MkdirTemp(w.workDir, "job-"+job.ID.String()+"-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, job.Filename)
	if err := w.download(ctx, job.UploadKey, inputPath); err != nil {
		return "", err
	}

	outputPath := filepath.Join(dir, "processed_"+job.Filename)
	if err := proc.Process(ctx, inputPath, outputPath); err != nil {
		return "", err
	}

	artifactKey := path.Join("jobs", job.ID.String(), "processed_"+job.Filename)
	out, err := os.Open(outputPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer out.Close()

	info, err := out.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	if err := w.blobs.Put(ctx, artifactKey, out, info.Size(), "video/mp4"); err != nil {
		return "", fmt.Errorf("upload artifact: %w", err)
	}
	return artifactKey, nil
}

func (w *Worker) download(ctx context.Context, key, dest string) error {
	r, err := w.blobs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch upload: %w", err)
	}
	defer r.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create input file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("download upload: %w", err)
	}
	return nil
}

func (w *Worker) refreshCache(ctx context.Context, job *models.Job) {
	if err := w.cache.SetJob(ctx, job); err != nil {
		slog.Warn("refresh job cache", "job_id", job.ID, "error", err)
	}
}

// reason trims an error into the user-facing failure text.
func reason(err error) string {
	msg := err.Error()
	const max = 500
	if len(msg) > max {
		msg = msg[:max]
	}
	return msg
}
