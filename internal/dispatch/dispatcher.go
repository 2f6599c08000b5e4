// Package dispatch accepts validated uploads, records the job, and hands it
// to the work queue. Nothing here runs the actual processing: the submitter
// gets a pending job back immediately and polls for the rest.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/quietcut/quietcut/internal/blob"
	"github.com/quietcut/quietcut/internal/eligibility"
	"github.com/quietcut/quietcut/internal/media"
	"github.com/quietcut/quietcut/internal/queue"
	"github.com/quietcut/quietcut/internal/store"
	"github.com/quietcut/quietcut/pkg/models"
)

// ErrInvalidUpload covers malformed submissions: empty files, oversized
// files, media the prober cannot read. The job is never created.
var ErrInvalidUpload = errors.New("invalid upload")

// ErrIneligible re-exports the classifier's rejection class so callers
// depend on one package.
var ErrIneligible = eligibility.ErrIneligible

// Dispatcher implements the synchronous accept path.
type Dispatcher struct {
	store          store.Store
	blobs          blob.Store
	publisher      queue.Publisher
	prober         media.Prober
	maxUploadBytes int64
}

func New(s store.Store, b blob.Store, p queue.Publisher, prober media.Prober, maxUploadBytes int64) *Dispatcher {
	return &Dispatcher{
		store:          s,
		blobs:          b,
		publisher:      p,
		prober:         prober,
		maxUploadBytes: maxUploadBytes,
	}
}

// Submit spools the upload, probes its duration, classifies it, and — if
// eligible — stores the file, creates the pending job, and enqueues it.
// Rejected uploads are discarded; no job row or blob survives a rejection.
func (d *Dispatcher) Submit(ctx context.Context, r io.Reader, filename string, requested models.Tier, principal *models.Principal) (*models.Job, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: filename required", ErrInvalidUpload)
	}

	spool, size, err := d.spool(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	duration, err := d.prober.Duration(ctx, spool.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	hasPremium := principal != nil && principal.Premium
	tier, err := eligibility.Classify(duration, requested, hasPremium)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New()
	uploadKey := path.Join("jobs", jobID.String(), filename)

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind spool: %w", err)
	}
	if err := d.blobs.Put(ctx, uploadKey, spool, size, "video/mp4"); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:           jobID,
		Filename:     filename,
		SizeBytes:    size,
		DurationSecs: duration,
		Tier:         tier,
		State:        models.JobStatePending,
		UploadKey:    uploadKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if principal != nil {
		ownerID := principal.AccountID
		job.OwnerID = &ownerID
	}

	if err := d.store.CreateJob(ctx, job); err != nil {
		d.discard(ctx, uploadKey)
		return nil, fmt.Errorf("create job: %w", err)
	}

	// An enqueue failure after the row exists leaves the job pending; the
	// sweep re-publishes stale pending jobs, so the caller still gets the
	// job back rather than an error.
	if err := d.publisher.Publish(ctx, job.ID); err != nil {
		slog.Error("enqueue failed after job creation, leaving for sweep",
			"job_id", job.ID, "error", err)
	}

	return job, nil
}

// spool streams the upload to a temp file so it can be probed and uploaded
// without ever holding the whole video in memory.
func (d *Dispatcher) spool(r io.Reader) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "quietcut-upload-*")
	if err != nil {
		return nil, 0, fmt.Errorf("create spool: %w", err)
	}

	size, err := io.Copy(f, io.LimitReader(r, d.maxUploadBytes+1))
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, fmt.Errorf("read upload: %w", err)
	}
	if size == 0 {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}
	if size > d.maxUploadBytes {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidUpload, d.maxUploadBytes)
	}
	return f, size, nil
}

func (d *Dispatcher) discard(ctx context.Context, key string) {
	if err := d.blobs.Remove(ctx, key); err != nil {
		slog.Error("discard upload", "key", key, "error", err)
	}
}
