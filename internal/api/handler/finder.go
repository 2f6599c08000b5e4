package handler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/quietcut/quietcut/internal/cache"
	"github.com/quietcut/quietcut/internal/store"
	"github.com/quietcut/quietcut/pkg/models"
)

// CachedJobFinder is a cache-aside JobFinder: polling clients are served
// from Redis while the store stays authoritative. Cache errors degrade to
// store reads.
type CachedJobFinder struct {
	Cache cache.Cache
	Store store.Store
}

func (f *CachedJobFinder) FindJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, hit, err := f.Cache.GetJob(ctx, id)
	if err != nil {
		slog.Warn("job cache read", "job_id", id, "error", err)
	} else if hit {
		return job, nil
	}

	job, err = f.Store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := f.Cache.SetJob(ctx, job); err != nil {
		slog.Warn("job cache write", "job_id", id, "error", err)
	}
	return job, nil
}

var _ JobFinder = (*CachedJobFinder)(nil)
