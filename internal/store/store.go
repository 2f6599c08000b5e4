package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quietcut/quietcut/pkg/models"
)

var (
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyClaimed signals a lost claim race: the job exists but is no
	// longer pending. Workers treat it as a no-op, not a failure.
	ErrAlreadyClaimed = errors.New("job already claimed")
	// ErrInvalidTransition signals an ordering bug: complete/fail called on
	// a job that is not processing.
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// Store is the data access interface. All database operations go through here.
// Jobs are only ever mutated through the transition operations; terminal
// states are final.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobsForOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error)

	// ClaimJob atomically moves pending -> processing. Exactly one caller
	// wins under concurrent claims; losers get ErrAlreadyClaimed.
	ClaimJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID, artifactKey string) (*models.Job, error)
	FailJob(ctx context.Context, id uuid.UUID, reason string) (*models.Job, error)

	// FailStuckJobs force-fails jobs left in processing longer than
	// olderThan (crashed worker). Returns the number of jobs failed.
	FailStuckJobs(ctx context.Context, olderThan time.Duration) (int, error)
	// ListStalePendingJobs returns ids of pending jobs older than olderThan
	// whose enqueue may have been lost, for re-publication.
	ListStalePendingJobs(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error)

	GetAccountsByKeyPrefix(ctx context.Context, prefix string) ([]*models.Account, error)
	TouchAccountLastSeen(ctx context.Context, id uuid.UUID) error
}
