package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quietcut/quietcut/pkg/models"
)

const jobColumns = `id, owner_id, filename, size_bytes, duration_secs, tier, state,
	upload_key, artifact_key, error_message, started_at, completed_at, created_at, updated_at`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, owner_id, filename, size_bytes, duration_secs, tier, state, upload_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.OwnerID, job.Filename, job.SizeBytes, job.DurationSecs,
		job.Tier, job.State, job.UploadKey, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobsForOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for owner: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ClaimJob is the one critical section of the system: the conditional UPDATE
// guarantees at most one winner per job across concurrent workers and
// processes. A lost race (or a terminal job from duplicate queue delivery)
// surfaces as ErrAlreadyClaimed.
func (s *PostgresStore) ClaimJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	now := time.Now().UTC()
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET state = $2, started_at = $3, updated_at = $3
		 WHERE id = $1 AND state = $4
		 RETURNING `+jobColumns, id, models.JobStateProcessing, now, models.JobStatePending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.classifyConflict(ctx, id, ErrAlreadyClaimed)
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, artifactKey string) (*models.Job, error) {
	now := time.Now().UTC()
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET state = $2, artifact_key = $3, completed_at = $4, updated_at = $4
		 WHERE id = $1 AND state = $5
		 RETURNING `+jobColumns,
		id, models.JobStateCompleted, artifactKey, now, models.JobStateProcessing))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.classifyConflict(ctx, id, ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, reason string) (*models.Job, error) {
	now := time.Now().UTC()
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET state = $2, error_message = $3, completed_at = $4, updated_at = $4
		 WHERE id = $1 AND state = $5
		 RETURNING `+jobColumns,
		id, models.JobStateFailed, reason, now, models.JobStateProcessing))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.classifyConflict(ctx, id, ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) FailStuckJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET state = $1, error_message = $2, completed_at = $3, updated_at = $3
		 WHERE state = $4 AND started_at < $5`,
		models.JobStateFailed, "processing timed out", now, models.JobStateProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fail stuck jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListStalePendingJobs(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM jobs WHERE state = $1 AND created_at < $2 ORDER BY created_at`,
		models.JobStatePending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale pending jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// classifyConflict distinguishes a missing job from a state conflict after
// a zero-row conditional update.
func (s *PostgresStore) classifyConflict(ctx context.Context, id uuid.UUID, conflict error) error {
	var state string
	err := s.pool.QueryRow(ctx, `SELECT state FROM jobs WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job state: %w", err)
	}
	return fmt.Errorf("%w: job is %s", conflict, state)
}

// --- Accounts ---

func (s *PostgresStore) GetAccountsByKeyPrefix(ctx context.Context, prefix string) ([]*models.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, name, key_hash, key_prefix, premium, last_seen_at, created_at, updated_at
		 FROM accounts WHERE key_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get accounts by key prefix: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.KeyHash, &a.KeyPrefix,
			&a.Premium, &a.LastSeenAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) TouchAccountLastSeen(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET last_seen_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch account last seen: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.OwnerID, &j.Filename, &j.SizeBytes, &j.DurationSecs,
		&j.Tier, &j.State, &j.UploadKey, &j.ArtifactKey, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
