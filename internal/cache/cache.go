package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/quietcut/quietcut/pkg/models"
	"github.com/redis/go-redis/v9"
)

// TTLs for cached job views. Polling clients hammer the status endpoint, so
// non-terminal views are cached briefly; terminal views never change again.
const (
	ActiveJobTTL   = 3 * time.Second
	TerminalJobTTL = time.Hour
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, bool, error)
	InvalidateJob(ctx context.Context, jobID uuid.UUID) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// cachedJob carries the internal fields the JSON view omits.
type cachedJob struct {
	Job         models.Job `json:"job"`
	UploadKey   string     `json:"upload_key"`
	ArtifactKey *string    `json:"artifact_key,omitempty"`
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) SetJob(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(cachedJob{
		Job:         *job,
		UploadKey:   job.UploadKey,
		ArtifactKey: job.ArtifactKey,
	})
	if err != nil {
		return err
	}
	ttl := ActiveJobTTL
	if job.Terminal() {
		ttl = TerminalJobTTL
	}
	return c.client.Set(ctx, JobKey(job.ID), data, ttl).Err()
}

func (c *RedisCache) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, bool, error) {
	val, err := c.client.Get(ctx, JobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cj cachedJob
	if err := json.Unmarshal(val, &cj); err != nil {
		return nil, false, err
	}
	job := cj.Job
	job.UploadKey = cj.UploadKey
	job.ArtifactKey = cj.ArtifactKey
	return &job, true, nil
}

func (c *RedisCache) InvalidateJob(ctx context.Context, jobID uuid.UUID) error {
	return c.client.Del(ctx, JobKey(jobID)).Err()
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
