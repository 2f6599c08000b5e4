// Package blob stores uploaded videos and processed artifacts. Objects are
// write-once: an upload is never rewritten after the job is created.
package blob

import (
	"context"
	"io"
	"time"
)

// Store is the blob storage interface.
type Store interface {
	// Put streams r into the object named key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get opens the object for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// PresignedURL returns a time-limited download URL for the object.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
