// Package queue carries job ids from the dispatcher to the workers.
// Delivery is at-least-once; consumers must tolerate duplicates.
package queue

import (
	"context"

	"github.com/google/uuid"
)

// Publisher enqueues job ids for asynchronous processing.
type Publisher interface {
	Publish(ctx context.Context, jobID uuid.UUID) error
}

// Handler processes one delivered job id. A nil return acknowledges the
// message; an error requeues it.
type Handler func(ctx context.Context, jobID uuid.UUID) error

// Consumer delivers job ids to a handler until the context is cancelled.
type Consumer interface {
	Consume(ctx context.Context, h Handler) error
}

// Message is the wire format for a queued job.
type Message struct {
	JobID uuid.UUID `json:"job_id"`
}
