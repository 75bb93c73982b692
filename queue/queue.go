// Package queue decouples request handling from embedding computation.
// Delivery is at-least-once: a job may be handed out again if its
// consumer neither acks nor fails it in time.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoJob is returned by Receive when nothing is ready.
var ErrNoJob = errors.New("queue: no job available")

// Job asks the worker to embed one document.
type Job struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type JobHandle struct {
	ID         uuid.UUID
	EnqueuedAt time.Time
}

// Delivery is a received job. Exactly one of Ack, Retry or Fail should be called.
type Delivery interface {
	Job() Job
	Ack(ctx context.Context) error
	// Retry schedules the job again unless its attempts are exhausted.
	Retry(ctx context.Context, cause error) error
	// Fail discards the job permanently.
	Fail(ctx context.Context, cause error) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) (JobHandle, error)
}

type Consumer interface {
	Receive(ctx context.Context) (Delivery, error)
}

type Queue interface {
	Enqueuer
	Consumer
	Close() error
}

type Options struct {
	MaxAttempts       int
	VisibilityTimeout time.Duration
	RetryBackoff      time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = 5 * time.Minute
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 5 * time.Second
	}
	return o
}

func prepare(job Job) (Job, error) {
	if job.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return job, err
		}
		job.ID = id
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return job, nil
}
