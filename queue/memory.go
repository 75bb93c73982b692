package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrQueueFull = errors.New("queue: full")

// MemoryQueue is an in-process queue for a worker embedded in the API
// process. Jobs do not survive a restart; pending documents are picked up
// again by re-enqueueing them on startup.
type MemoryQueue struct {
	opts   Options
	jobs   chan Job
	logger *slog.Logger

	mu     sync.Mutex
	failed []Job
	closed bool
}

func NewMemoryQueue(capacity int, opts Options) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		opts:   opts.withDefaults(),
		jobs:   make(chan Job, capacity),
		logger: slog.Default().With("component", "memory_queue"),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) (JobHandle, error) {
	job, err := prepare(job)
	if err != nil {
		return JobHandle{}, err
	}
	if err := q.push(job); err != nil {
		return JobHandle{}, err
	}
	return JobHandle{ID: job.ID, EnqueuedAt: job.EnqueuedAt}, nil
}

func (q *MemoryQueue) push(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("queue: closed")
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Receive(ctx context.Context) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return nil, ErrNoJob
		}
		job.Attempt++
		return &memoryDelivery{q: q, job: job}, nil
	default:
		return nil, ErrNoJob
	}
}

// Len reports how many jobs are waiting.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// Failed returns jobs that were discarded.
func (q *MemoryQueue) Failed() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.failed...)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}

type memoryDelivery struct {
	q   *MemoryQueue
	job Job
}

func (d *memoryDelivery) Job() Job {
	return d.job
}

func (d *memoryDelivery) Ack(context.Context) error {
	return nil
}

func (d *memoryDelivery) Retry(ctx context.Context, cause error) error {
	if d.job.Attempt >= d.q.opts.MaxAttempts {
		d.q.logger.Warn("job attempts exhausted", "job_id", d.job.ID, "document_id", d.job.DocumentID, "error", cause)
		return d.Fail(ctx, cause)
	}
	job := d.job
	go func() {
		select {
		case <-time.After(d.q.opts.RetryBackoff):
		case <-ctx.Done():
		}
		if err := d.q.push(job); err != nil {
			d.q.logger.Error("failed to requeue job", "job_id", job.ID, "error", err)
		}
	}()
	return nil
}

func (d *memoryDelivery) Fail(context.Context, error) error {
	d.q.mu.Lock()
	defer d.q.mu.Unlock()
	d.q.failed = append(d.q.failed, d.job)
	return nil
}
