package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	statusQueued  = "queued"
	statusRunning = "running"
	statusFailed  = "failed"
)

// PostgresQueue keeps jobs in the embedding_jobs table. Workers in any
// number of processes claim rows with FOR UPDATE SKIP LOCKED; a claimed
// row becomes visible again after VisibilityTimeout if its worker dies.
type PostgresQueue struct {
	pool   *pgxpool.Pool
	opts   Options
	logger *slog.Logger
}

func NewPostgresQueue(pool *pgxpool.Pool, opts Options) *PostgresQueue {
	return &PostgresQueue{
		pool:   pool,
		opts:   opts.withDefaults(),
		logger: slog.Default().With("component", "postgres_queue"),
	}
}

func (q *PostgresQueue) Init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS embedding_jobs (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('queued','running','failed')),
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		enqueued_at TIMESTAMP WITH TIME ZONE NOT NULL,
		visible_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_embedding_jobs_ready ON embedding_jobs(status, visible_at);
	`
	_, err := q.pool.Exec(ctx, query)
	return err
}

func (q *PostgresQueue) Enqueue(ctx context.Context, job Job) (JobHandle, error) {
	job, err := prepare(job)
	if err != nil {
		return JobHandle{}, err
	}

	_, err = q.pool.Exec(ctx, `
		INSERT INTO embedding_jobs (id, document_id, status, attempts, enqueued_at, visible_at)
		VALUES ($1, $2, $3, 0, $4, $4)`,
		job.ID, job.DocumentID, statusQueued, job.EnqueuedAt)
	if err != nil {
		return JobHandle{}, fmt.Errorf("enqueue job: %w", err)
	}
	return JobHandle{ID: job.ID, EnqueuedAt: job.EnqueuedAt}, nil
}

func (q *PostgresQueue) Receive(ctx context.Context) (Delivery, error) {
	row := q.pool.QueryRow(ctx, `
		UPDATE embedding_jobs
		SET status = $1,
			attempts = attempts + 1,
			visible_at = now() + make_interval(secs => $2)
		WHERE id = (
			SELECT id FROM embedding_jobs
			WHERE status IN ('queued','running') AND visible_at <= now() AND attempts < $3
			ORDER BY visible_at, enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, document_id, attempts, enqueued_at`,
		statusRunning, q.opts.VisibilityTimeout.Seconds(), q.opts.MaxAttempts)

	var job Job
	err := row.Scan(&job.ID, &job.DocumentID, &job.Attempt, &job.EnqueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("receive job: %w", err)
	}
	return &postgresDelivery{q: q, job: job}, nil
}

func (q *PostgresQueue) Close() error {
	return nil
}

type postgresDelivery struct {
	q   *PostgresQueue
	job Job
}

func (d *postgresDelivery) Job() Job {
	return d.job
}

func (d *postgresDelivery) Ack(ctx context.Context) error {
	_, err := d.q.pool.Exec(ctx, "DELETE FROM embedding_jobs WHERE id = $1", d.job.ID)
	return err
}

func (d *postgresDelivery) Retry(ctx context.Context, cause error) error {
	if d.job.Attempt >= d.q.opts.MaxAttempts {
		d.q.logger.Warn("job attempts exhausted", "job_id", d.job.ID, "document_id", d.job.DocumentID, "error", cause)
		return d.Fail(ctx, cause)
	}
	_, err := d.q.pool.Exec(ctx, `
		UPDATE embedding_jobs
		SET status = $2, last_error = $3, visible_at = now() + make_interval(secs => $4)
		WHERE id = $1`,
		d.job.ID, statusQueued, errorText(cause), d.q.opts.RetryBackoff.Seconds())
	return err
}

func (d *postgresDelivery) Fail(ctx context.Context, cause error) error {
	_, err := d.q.pool.Exec(ctx,
		"UPDATE embedding_jobs SET status = $2, last_error = $3 WHERE id = $1",
		d.job.ID, statusFailed, errorText(cause))
	return err
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
