package queue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgresQueue(t *testing.T, opts Options) *PostgresQueue {
	t.Helper()
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "DROP TABLE IF EXISTS embedding_jobs")
	require.NoError(t, err)
	q := NewPostgresQueue(pool, opts)
	require.NoError(t, q.Init(ctx))
	return q
}

func TestPostgresQueueLifecycle(t *testing.T) {
	q := newTestPostgresQueue(t, Options{MaxAttempts: 2, RetryBackoff: time.Millisecond})
	ctx := context.Background()

	docID := uuid.New()
	handle, err := q.Enqueue(ctx, Job{DocumentID: docID})
	require.NoError(t, err)

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, handle.ID, d.Job().ID)
	assert.Equal(t, docID, d.Job().DocumentID)
	assert.Equal(t, 1, d.Job().Attempt)

	// claimed jobs are invisible to other consumers
	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoJob)

	require.NoError(t, d.Retry(ctx, errors.New("transient")))
	time.Sleep(20 * time.Millisecond)

	d, err = q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Job().Attempt)
	require.NoError(t, d.Ack(ctx))

	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoJob)
}
