package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueEnqueueReceive(t *testing.T) {
	q := NewMemoryQueue(4, Options{})
	ctx := context.Background()
	docID := uuid.New()

	handle, err := q.Enqueue(ctx, Job{DocumentID: docID})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, handle.ID)
	assert.False(t, handle.EnqueuedAt.IsZero())
	assert.Equal(t, 1, q.Len())

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, handle.ID, d.Job().ID)
	assert.Equal(t, docID, d.Job().DocumentID)
	assert.Equal(t, 1, d.Job().Attempt)
	require.NoError(t, d.Ack(ctx))

	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoJob)
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(1, Options{})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, Job{DocumentID: uuid.New()})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Job{DocumentID: uuid.New()})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestMemoryQueueRetryUntilExhausted(t *testing.T) {
	q := NewMemoryQueue(4, Options{MaxAttempts: 2, RetryBackoff: time.Millisecond})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, Job{DocumentID: uuid.New()})
	require.NoError(t, err)

	cause := errors.New("connection reset")

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Retry(ctx, cause))

	var second Delivery
	require.Eventually(t, func() bool {
		second, err = q.Receive(ctx)
		return err == nil
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, second.Job().Attempt)

	require.NoError(t, second.Retry(ctx, cause))
	assert.Len(t, q.Failed(), 1)
	assert.Zero(t, q.Len())
}

func TestMemoryQueueFail(t *testing.T) {
	q := NewMemoryQueue(4, Options{})
	ctx := context.Background()
	handle, err := q.Enqueue(ctx, Job{DocumentID: uuid.New()})
	require.NoError(t, err)

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Fail(ctx, errors.New("bad input")))

	failed := q.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, handle.ID, failed[0].ID)
}

func TestMemoryQueueClosed(t *testing.T) {
	q := NewMemoryQueue(4, Options{})
	require.NoError(t, q.Close())
	_, err := q.Enqueue(context.Background(), Job{DocumentID: uuid.New()})
	assert.Error(t, err)
	_, err = q.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNoJob)
}
