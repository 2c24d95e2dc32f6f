package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJob(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	queued, err := q.Enqueue(Job{Type: "reconcile", Key: "offering-1"})
	require.NoError(t, err)
	require.NotEmpty(t, queued.ID)

	select {
	case job := <-done:
		assert.Equal(t, queued.ID, job.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
	require.Eventually(t, func() bool { return !q.Pending("offering-1") }, time.Second, 10*time.Millisecond)
}

func TestQueueCoalescesPendingKey(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Key: "offering-1"})
	require.NoError(t, err)
	_, err = q.Enqueue(Job{Key: "offering-1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	close(release)
}

func TestQueueRetriesFailedJob(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 2 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Key: "offering-2"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !q.Pending("offering-2") }, time.Second, 10*time.Millisecond)
}

func TestQueueDropsRetryWhenBufferFull(t *testing.T) {
	var failures int32
	busy := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		switch job.Key {
		case "offering-a":
			atomic.AddInt32(&failures, 1)
			return errors.New("transient")
		case "offering-b":
			close(busy)
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1, MaxRetries: 3, RetryDelay: 50 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	_, err := q.Enqueue(Job{Key: "offering-a"})
	require.NoError(t, err)
	_, err = q.Enqueue(Job{Key: "offering-b"})
	require.NoError(t, err)
	<-busy
	_, err = q.Enqueue(Job{Key: "offering-c"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !q.Pending("offering-a") }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&failures))
	assert.True(t, q.Pending("offering-c"))
}

func TestQueueNotStarted(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(Job{})
	assert.Error(t, err)
}
