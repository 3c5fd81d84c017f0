package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "demo", Payload: 42}))

	select {
	case job := <-done:
		assert.Equal(t, "demo", job.Type)
		assert.Equal(t, 42, job.Payload)
		assert.NotEmpty(t, job.ID)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var outcomes []Outcome
	failed := make(chan struct{})

	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnResult: func(job Job, outcome Outcome, _ time.Duration) {
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			if outcome == OutcomeFailed {
				close(failed)
			}
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "flaky"}))

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("job never exhausted retries")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Outcome{OutcomeRetried, OutcomeRetried, OutcomeFailed}, outcomes)
}

func TestQueueEnqueueDoesNotBlockWhenFull(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(release)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{Type: "first"}))
	<-started
	require.NoError(t, q.Enqueue(Job{Type: "second"}))

	err := q.Enqueue(Job{Type: "third"})
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, q.Len())
}

func TestQueueEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.ErrorIs(t, q.Enqueue(Job{Type: "x"}), ErrQueueStopped)

	q.Start(context.Background())
	q.Stop()
	require.ErrorIs(t, q.Enqueue(Job{Type: "x"}), ErrQueueStopped)
}

func TestQueueRecoversPanickingHandler(t *testing.T) {
	failed := make(chan struct{})
	q := NewQueue("panic", func(context.Context, Job) error {
		panic("bad job")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 0,
		OnResult: func(job Job, outcome Outcome, _ time.Duration) {
			if outcome == OutcomeFailed {
				close(failed)
			}
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "explode"}))
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not converted into a failure")
	}
}

func TestQueueStopWaitsForPendingRetries(t *testing.T) {
	var stopped atomic.Bool
	var late int32
	retried := make(chan struct{}, 1)

	q := NewQueue("stop-retry", func(ctx context.Context, job Job) error {
		return errors.New("boom")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		RetryDelay: 20 * time.Millisecond,
		OnResult: func(job Job, outcome Outcome, _ time.Duration) {
			if stopped.Load() {
				atomic.AddInt32(&late, 1)
			}
			if outcome == OutcomeRetried {
				select {
				case retried <- struct{}{}:
				default:
				}
			}
		},
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "flaky"}))

	select {
	case <-retried:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never retried")
	}

	finished := make(chan struct{})
	go func() {
		q.Stop()
		stopped.Store(true)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&late))
}
