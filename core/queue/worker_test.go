package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/certella/certella/core/queue"
)

type testPayload struct {
	DomainID string `json:"domain_id"`
}

func startWorker(t *testing.T, storage queue.Storage, handlers []queue.Handler) {
	t.Helper()

	worker, err := queue.NewWorker(storage, handlers,
		queue.WithPullInterval(10*time.Millisecond),
		queue.WithRetryBackoff(time.Millisecond),
		queue.WithShutdownTimeout(time.Second),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 5*time.Millisecond)
}

func TestNewWorker_Validation(t *testing.T) {
	t.Parallel()

	handler := queue.NewJobHandler(queue.JobTypeSyncStatus, func(context.Context, testPayload) error { return nil })

	_, err := queue.NewWorker(nil, []queue.Handler{handler})
	require.ErrorIs(t, err, queue.ErrStorageNil)

	_, err = queue.NewWorker(queue.NewMemoryStorage(), nil)
	require.ErrorIs(t, err, queue.ErrNoHandlers)

	_, err = queue.NewWorker(queue.NewMemoryStorage(), []queue.Handler{handler, handler})
	require.ErrorIs(t, err, queue.ErrDuplicateHandler)
}

func TestWorker_ProcessesJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var got atomic.Value
	handler := queue.NewJobHandler(queue.JobTypeSyncStatus, func(_ context.Context, p testPayload) error {
		got.Store(p.DomainID)
		return nil
	})
	startWorker(t, storage, []queue.Handler{handler})

	require.NoError(t, enqueuer.Enqueue(ctx, queue.JobTypeSyncStatus, testPayload{DomainID: "d-1"}))

	waitFor(t, func() bool {
		v, _ := got.Load().(string)
		return v == "d-1"
	})
}

func TestWorker_PersistsHandlerResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	handler := queue.NewJobHandlerWithResult(queue.JobTypeDNSCheck, func(context.Context, testPayload) (any, error) {
		return map[string]bool{"success": true}, nil
	})
	startWorker(t, storage, []queue.Handler{handler})

	domainID := uuid.New()
	require.NoError(t, enqueuer.Enqueue(ctx, queue.JobTypeDNSCheck, testPayload{}, queue.WithDomainID(domainID)))

	waitFor(t, func() bool {
		queued, err := enqueuer.HasQueuedJob(ctx, queue.JobTypeDNSCheck, domainID)
		return err == nil && !queued
	})
}

func TestWorker_RetriesThenDeadLetters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var attempts atomic.Int64
	handler := queue.NewJobHandler(queue.JobTypeStartIssuance, func(context.Context, testPayload) error {
		attempts.Add(1)
		return errors.New("provider unavailable")
	})
	startWorker(t, storage, []queue.Handler{handler})

	require.NoError(t, enqueuer.Enqueue(ctx, queue.JobTypeStartIssuance, testPayload{}, queue.WithMaxAttempts(3)))

	waitFor(t, func() bool { return len(storage.DeadLetters()) == 1 })

	// exactly one attempt per delivery, never more than the budget
	require.Equal(t, int64(3), attempts.Load())

	dead := storage.DeadLetters()[0]
	require.Equal(t, 3, dead.Attempts)
	require.Contains(t, *dead.Error, "provider unavailable")
}

func TestWorker_MissingHandlerGoesToDeadLetter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	handler := queue.NewJobHandler(queue.JobTypeSyncStatus, func(context.Context, testPayload) error { return nil })
	startWorker(t, storage, []queue.Handler{handler})

	require.NoError(t, enqueuer.Enqueue(ctx, queue.JobTypeRenewal, testPayload{}))

	waitFor(t, func() bool { return len(storage.DeadLetters()) == 1 })
	require.Contains(t, *storage.DeadLetters()[0].Error, "no handler registered")
}

func TestWorker_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var processed atomic.Bool
	handlers := []queue.Handler{
		queue.NewJobHandler(queue.JobTypeSendEmail, func(context.Context, testPayload) error {
			panic("template blew up")
		}),
		queue.NewJobHandler(queue.JobTypeSyncStatus, func(context.Context, testPayload) error {
			processed.Store(true)
			return nil
		}),
	}
	startWorker(t, storage, handlers)

	require.NoError(t, enqueuer.Enqueue(ctx, queue.JobTypeSendEmail, testPayload{}, queue.WithMaxAttempts(1)))
	require.NoError(t, enqueuer.Enqueue(ctx, queue.JobTypeSyncStatus, testPayload{}))

	// the panicking job lands in the dead letter store and the healthy
	// one still completes
	waitFor(t, func() bool { return len(storage.DeadLetters()) == 1 && processed.Load() })
	require.Contains(t, *storage.DeadLetters()[0].Error, "handler panic")
}

func TestWorker_OneFailingJobDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var succeeded atomic.Int64
	handler := queue.NewJobHandler(queue.JobTypeSyncStatus, func(_ context.Context, p testPayload) error {
		if p.DomainID == "bad" {
			return errors.New("sync failed")
		}
		succeeded.Add(1)
		return nil
	})
	startWorker(t, storage, []queue.Handler{handler})

	require.NoError(t, enqueuer.Enqueue(ctx, queue.JobTypeSyncStatus, testPayload{DomainID: "bad"}, queue.WithMaxAttempts(1)))
	for i := 0; i < 3; i++ {
		require.NoError(t, enqueuer.Enqueue(ctx, queue.JobTypeSyncStatus, testPayload{DomainID: "good"}))
	}

	waitFor(t, func() bool { return succeeded.Load() == 3 && len(storage.DeadLetters()) == 1 })
}

func TestWorker_StatsAndHealthcheck(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	handler := queue.NewJobHandler(queue.JobTypeSyncStatus, func(context.Context, testPayload) error { return nil })
	worker, err := queue.NewWorker(storage, []queue.Handler{handler},
		queue.WithPullInterval(10*time.Millisecond))
	require.NoError(t, err)

	require.ErrorIs(t, worker.Healthcheck(context.Background()), queue.ErrWorkerNotRunning)
	require.ErrorIs(t, worker.Stop(), queue.ErrWorkerNotRunning)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Start(ctx)
	}()

	waitFor(t, func() bool { return worker.Healthcheck(ctx) == nil })
	require.True(t, worker.Stats().IsRunning)

	require.NoError(t, worker.Stop())
	<-done
	require.False(t, worker.Stats().IsRunning)
}
