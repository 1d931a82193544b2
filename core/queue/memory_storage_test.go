package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/certella/certella/core/queue"
)

func TestMemoryStorage_ClaimOrdersByScheduledAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()

	later := &queue.Job{ID: uuid.New(), Type: queue.JobTypeSyncStatus, Status: queue.JobStatusQueued,
		MaxAttempts: 3, ScheduledAt: time.Now().Add(-time.Minute)}
	earlier := &queue.Job{ID: uuid.New(), Type: queue.JobTypeSyncStatus, Status: queue.JobStatusQueued,
		MaxAttempts: 3, ScheduledAt: time.Now().Add(-time.Hour)}
	require.NoError(t, storage.CreateJobs(ctx, []*queue.Job{later, earlier}))

	job, err := storage.ClaimJob(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	require.Equal(t, earlier.ID, job.ID)
	require.Equal(t, queue.JobStatusRunning, job.Status)
	require.Equal(t, 1, job.Attempts)
}

func TestMemoryStorage_FutureJobNotClaimable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	job := &queue.Job{ID: uuid.New(), Type: queue.JobTypeRenewal, Status: queue.JobStatusQueued,
		MaxAttempts: 3, ScheduledAt: time.Now().Add(time.Hour)}
	require.NoError(t, storage.CreateJob(ctx, job))

	_, err := storage.ClaimJob(ctx, uuid.New(), time.Minute)
	require.ErrorIs(t, err, queue.ErrNoJobToClaim)
}

func TestMemoryStorage_ExpiredLockReclaimed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	job := &queue.Job{ID: uuid.New(), Type: queue.JobTypeDNSCheck, Status: queue.JobStatusQueued,
		MaxAttempts: 3, ScheduledAt: time.Now().Add(-time.Minute)}
	require.NoError(t, storage.CreateJob(ctx, job))

	first, err := storage.ClaimJob(ctx, uuid.New(), time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1, first.Attempts)

	time.Sleep(5 * time.Millisecond)

	second, err := storage.ClaimJob(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 2, second.Attempts)
}

func TestMemoryStorage_FailJobRequeuesUntilBudgetExhausted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	job := &queue.Job{ID: uuid.New(), Type: queue.JobTypeSyncStatus, Status: queue.JobStatusQueued,
		MaxAttempts: 2, ScheduledAt: time.Now().Add(-time.Minute)}
	require.NoError(t, storage.CreateJob(ctx, job))

	claimed, err := storage.ClaimJob(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, storage.FailJob(ctx, claimed.ID, "boom", 0))

	stored, ok := storage.GetJob(claimed.ID)
	require.True(t, ok)
	require.Equal(t, queue.JobStatusQueued, stored.Status)
	require.Equal(t, "boom", *stored.Error)

	claimed, err = storage.ClaimJob(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, claimed.Attempts)
	require.NoError(t, storage.FailJob(ctx, claimed.ID, "boom again", 0))

	stored, ok = storage.GetJob(claimed.ID)
	require.True(t, ok)
	require.Equal(t, queue.JobStatusFailed, stored.Status)
}

func TestMemoryStorage_MoveToDeadLetter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	domainID := uuid.New()
	job := &queue.Job{ID: uuid.New(), Type: queue.JobTypeStartIssuance, DomainID: &domainID,
		Status: queue.JobStatusQueued, MaxAttempts: 1, ScheduledAt: time.Now().Add(-time.Minute)}
	require.NoError(t, storage.CreateJob(ctx, job))

	claimed, err := storage.ClaimJob(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, storage.FailJob(ctx, claimed.ID, "permanent", 0))
	require.NoError(t, storage.MoveToDeadLetter(ctx, claimed.ID))

	_, ok := storage.GetJob(claimed.ID)
	require.False(t, ok)

	dead := storage.DeadLetters()
	require.Len(t, dead, 1)
	require.Equal(t, job.ID, dead[0].JobID)
	require.Equal(t, queue.JobTypeStartIssuance, dead[0].Type)
	require.Equal(t, "permanent", *dead[0].Error)
	require.Equal(t, domainID, *dead[0].DomainID)
}

func TestMemoryStorage_HasQueuedJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	domainID := uuid.New()

	ok, err := storage.HasQueuedJob(ctx, queue.JobTypeSyncStatus, domainID)
	require.NoError(t, err)
	require.False(t, ok)

	job := &queue.Job{ID: uuid.New(), Type: queue.JobTypeSyncStatus, DomainID: &domainID,
		Status: queue.JobStatusQueued, MaxAttempts: 3, ScheduledAt: time.Now()}
	require.NoError(t, storage.CreateJob(ctx, job))

	ok, err = storage.HasQueuedJob(ctx, queue.JobTypeSyncStatus, domainID)
	require.NoError(t, err)
	require.True(t, ok)

	// other types and other domains are not affected
	ok, err = storage.HasQueuedJob(ctx, queue.JobTypeRenewal, domainID)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = storage.HasQueuedJob(ctx, queue.JobTypeSyncStatus, uuid.New())
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, storage.CompleteJob(ctx, job.ID, nil))
	ok, err = storage.HasQueuedJob(ctx, queue.JobTypeSyncStatus, domainID)
	require.NoError(t, err)
	require.False(t, ok)
}
