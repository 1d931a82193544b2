package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EnqueuerStorage is the subset of storage an enqueuer needs.
type EnqueuerStorage interface {
	// CreateJob persists a new job in queued state.
	CreateJob(ctx context.Context, job *Job) error
	// CreateJobs persists a batch of jobs in a single round trip.
	CreateJobs(ctx context.Context, jobs []*Job) error
	// HasQueuedJob reports whether a queued or running job of the given
	// type already exists for the domain. Used to avoid piling up
	// duplicate work for the same domain.
	HasQueuedJob(ctx context.Context, jobType JobType, domainID uuid.UUID) (bool, error)
}

// WorkerStorage is the subset of storage the worker needs to claim and
// settle jobs.
type WorkerStorage interface {
	// ClaimJob atomically claims the oldest due job: marks it running,
	// increments its attempt counter and locks it for lockDuration.
	// Jobs whose lock expired are reclaimed the same way. Returns
	// ErrNoJobToClaim when nothing is due.
	ClaimJob(ctx context.Context, workerID uuid.UUID, lockDuration time.Duration) (*Job, error)
	// CompleteJob marks a job succeeded and records its result.
	CompleteJob(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error
	// FailJob records the error on a job. If the job still has retry
	// budget it is requeued with a delay, otherwise it is marked failed.
	FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, retryDelay time.Duration) error
	// MoveToDeadLetter moves a failed job into the dead letter store
	// and removes it from the active queue.
	MoveToDeadLetter(ctx context.Context, jobID uuid.UUID) error
}

// Storage is the full persistence contract for the queue.
type Storage interface {
	EnqueuerStorage
	WorkerStorage
}
