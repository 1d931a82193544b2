package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer creates jobs. It is safe for concurrent use.
type Enqueuer struct {
	storage     EnqueuerStorage
	maxAttempts int
}

// EnqueuerOption customizes an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithDefaultMaxAttempts sets the retry budget applied to jobs that do
// not override it.
func WithDefaultMaxAttempts(n int) EnqueuerOption {
	return func(e *Enqueuer) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// NewEnqueuer creates an Enqueuer backed by the given storage.
func NewEnqueuer(storage EnqueuerStorage, opts ...EnqueuerOption) (*Enqueuer, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	e := &Enqueuer{
		storage:     storage,
		maxAttempts: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type enqueueOptions struct {
	scheduledAt time.Time
	maxAttempts int
	domainID    *uuid.UUID
}

// EnqueueOption customizes a single job.
type EnqueueOption func(*enqueueOptions)

// WithDelay schedules the job to become due after d.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.scheduledAt = time.Now().Add(d) }
}

// WithScheduledAt schedules the job to become due at t.
func WithScheduledAt(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) { o.scheduledAt = t }
}

// WithMaxAttempts overrides the retry budget for this job.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithDomainID tags the job with the domain it concerns.
func WithDomainID(id uuid.UUID) EnqueueOption {
	return func(o *enqueueOptions) { o.domainID = &id }
}

// Enqueue creates a single job of the given type.
func (e *Enqueuer) Enqueue(ctx context.Context, jobType JobType, payload any, opts ...EnqueueOption) error {
	job, err := e.buildJob(jobType, payload, opts...)
	if err != nil {
		return err
	}
	if err := e.storage.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// JobSpec describes one job in a batch enqueue.
type JobSpec struct {
	Type    JobType
	Payload any
	Opts    []EnqueueOption
}

// EnqueueBatch creates several jobs in one storage round trip. Either
// all jobs are created or none.
func (e *Enqueuer) EnqueueBatch(ctx context.Context, specs []JobSpec) error {
	if len(specs) == 0 {
		return nil
	}

	jobs := make([]*Job, 0, len(specs))
	for _, spec := range specs {
		job, err := e.buildJob(spec.Type, spec.Payload, spec.Opts...)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}
	if err := e.storage.CreateJobs(ctx, jobs); err != nil {
		return fmt.Errorf("create jobs: %w", err)
	}
	return nil
}

// HasQueuedJob reports whether a job of the given type is already queued
// or running for the domain.
func (e *Enqueuer) HasQueuedJob(ctx context.Context, jobType JobType, domainID uuid.UUID) (bool, error) {
	return e.storage.HasQueuedJob(ctx, jobType, domainID)
}

func (e *Enqueuer) buildJob(jobType JobType, payload any, opts ...EnqueueOption) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	now := time.Now()
	o := enqueueOptions{
		scheduledAt: now,
		maxAttempts: e.maxAttempts,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Job{
		ID:          uuid.New(),
		Type:        jobType,
		DomainID:    o.domainID,
		Payload:     raw,
		Status:      JobStatusQueued,
		MaxAttempts: o.maxAttempts,
		ScheduledAt: o.scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
