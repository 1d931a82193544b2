package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage for tests and local development.
// Expired locks are reclaimed lazily on the next ClaimJob call, so no
// background goroutine is needed.
type MemoryStorage struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
	dead map[uuid.UUID]*DeadJob
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs: make(map[uuid.UUID]*Job),
		dead: make(map[uuid.UUID]*DeadJob),
	}
}

func (s *MemoryStorage) CreateJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStorage) CreateJobs(_ context.Context, jobs []*Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		cp := *job
		s.jobs[job.ID] = &cp
	}
	return nil
}

func (s *MemoryStorage) HasQueuedJob(_ context.Context, jobType JobType, domainID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Type != jobType || job.DomainID == nil || *job.DomainID != domainID {
			continue
		}
		if job.Status == JobStatusQueued || job.Status == JobStatusRunning {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStorage) ClaimJob(_ context.Context, workerID uuid.UUID, lockDuration time.Duration) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var oldest *Job
	for _, job := range s.jobs {
		if !claimable(job, now) {
			continue
		}
		if oldest == nil || job.ScheduledAt.Before(oldest.ScheduledAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, ErrNoJobToClaim
	}

	until := now.Add(lockDuration)
	oldest.Status = JobStatusRunning
	oldest.Attempts++
	oldest.LockedUntil = &until
	oldest.LockedBy = &workerID
	oldest.UpdatedAt = now

	cp := *oldest
	return &cp, nil
}

func claimable(job *Job, now time.Time) bool {
	switch job.Status {
	case JobStatusQueued:
		return !job.ScheduledAt.After(now)
	case JobStatusRunning:
		return job.LockedUntil != nil && job.LockedUntil.Before(now)
	default:
		return false
	}
}

func (s *MemoryStorage) CompleteJob(_ context.Context, jobID uuid.UUID, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = JobStatusSucceeded
	job.Result = result
	job.Error = nil
	job.LockedUntil = nil
	job.LockedBy = nil
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) FailJob(_ context.Context, jobID uuid.UUID, errMsg string, retryDelay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	now := time.Now()
	job.Error = &errMsg
	job.LockedUntil = nil
	job.LockedBy = nil
	job.UpdatedAt = now

	if job.Attempts >= job.MaxAttempts {
		job.Status = JobStatusFailed
		return nil
	}
	job.Status = JobStatusQueued
	job.ScheduledAt = now.Add(retryDelay)
	return nil
}

func (s *MemoryStorage) MoveToDeadLetter(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	original, _ := json.Marshal(job)
	s.dead[jobID] = &DeadJob{
		ID:          uuid.New(),
		JobID:       job.ID,
		Type:        job.Type,
		DomainID:    job.DomainID,
		Payload:     job.Payload,
		Attempts:    job.Attempts,
		Error:       job.Error,
		FailedAt:    time.Now(),
		OriginalJob: original,
	}
	delete(s.jobs, jobID)
	return nil
}

// GetJob returns a copy of a job by ID. Test helper.
func (s *MemoryStorage) GetJob(id uuid.UUID) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// DeadLetters returns copies of all dead letter entries.
func (s *MemoryStorage) DeadLetters() []DeadJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadJob, 0, len(s.dead))
	for _, d := range s.dead {
		out = append(out, *d)
	}
	return out
}
