package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of work a job carries. Handlers register
// under a type, and the worker routes claimed jobs by it.
type JobType string

const (
	JobTypeSyncStatus    JobType = "sync_status"
	JobTypeDNSCheck      JobType = "dns_check"
	JobTypeStartIssuance JobType = "start_issuance"
	JobTypeRenewal       JobType = "renewal"
	JobTypeSendEmail     JobType = "send_email"
)

// JobStatus tracks a job through its lifecycle.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a single unit of queued work. DomainID is optional context used
// for scheduling dedupe and operator queries; the payload remains the
// source of truth for handlers.
type Job struct {
	ID          uuid.UUID
	Type        JobType
	DomainID    *uuid.UUID
	Payload     json.RawMessage
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	ScheduledAt time.Time
	LockedUntil *time.Time
	LockedBy    *uuid.UUID
	Result      json.RawMessage
	Error       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeadJob is a job that exhausted its retry budget or had no registered
// handler. Dead jobs are kept for inspection and manual requeue.
type DeadJob struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	Type        JobType
	DomainID    *uuid.UUID
	Payload     json.RawMessage
	Attempts    int
	Error       *string
	FailedAt    time.Time
	OriginalJob json.RawMessage
}
