package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStorage is a Postgres-backed Storage. Claiming uses
// FOR UPDATE SKIP LOCKED so multiple workers never double-process a job.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a PGStorage on top of an existing pool.
func NewPGStorage(pool *pgxpool.Pool) (*PGStorage, error) {
	if pool == nil {
		return nil, ErrStorageNil
	}
	return &PGStorage{pool: pool}, nil
}

const jobColumns = `id, type, domain_id, payload, status, attempts, max_attempts,
	scheduled_at, locked_until, locked_by, result, error, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var job Job
	err := row.Scan(
		&job.ID, &job.Type, &job.DomainID, &job.Payload, &job.Status,
		&job.Attempts, &job.MaxAttempts, &job.ScheduledAt, &job.LockedUntil,
		&job.LockedBy, &job.Result, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *PGStorage) CreateJob(ctx context.Context, job *Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, type, domain_id, payload, status, attempts, max_attempts, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Type, job.DomainID, job.Payload, job.Status,
		job.Attempts, job.MaxAttempts, job.ScheduledAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PGStorage) CreateJobs(ctx context.Context, jobs []*Job) error {
	batch := &pgx.Batch{}
	for _, job := range jobs {
		batch.Queue(`
			INSERT INTO jobs (id, type, domain_id, payload, status, attempts, max_attempts, scheduled_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			job.ID, job.Type, job.DomainID, job.Payload, job.Status,
			job.Attempts, job.MaxAttempts, job.ScheduledAt, job.CreatedAt, job.UpdatedAt,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert jobs batch: %w", err)
	}
	return nil
}

func (s *PGStorage) HasQueuedJob(ctx context.Context, jobType JobType, domainID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE type = $1 AND domain_id = $2 AND status IN ('queued', 'running')
		)`, jobType, domainID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check queued job: %w", err)
	}
	return exists, nil
}

func (s *PGStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, lockDuration time.Duration) (*Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE jobs SET
			status = 'running',
			attempts = attempts + 1,
			locked_until = now() + $2,
			locked_by = $1,
			updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE (status = 'queued' AND scheduled_at <= now())
			   OR (status = 'running' AND locked_until < now())
			ORDER BY scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, jobColumns),
		workerID, lockDuration,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoJobToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (s *PGStorage) CompleteJob(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = 'succeeded',
			result = $2,
			error = NULL,
			locked_until = NULL,
			locked_by = NULL,
			updated_at = now()
		WHERE id = $1`, jobID, result)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PGStorage) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, retryDelay time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'queued' END,
			scheduled_at = CASE WHEN attempts >= max_attempts THEN scheduled_at ELSE now() + $3 END,
			error = $2,
			locked_until = NULL,
			locked_by = NULL,
			updated_at = now()
		WHERE id = $1`, jobID, errMsg, retryDelay)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PGStorage) MoveToDeadLetter(ctx context.Context, jobID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move to dead letter: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		INSERT INTO jobs_dlq (id, job_id, type, domain_id, payload, attempts, error, failed_at, original_job)
		SELECT gen_random_uuid(), id, type, domain_id, payload, attempts, error, now(), to_jsonb(jobs)
		FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("copy job to dead letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID); err != nil {
		return fmt.Errorf("delete dead job: %w", err)
	}
	return tx.Commit(ctx)
}
