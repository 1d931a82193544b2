package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Worker claims due jobs from storage and runs their handlers. Each job
// is processed in its own goroutine, bounded by a concurrency limit, so
// one slow or failing job never blocks the rest of the queue.
type Worker struct {
	id       uuid.UUID
	storage  WorkerStorage
	handlers map[JobType]Handler
	log      *slog.Logger

	pullInterval    time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	retryBackoff    time.Duration

	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	processed  atomic.Int64
	failed     atomic.Int64
	deadLetter atomic.Int64
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the logger used for job lifecycle events.
func WithWorkerLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}

// WithPullInterval sets how often the worker polls for due jobs when the
// queue is empty.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pullInterval = d
		}
	}
}

// WithLockTimeout sets how long a claimed job stays locked before other
// workers may reclaim it.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.lockTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for in-flight jobs.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.shutdownTimeout = d
		}
	}
}

// WithMaxConcurrentJobs bounds how many jobs run at once.
func WithMaxConcurrentJobs(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.sem = make(chan struct{}, n)
		}
	}
}

// WithRetryBackoff sets the base delay between retries. The actual delay
// grows linearly with the attempt count.
func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.retryBackoff = d
		}
	}
}

// NewWorker creates a Worker with the given handlers. Every handler
// registers under its job type; registering two handlers for one type is
// an error.
func NewWorker(storage WorkerStorage, handlers []Handler, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if len(handlers) == 0 {
		return nil, ErrNoHandlers
	}

	registry := make(map[JobType]Handler, len(handlers))
	for _, h := range handlers {
		if _, ok := registry[h.Type()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, h.Type())
		}
		registry[h.Type()] = h
	}

	w := &Worker{
		id:              uuid.New(),
		storage:         storage,
		handlers:        registry,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		pullInterval:    3 * time.Second,
		lockTimeout:     5 * time.Minute,
		shutdownTimeout: 30 * time.Second,
		retryBackoff:    30 * time.Second,
		sem:             make(chan struct{}, 10),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// NewWorkerFromConfig creates a Worker tuned by Config. Explicit options
// take precedence over config values.
func NewWorkerFromConfig(cfg Config, storage WorkerStorage, handlers []Handler, opts ...WorkerOption) (*Worker, error) {
	base := []WorkerOption{
		WithPullInterval(cfg.PullInterval),
		WithLockTimeout(cfg.LockTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
		WithRetryBackoff(cfg.RetryBackoff),
	}
	return NewWorker(storage, handlers, append(base, opts...)...)
}

// Start runs the claim loop until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	w.log.InfoContext(ctx, "queue worker started",
		slog.String("worker_id", w.id.String()),
		slog.Int("handlers", len(w.handlers)))

	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case <-ticker.C:
			w.claimLoop(ctx)
		}
	}
}

// claimLoop claims jobs until the queue is drained or concurrency is
// exhausted, then returns to the ticker.
func (w *Worker) claimLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w.sem <- struct{}{}:
		}

		job, err := w.storage.ClaimJob(ctx, w.id, w.lockTimeout)
		if err != nil {
			<-w.sem
			if !errors.Is(err, ErrNoJobToClaim) && ctx.Err() == nil {
				w.log.ErrorContext(ctx, "claim job", slog.Any("error", err))
			}
			return
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.processJob(ctx, job)
		}()
	}
}

func (w *Worker) processJob(ctx context.Context, job *Job) {
	log := w.log.With(
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.Int("attempt", job.Attempts))

	handler, ok := w.handlers[job.Type]
	if !ok {
		log.ErrorContext(ctx, "no handler for job type, moving to dead letter")
		w.failJob(ctx, job, ErrHandlerNotFound.Error(), true)
		return
	}

	jobCtx, cancel := context.WithDeadline(ctx, time.Now().Add(w.lockTimeout))
	defer cancel()

	result, err := w.runHandler(jobCtx, handler, job.Payload)
	if err != nil {
		exhausted := job.Attempts >= job.MaxAttempts
		log.ErrorContext(ctx, "job failed",
			slog.Any("error", err),
			slog.Bool("exhausted", exhausted))
		w.failJob(ctx, job, err.Error(), exhausted)
		return
	}

	if err := w.storage.CompleteJob(ctx, job.ID, result); err != nil {
		log.ErrorContext(ctx, "complete job", slog.Any("error", err))
		return
	}
	w.processed.Add(1)
	log.DebugContext(ctx, "job completed")
}

// runHandler isolates handler panics so a bad payload cannot take the
// worker down.
func (w *Worker) runHandler(ctx context.Context, handler Handler, payload []byte) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, payload)
}

// failJob records the failure. When the retry budget is exhausted (or the
// failure is not retryable) the job moves to the dead letter store.
func (w *Worker) failJob(ctx context.Context, job *Job, errMsg string, dead bool) {
	delay := time.Duration(job.Attempts) * w.retryBackoff
	if err := w.storage.FailJob(ctx, job.ID, errMsg, delay); err != nil {
		w.log.ErrorContext(ctx, "fail job",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
		return
	}
	w.failed.Add(1)

	if !dead {
		return
	}
	if err := w.storage.MoveToDeadLetter(ctx, job.ID); err != nil {
		w.log.ErrorContext(ctx, "move job to dead letter",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
		return
	}
	w.deadLetter.Add(1)
}

// drain waits for in-flight jobs, bounded by the shutdown timeout.
func (w *Worker) drain() {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.shutdownTimeout):
		w.log.Warn("shutdown timeout reached with jobs still in flight")
	}

	w.mu.Lock()
	w.running = false
	w.cancel = nil
	w.mu.Unlock()
}

// Stop cancels the claim loop and waits for in-flight jobs to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running || w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotRunning
	}
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	return nil
}

// Run adapts Start for errgroup usage.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// WorkerStats is a point-in-time snapshot of worker activity.
type WorkerStats struct {
	WorkerID      uuid.UUID
	IsRunning     bool
	ActiveJobs    int
	ProcessedJobs int64
	FailedJobs    int64
	DeadLetters   int64
}

// Stats reports worker activity counters.
func (w *Worker) Stats() WorkerStats {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	return WorkerStats{
		WorkerID:      w.id,
		IsRunning:     running,
		ActiveJobs:    len(w.sem),
		ProcessedJobs: w.processed.Load(),
		FailedJobs:    w.failed.Load(),
		DeadLetters:   w.deadLetter.Load(),
	}
}

// Healthcheck reports whether the worker is running.
func (w *Worker) Healthcheck(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return ErrWorkerNotRunning
	}
	return nil
}
