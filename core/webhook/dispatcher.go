package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config holds dispatcher configuration for environment-based loading.
type Config struct {
	RequestTimeout  time.Duration `env:"WEBHOOK_REQUEST_TIMEOUT" envDefault:"10s"`
	QueueSize       int           `env:"WEBHOOK_QUEUE_SIZE" envDefault:"256"`
	Workers         int           `env:"WEBHOOK_WORKERS" envDefault:"8"`
	ShutdownTimeout time.Duration `env:"WEBHOOK_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// delivery is one signed payload bound for one endpoint.
type delivery struct {
	endpoint Endpoint
	event    string
	body     []byte
}

// Dispatcher fans lifecycle events out to subscribed endpoints.
//
// Deliveries run on a bounded background worker pool fed by a local queue,
// so Dispatch returns without waiting on remote endpoints while Stop can
// still drain in-flight deliveries. Delivery is best-effort: individual
// failures are counted and logged, never propagated to the caller, and
// there is no dispatcher-level retry. Subscribers must tolerate
// at-least-once, possibly duplicate or missing, delivery.
type Dispatcher struct {
	store  EndpointStore
	client *http.Client
	queue  chan delivery
	logger *slog.Logger

	workers         int
	requestTimeout  time.Duration
	shutdownTimeout time.Duration

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup

	delivered        atomic.Int64
	failed           atomic.Int64
	dropped          atomic.Int64
	activeDeliveries atomic.Int32
}

// DispatcherStats provides observability metrics for monitoring and debugging.
type DispatcherStats struct {
	Delivered        int64 // Deliveries acknowledged with a response
	Failed           int64 // Deliveries that errored or timed out
	Dropped          int64 // Deliveries discarded because the local queue was full
	ActiveDeliveries int32 // Deliveries currently in flight
	QueuedDeliveries int   // Deliveries waiting in the local queue
	IsRunning        bool  // Whether the worker pool is running
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithLogger configures structured logging for the dispatcher.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRequestTimeout bounds each outbound delivery.
func WithRequestTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.requestTimeout = timeout
		}
	}
}

// WithQueueSize sets the local delivery queue capacity.
func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan delivery, size)
		}
	}
}

// WithWorkers sets the delivery concurrency limit.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for the queue to drain.
func WithShutdownTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.shutdownTimeout = timeout
		}
	}
}

// NewDispatcher creates a webhook dispatcher reading endpoints from store.
func NewDispatcher(store EndpointStore, opts ...DispatcherOption) (*Dispatcher, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	d := &Dispatcher{
		store:           store,
		queue:           make(chan delivery, 256),
		workers:         8,
		requestTimeout:  10 * time.Second,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.client == nil {
		d.client = &http.Client{Timeout: d.requestTimeout}
	}

	return d, nil
}

// NewDispatcherFromConfig creates a Dispatcher from configuration.
// Additional options override config values.
func NewDispatcherFromConfig(cfg Config, store EndpointStore, opts ...DispatcherOption) (*Dispatcher, error) {
	allOpts := append([]DispatcherOption{
		WithRequestTimeout(cfg.RequestTimeout),
		WithQueueSize(cfg.QueueSize),
		WithWorkers(cfg.Workers),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)

	return NewDispatcher(store, allOpts...)
}

// Start launches the delivery worker pool. This is a blocking operation that
// runs until the context is cancelled. Use Run() for errgroup pattern or
// call this in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return ErrDispatcherAlreadyStarted
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	if d.closed {
		// Stop closed the queue to release the workers; a restart
		// needs a fresh one before Dispatch may enqueue again.
		d.queue = make(chan delivery, cap(d.queue))
		d.closed = false
	}
	queue := d.queue
	d.mu.Unlock()

	d.logger.InfoContext(d.ctx, "webhook dispatcher started",
		slog.Int("workers", d.workers),
		slog.Int("queue_size", cap(d.queue)))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(queue)
	}

	<-d.ctx.Done()
	return d.ctx.Err()
}

// Stop gracefully shuts down the dispatcher, draining queued deliveries.
// Returns an error if the shutdown timeout is exceeded.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.cancel == nil {
		d.mu.Unlock()
		return ErrDispatcherNotStarted
	}

	cancel := d.cancel
	d.cancel = nil
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.logger.Info("webhook dispatcher stopping, draining queued deliveries",
		slog.Duration("timeout", d.shutdownTimeout))

	ctx, ctxCancel := context.WithTimeout(context.Background(), d.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		d.logger.Info("webhook dispatcher stopped cleanly")
		return nil
	case <-ctx.Done():
		cancel()
		d.logger.Warn("webhook dispatcher shutdown timeout exceeded - some deliveries may be abandoned",
			slog.Duration("timeout", d.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", d.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (d *Dispatcher) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- d.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = d.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Dispatch fans the event out to every enabled endpoint of the organization
// subscribed to it. The payload is wrapped in an envelope, signed per
// endpoint, and queued for background delivery. An error is returned only
// for local problems (store read, serialization); remote delivery outcomes
// never reach the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, organizationID uuid.UUID, event string, data any) error {
	endpoints, err := d.store.ListEndpoints(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("webhook: failed to list endpoints for organization %s: %w", organizationID, err)
	}

	body, err := json.Marshal(Envelope{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal event %q payload: %w", event, err)
	}

	for _, endpoint := range endpoints {
		if !endpoint.Subscribed(event) {
			continue
		}
		d.enqueue(ctx, delivery{endpoint: endpoint, event: event, body: body})
	}

	return nil
}

// enqueue places a delivery on the local queue, dropping it if the queue is
// full or the dispatcher is stopped. Dropping is preferable to blocking the
// domain sync path on slow subscribers.
func (d *Dispatcher) enqueue(ctx context.Context, dl delivery) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		d.logger.WarnContext(ctx, "dispatcher stopped, dropping delivery",
			slog.String("endpoint_id", dl.endpoint.ID.String()),
			slog.String("event", dl.event))
		return
	}

	select {
	case d.queue <- dl:
	default:
		d.dropped.Add(1)
		d.logger.WarnContext(ctx, "delivery queue full, dropping delivery",
			slog.String("endpoint_id", dl.endpoint.ID.String()),
			slog.String("event", dl.event))
	}
}

// worker consumes deliveries until the queue is closed and drained. The
// channel is passed in because a restarted dispatcher owns a fresh queue.
func (d *Dispatcher) worker(queue <-chan delivery) {
	defer d.wg.Done()

	for dl := range queue {
		d.deliver(dl)
	}
}

// deliver posts one signed payload to one endpoint. Failures are counted
// and logged only; a delivery outcome never affects sibling deliveries.
func (d *Dispatcher) deliver(dl delivery) {
	d.activeDeliveries.Add(1)
	defer d.activeDeliveries.Add(-1)

	// Deliveries get their own deadline so shutdown drain still completes
	// after the dispatcher context is cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), d.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dl.endpoint.URL, bytes.NewReader(dl.body))
	if err != nil {
		d.failed.Add(1)
		d.logger.Error("failed to build delivery request",
			slog.String("endpoint_id", dl.endpoint.ID.String()),
			slog.String("event", dl.event),
			slog.String("error", err.Error()))
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(dl.endpoint.Secret, dl.body))
	req.Header.Set(EventHeader, dl.event)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("webhook delivery failed",
			slog.String("endpoint_id", dl.endpoint.ID.String()),
			slog.String("url", dl.endpoint.URL),
			slog.String("event", dl.event),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	// Response status is recorded but not otherwise interpreted.
	d.delivered.Add(1)
	d.logger.DebugContext(ctx, "webhook delivered",
		slog.String("endpoint_id", dl.endpoint.ID.String()),
		slog.String("event", dl.event),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))
}

// Stats returns current dispatcher statistics for observability and monitoring.
// This method is thread-safe and can be called at any time.
func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.RLock()
	isRunning := d.cancel != nil
	queued := len(d.queue)
	d.mu.RUnlock()

	return DispatcherStats{
		Delivered:        d.delivered.Load(),
		Failed:           d.failed.Load(),
		Dropped:          d.dropped.Load(),
		ActiveDeliveries: d.activeDeliveries.Load(),
		QueuedDeliveries: queued,
		IsRunning:        isRunning,
	}
}

// Healthcheck validates that the dispatcher is operational.
// Returns nil if healthy, or an error describing the health issue.
func (d *Dispatcher) Healthcheck(ctx context.Context) error {
	if !d.Stats().IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrDispatcherNotRunning)
	}
	return nil
}
