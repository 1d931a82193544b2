package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/certella/certella/core/queue"
)

// BatchEnqueuer is the enqueuer surface the poller depends on.
type BatchEnqueuer interface {
	EnqueueBatch(ctx context.Context, specs []queue.JobSpec) error
	HasQueuedJob(ctx context.Context, jobType queue.JobType, domainID uuid.UUID) (bool, error)
}

// PollerConfig tunes the sync scheduler.
type PollerConfig struct {
	Interval   time.Duration `env:"POLL_INTERVAL" envDefault:"1m"`
	StaleAfter time.Duration `env:"POLL_STALE_AFTER" envDefault:"24h"`
	BatchSize  int           `env:"POLL_BATCH_SIZE" envDefault:"100"`
}

// Poller periodically selects domains that need a provider sync and
// enqueues sync jobs for them. Domains in flight (pending_cname,
// issuing) are polled every tick; active domains only when their last
// sync is older than StaleAfter, which catches renewals and expiries.
type Poller struct {
	repo     Repository
	enqueuer BatchEnqueuer
	log      *slog.Logger

	interval   time.Duration
	staleAfter time.Duration
	batchSize  int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	ticks    atomic.Int64
	enqueued atomic.Int64
	skipped  atomic.Int64
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithPollerLogger sets the logger for scheduling events.
func WithPollerLogger(log *slog.Logger) PollerOption {
	return func(p *Poller) {
		if log != nil {
			p.log = log
		}
	}
}

// WithPollInterval sets the tick interval.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithStaleAfter sets how old an active domain's last sync may get
// before it is polled again.
func WithStaleAfter(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.staleAfter = d
		}
	}
}

// WithBatchSize bounds how many domains one tick may enqueue.
func WithBatchSize(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// NewPoller creates a Poller.
func NewPoller(repo Repository, enqueuer BatchEnqueuer, opts ...PollerOption) (*Poller, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}

	p := &Poller{
		repo:       repo,
		enqueuer:   enqueuer,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval:   time.Minute,
		staleAfter: 24 * time.Hour,
		batchSize:  100,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewPollerFromConfig creates a Poller tuned by PollerConfig. Explicit
// options take precedence.
func NewPollerFromConfig(cfg PollerConfig, repo Repository, enqueuer BatchEnqueuer, opts ...PollerOption) (*Poller, error) {
	base := []PollerOption{
		WithPollInterval(cfg.Interval),
		WithStaleAfter(cfg.StaleAfter),
		WithBatchSize(cfg.BatchSize),
	}
	return NewPoller(repo, enqueuer, append(base, opts...)...)
}

// Start runs the scheduling loop until ctx is cancelled or Stop is
// called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.cancel = nil
		p.mu.Unlock()
	}()

	p.log.InfoContext(ctx, "domain poller started",
		slog.Duration("interval", p.interval),
		slog.Int("batch_size", p.batchSize))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.tick(ctx); err != nil && ctx.Err() == nil {
				p.log.ErrorContext(ctx, "poll tick", slog.Any("error", err))
			}
		}
	}
}

// tick selects due domains and enqueues sync jobs, skipping domains that
// already have one queued.
func (p *Poller) tick(ctx context.Context) error {
	p.ticks.Add(1)

	staleBefore := time.Now().Add(-p.staleAfter)
	domains, err := p.repo.ListDomainsDue(ctx,
		[]Status{StatusPendingCNAME, StatusIssuing}, staleBefore, p.batchSize)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		return nil
	}

	specs := make([]queue.JobSpec, 0, len(domains))
	for _, d := range domains {
		queued, err := p.enqueuer.HasQueuedJob(ctx, queue.JobTypeSyncStatus, d.ID)
		if err != nil {
			p.log.ErrorContext(ctx, "check queued sync job",
				slog.String("domain_id", d.ID.String()),
				slog.Any("error", err))
			continue
		}
		if queued {
			p.skipped.Add(1)
			continue
		}
		specs = append(specs, queue.JobSpec{
			Type:    queue.JobTypeSyncStatus,
			Payload: JobPayload{DomainID: d.ID},
			Opts:    []queue.EnqueueOption{queue.WithDomainID(d.ID)},
		})
	}
	if len(specs) == 0 {
		return nil
	}

	if err := p.enqueuer.EnqueueBatch(ctx, specs); err != nil {
		return err
	}
	p.enqueued.Add(int64(len(specs)))
	p.log.DebugContext(ctx, "enqueued sync jobs", slog.Int("count", len(specs)))
	return nil
}

// Stop cancels the scheduling loop.
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.cancel == nil {
		return ErrPollerNotRunning
	}
	p.cancel()
	return nil
}

// Run adapts Start for errgroup usage.
func (p *Poller) Run(ctx context.Context) func() error {
	return func() error {
		if err := p.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// PollerStats is a point-in-time snapshot of scheduler activity.
type PollerStats struct {
	IsRunning    bool
	Ticks        int64
	EnqueuedJobs int64
	SkippedJobs  int64
}

// Stats reports scheduler counters.
func (p *Poller) Stats() PollerStats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	return PollerStats{
		IsRunning:    running,
		Ticks:        p.ticks.Load(),
		EnqueuedJobs: p.enqueued.Load(),
		SkippedJobs:  p.skipped.Load(),
	}
}

// Healthcheck reports whether the poller is running.
func (p *Poller) Healthcheck(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrPollerNotRunning
	}
	return nil
}
