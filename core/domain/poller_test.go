package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certella/certella/core/domain"
	"github.com/certella/certella/core/queue"
)

func newPollerFixture(t *testing.T) (*domain.MemoryRepository, *queue.MemoryStorage, *queue.Enqueuer) {
	t.Helper()
	repo := domain.NewMemoryRepository()
	storage := queue.NewMemoryStorage()
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)
	return repo, storage, enqueuer
}

func startPoller(t *testing.T, p *domain.Poller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestNewPoller_Validation(t *testing.T) {
	t.Parallel()

	_, _, enqueuer := newPollerFixture(t)
	_, err := domain.NewPoller(nil, enqueuer)
	require.ErrorIs(t, err, domain.ErrRepositoryNil)

	_, err = domain.NewPoller(domain.NewMemoryRepository(), nil)
	require.ErrorIs(t, err, domain.ErrEnqueuerNil)
}

func TestPoller_EnqueuesInflightDomains(t *testing.T) {
	t.Parallel()

	repo, _, enqueuer := newPollerFixture(t)
	pending := domain.Domain{ID: uuid.New(), Name: "a.example.com", Status: domain.StatusPendingCNAME}
	issuing := domain.Domain{ID: uuid.New(), Name: "b.example.com", Status: domain.StatusIssuing}
	now := time.Now()
	fresh := domain.Domain{ID: uuid.New(), Name: "c.example.com", Status: domain.StatusActive, LastSyncedAt: &now}
	repo.PutDomain(pending)
	repo.PutDomain(issuing)
	repo.PutDomain(fresh)

	poller, err := domain.NewPoller(repo, enqueuer, domain.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	startPoller(t, poller)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		a, _ := enqueuer.HasQueuedJob(ctx, queue.JobTypeSyncStatus, pending.ID)
		b, _ := enqueuer.HasQueuedJob(ctx, queue.JobTypeSyncStatus, issuing.ID)
		return a && b
	}, 3*time.Second, 5*time.Millisecond)

	// a recently synced active domain is left alone
	queued, err := enqueuer.HasQueuedJob(ctx, queue.JobTypeSyncStatus, fresh.ID)
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestPoller_EnqueuesStaleActiveDomains(t *testing.T) {
	t.Parallel()

	repo, _, enqueuer := newPollerFixture(t)
	old := time.Now().Add(-48 * time.Hour)
	stale := domain.Domain{ID: uuid.New(), Name: "old.example.com", Status: domain.StatusActive, LastSyncedAt: &old}
	repo.PutDomain(stale)

	poller, err := domain.NewPoller(repo, enqueuer,
		domain.WithPollInterval(10*time.Millisecond),
		domain.WithStaleAfter(24*time.Hour),
	)
	require.NoError(t, err)
	startPoller(t, poller)

	require.Eventually(t, func() bool {
		ok, _ := enqueuer.HasQueuedJob(context.Background(), queue.JobTypeSyncStatus, stale.ID)
		return ok
	}, 3*time.Second, 5*time.Millisecond)
}

func TestPoller_SkipsDomainsWithQueuedSync(t *testing.T) {
	t.Parallel()

	repo, _, enqueuer := newPollerFixture(t)
	d := domain.Domain{ID: uuid.New(), Name: "a.example.com", Status: domain.StatusIssuing}
	repo.PutDomain(d)

	poller, err := domain.NewPoller(repo, enqueuer, domain.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	startPoller(t, poller)

	require.Eventually(t, func() bool {
		return poller.Stats().Ticks >= 5
	}, 3*time.Second, 5*time.Millisecond)

	// the domain stays due the whole time, but only one job is created
	stats := poller.Stats()
	assert.Equal(t, int64(1), stats.EnqueuedJobs)
	assert.GreaterOrEqual(t, stats.SkippedJobs, int64(1))
}

func TestPoller_StopAndHealthcheck(t *testing.T) {
	t.Parallel()

	repo, _, enqueuer := newPollerFixture(t)
	poller, err := domain.NewPoller(repo, enqueuer, domain.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)

	require.ErrorIs(t, poller.Healthcheck(context.Background()), domain.ErrPollerNotRunning)
	require.ErrorIs(t, poller.Stop(), domain.ErrPollerNotRunning)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = poller.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		return poller.Healthcheck(context.Background()) == nil
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, poller.Stop())
	<-done
	assert.False(t, poller.Stats().IsRunning)
}
