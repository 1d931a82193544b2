package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/certella/certella/core/queue"
	"github.com/certella/certella/integration/caproxy"
	"github.com/certella/certella/pkg/async"
	"github.com/certella/certella/pkg/dedupe"
	"github.com/certella/certella/pkg/dnscheck"
)

// StatusProvider is the certificate authority client surface the syncer
// depends on.
type StatusProvider interface {
	HostnameStatus(ctx context.Context, providerID string) (caproxy.Status, error)
	RequestIssuance(ctx context.Context, hostname string) (string, error)
	RequestRenewal(ctx context.Context, providerID string) error
}

// DelegationChecker verifies the validation CNAME delegation.
type DelegationChecker interface {
	CheckDelegation(ctx context.Context, domainName, expectedTarget string) (dnscheck.Result, error)
}

// EventDispatcher fans a domain event out to webhook subscribers.
type EventDispatcher interface {
	Dispatch(ctx context.Context, organizationID uuid.UUID, event string, data any) error
}

// JobEnqueuer creates follow-up jobs.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, payload any, opts ...queue.EnqueueOption) error
}

// EventPayload is the webhook body for domain events.
type EventPayload struct {
	DomainID       uuid.UUID  `json:"domain_id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Name           string     `json:"name"`
	Status         Status     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// Syncer drives the domain status lifecycle: it pulls provider state,
// applies the status mapping, records transitions and fans out
// notifications. All operations are idempotent per observed state, so
// at-least-once job delivery never produces duplicate events.
type Syncer struct {
	repo       Repository
	audit      AuditStore
	provider   StatusProvider
	checker    DelegationChecker
	dispatcher EventDispatcher
	enqueuer   JobEnqueuer
	guard      dedupe.Guard
	notifyTTL  time.Duration
	log        *slog.Logger
}

// SyncerOption customizes a Syncer.
type SyncerOption func(*Syncer)

// WithSyncerLogger sets the logger for sync outcomes.
func WithSyncerLogger(log *slog.Logger) SyncerOption {
	return func(s *Syncer) {
		if log != nil {
			s.log = log
		}
	}
}

// WithEventDispatcher enables webhook fan-out on status transitions.
func WithEventDispatcher(d EventDispatcher) SyncerOption {
	return func(s *Syncer) { s.dispatcher = d }
}

// WithAuditStore enables audit logging of lifecycle actions.
func WithAuditStore(a AuditStore) SyncerOption {
	return func(s *Syncer) { s.audit = a }
}

// WithNotificationGuard deduplicates activation emails across repeated
// syncs of the same state.
func WithNotificationGuard(g dedupe.Guard, ttl time.Duration) SyncerOption {
	return func(s *Syncer) {
		s.guard = g
		if ttl > 0 {
			s.notifyTTL = ttl
		}
	}
}

// NewSyncer creates a Syncer. Repository, provider, checker and enqueuer
// are required; audit, webhooks and notification dedupe are optional.
func NewSyncer(repo Repository, provider StatusProvider, checker DelegationChecker, enqueuer JobEnqueuer, opts ...SyncerOption) (*Syncer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if provider == nil {
		return nil, ErrProviderNil
	}
	if checker == nil {
		return nil, ErrCheckerNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}

	s := &Syncer{
		repo:      repo,
		provider:  provider,
		checker:   checker,
		enqueuer:  enqueuer,
		notifyTTL: 24 * time.Hour,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SyncStatus reconciles one domain against the provider. A missing
// domain or a domain without a provider record is a no-op, not an error,
// so stale jobs drain quietly. Returns an error only for transient
// failures worth retrying.
func (s *Syncer) SyncStatus(ctx context.Context, domainID uuid.UUID) error {
	d, ok, err := s.getDomain(ctx, domainID)
	if err != nil || !ok {
		return err
	}
	if d.ProviderHostnameID == "" {
		s.log.DebugContext(ctx, "domain has no provider record yet, skipping sync",
			slog.String("domain_id", domainID.String()))
		return nil
	}

	ps, err := s.provider.HostnameStatus(ctx, d.ProviderHostnameID)
	if err != nil {
		return fmt.Errorf("fetch provider status for domain %s: %w", domainID, err)
	}

	prev := d.Status
	next := StatusFromProvider(ps)

	update := StatusUpdate{
		ID:             d.ID,
		Status:         next,
		HostnameStatus: string(ps.HostnameStatus),
		SSLStatus:      string(ps.CertStatus),
		ErrorMessage:   errorMessageFromProvider(next, ps),
		ExpiresAt:      ps.ExpiresOn,
		LastIssuedAt:   ps.IssuedOn,
	}
	if err := s.repo.UpdateStatus(ctx, update); err != nil {
		return fmt.Errorf("update domain %s status: %w", domainID, err)
	}

	if prev == next {
		return nil
	}

	s.log.InfoContext(ctx, "domain status changed",
		slog.String("domain_id", d.ID.String()),
		slog.String("domain", d.Name),
		slog.String("from", string(prev)),
		slog.String("to", string(next)))

	s.recordAudit(ctx, d, AuditStatusChanged, fmt.Sprintf("%s -> %s", prev, next))
	s.publish(ctx, d, next, update)

	if next == StatusActive {
		s.enqueueActivationEmail(ctx, d)
	}
	return nil
}

// CheckDNS verifies the validation CNAME for a domain. On success the
// domain moves to issuing and certificate issuance is kicked off. A
// definitive negative result is recorded on the domain for the tenant to
// see and is not retried; only transport failures return an error.
func (s *Syncer) CheckDNS(ctx context.Context, domainID uuid.UUID) error {
	d, ok, err := s.getDomain(ctx, domainID)
	if err != nil || !ok {
		return err
	}
	if d.Status != StatusPendingCNAME && d.Status != StatusError {
		return nil
	}

	result, err := s.checker.CheckDelegation(ctx, d.Name, d.DelegationTarget)
	if err != nil {
		return fmt.Errorf("check delegation for %s: %w", d.Name, err)
	}

	if !result.Success {
		s.log.InfoContext(ctx, "delegation check failed",
			slog.String("domain", d.Name),
			slog.String("reason", result.Error))
		update := statusQuo(d)
		update.ErrorMessage = result.Error
		if err := s.repo.UpdateStatus(ctx, update); err != nil {
			return fmt.Errorf("record delegation failure for %s: %w", d.Name, err)
		}
		return nil
	}

	update := statusQuo(d)
	update.Status = StatusIssuing
	update.ErrorMessage = ""
	if err := s.repo.UpdateStatus(ctx, update); err != nil {
		return fmt.Errorf("mark domain %s issuing: %w", d.Name, err)
	}

	s.recordAudit(ctx, d, AuditDNSVerified, "validation CNAME verified")
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, d.OrganizationID, EventDomainDNSVerified, EventPayload{
			DomainID:       d.ID,
			OrganizationID: d.OrganizationID,
			Name:           d.Name,
			Status:         StatusIssuing,
		}); err != nil {
			s.log.ErrorContext(ctx, "dispatch dns verified event", slog.Any("error", err))
		}
	}

	if err := s.enqueuer.Enqueue(ctx, queue.JobTypeStartIssuance,
		JobPayload{DomainID: d.ID}, queue.WithDomainID(d.ID)); err != nil {
		return fmt.Errorf("enqueue issuance for %s: %w", d.Name, err)
	}
	return nil
}

// StartIssuance registers the domain with the certificate authority and
// stores the returned hostname ID. A domain that already has a provider
// record is a no-op, which makes redelivered jobs harmless.
func (s *Syncer) StartIssuance(ctx context.Context, domainID uuid.UUID) error {
	d, ok, err := s.getDomain(ctx, domainID)
	if err != nil || !ok {
		return err
	}
	if d.ProviderHostnameID != "" {
		return nil
	}

	providerID, err := s.provider.RequestIssuance(ctx, d.Name)
	if err != nil {
		return fmt.Errorf("request issuance for %s: %w", d.Name, err)
	}
	if err := s.repo.SetProviderHostnameID(ctx, d.ID, providerID); err != nil {
		// A concurrent duplicate job already recorded an ID. The field is
		// write-once, so losing the race is success, not a retryable
		// failure that would hit the provider again.
		if errors.Is(err, ErrIssuanceAlreadyStarted) {
			s.log.InfoContext(ctx, "issuance already recorded for domain",
				slog.String("domain_id", d.ID.String()))
			return nil
		}
		return fmt.Errorf("store provider hostname id for %s: %w", d.Name, err)
	}

	s.recordAudit(ctx, d, AuditIssuanceRequested, "issuance requested, provider id "+providerID)

	// poll right away so the first status lands quickly
	if err := s.enqueuer.Enqueue(ctx, queue.JobTypeSyncStatus,
		JobPayload{DomainID: d.ID}, queue.WithDomainID(d.ID)); err != nil {
		return fmt.Errorf("enqueue status sync for %s: %w", d.Name, err)
	}
	return nil
}

// Renew asks the provider to reissue the certificate and schedules a
// follow-up sync.
func (s *Syncer) Renew(ctx context.Context, domainID uuid.UUID) error {
	d, ok, err := s.getDomain(ctx, domainID)
	if err != nil || !ok {
		return err
	}
	if d.ProviderHostnameID == "" {
		s.log.WarnContext(ctx, "renewal requested for domain without certificate",
			slog.String("domain_id", domainID.String()))
		return nil
	}

	if err := s.provider.RequestRenewal(ctx, d.ProviderHostnameID); err != nil {
		return fmt.Errorf("request renewal for %s: %w", d.Name, err)
	}
	s.recordAudit(ctx, d, AuditRenewalRequested, "certificate renewal requested")

	if err := s.enqueuer.Enqueue(ctx, queue.JobTypeSyncStatus,
		JobPayload{DomainID: d.ID}, queue.WithDomainID(d.ID)); err != nil {
		return fmt.Errorf("enqueue status sync for %s: %w", d.Name, err)
	}
	return nil
}

// SyncAll reconciles the given domains concurrently and waits for every
// branch to settle. Per-domain failures are logged and do not stop the
// rest of the batch.
func (s *Syncer) SyncAll(ctx context.Context, domainIDs []uuid.UUID) {
	futures := make([]*async.ExecFuture, 0, len(domainIDs))
	for _, id := range domainIDs {
		futures = append(futures, async.Exec(ctx, id, s.SyncStatus))
	}
	for i, err := range async.AllSettled(futures...) {
		if err != nil {
			s.log.ErrorContext(ctx, "sync domain",
				slog.String("domain_id", domainIDs[i].String()),
				slog.Any("error", err))
		}
	}
}

func (s *Syncer) getDomain(ctx context.Context, domainID uuid.UUID) (*Domain, bool, error) {
	d, err := s.repo.GetDomain(ctx, domainID)
	if err != nil {
		if errors.Is(err, ErrDomainNotFound) {
			s.log.WarnContext(ctx, "job references missing domain",
				slog.String("domain_id", domainID.String()))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load domain %s: %w", domainID, err)
	}
	return d, true, nil
}

func (s *Syncer) publish(ctx context.Context, d *Domain, next Status, update StatusUpdate) {
	if s.dispatcher == nil {
		return
	}
	event := EventForStatus(next)
	if event == "" {
		return
	}
	payload := EventPayload{
		DomainID:       d.ID,
		OrganizationID: d.OrganizationID,
		Name:           d.Name,
		Status:         next,
		ErrorMessage:   update.ErrorMessage,
		ExpiresAt:      update.ExpiresAt,
	}
	if err := s.dispatcher.Dispatch(ctx, d.OrganizationID, event, payload); err != nil {
		s.log.ErrorContext(ctx, "dispatch domain event",
			slog.String("event", event),
			slog.String("domain_id", d.ID.String()),
			slog.Any("error", err))
	}
}

func (s *Syncer) recordAudit(ctx context.Context, d *Domain, action, detail string) {
	if s.audit == nil {
		return
	}
	err := s.audit.AppendAudit(ctx, AuditEntry{
		ID:             uuid.New(),
		OrganizationID: d.OrganizationID,
		DomainID:       d.ID,
		Action:         action,
		Detail:         detail,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "append audit entry",
			slog.String("action", action),
			slog.Any("error", err))
	}
}

func (s *Syncer) enqueueActivationEmail(ctx context.Context, d *Domain) {
	if d.NotifyEmail == "" {
		return
	}
	if s.guard != nil {
		key := fmt.Sprintf("notify:%s:%s", d.ID, StatusActive)
		first, err := s.guard.Once(ctx, key, s.notifyTTL)
		if err != nil {
			s.log.ErrorContext(ctx, "notification dedupe check", slog.Any("error", err))
			return
		}
		if !first {
			return
		}
	}
	err := s.enqueuer.Enqueue(ctx, queue.JobTypeSendEmail, EmailPayload{
		DomainID:  d.ID,
		Domain:    d.Name,
		Recipient: d.NotifyEmail,
	}, queue.WithDomainID(d.ID))
	if err != nil {
		s.log.ErrorContext(ctx, "enqueue activation email",
			slog.String("domain_id", d.ID.String()),
			slog.Any("error", err))
	}
}

// statusQuo builds an update that keeps the domain's current derived
// fields.
func statusQuo(d *Domain) StatusUpdate {
	return StatusUpdate{
		ID:             d.ID,
		Status:         d.Status,
		HostnameStatus: d.HostnameStatus,
		SSLStatus:      d.SSLStatus,
		ErrorMessage:   d.ErrorMessage,
		ExpiresAt:      d.ExpiresAt,
		LastIssuedAt:   d.LastIssuedAt,
	}
}
