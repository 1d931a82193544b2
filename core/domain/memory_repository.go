package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository and AuditStore for tests
// and local development.
type MemoryRepository struct {
	mu      sync.Mutex
	domains map[uuid.UUID]*Domain
	audit   []AuditEntry
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{domains: make(map[uuid.UUID]*Domain)}
}

// PutDomain inserts or replaces a domain. Test helper.
func (r *MemoryRepository) PutDomain(d Domain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains[d.ID] = &d
}

func (r *MemoryRepository) GetDomain(_ context.Context, id uuid.UUID) (*Domain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.domains[id]
	if !ok {
		return nil, ErrDomainNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, update StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.domains[update.ID]
	if !ok {
		return ErrDomainNotFound
	}
	now := time.Now()
	d.Status = update.Status
	d.HostnameStatus = update.HostnameStatus
	d.SSLStatus = update.SSLStatus
	d.ErrorMessage = update.ErrorMessage
	d.ExpiresAt = update.ExpiresAt
	d.LastIssuedAt = update.LastIssuedAt
	d.LastSyncedAt = &now
	d.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) SetProviderHostnameID(_ context.Context, id uuid.UUID, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.domains[id]
	if !ok {
		return ErrDomainNotFound
	}
	if d.ProviderHostnameID != "" {
		return ErrIssuanceAlreadyStarted
	}
	d.ProviderHostnameID = providerID
	d.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) ListDomainsDue(_ context.Context, inflight []Status, staleBefore time.Time, limit int) ([]Domain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	due := make([]Domain, 0)
	for _, d := range r.domains {
		if isInflight(d.Status, inflight) || isStaleActive(d, staleBefore) {
			due = append(due, *d)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return lastSync(due[i]).Before(lastSync(due[j]))
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func isInflight(s Status, inflight []Status) bool {
	for _, st := range inflight {
		if s == st {
			return true
		}
	}
	return false
}

func isStaleActive(d *Domain, staleBefore time.Time) bool {
	if d.Status != StatusActive {
		return false
	}
	return d.LastSyncedAt == nil || d.LastSyncedAt.Before(staleBefore)
}

func lastSync(d Domain) time.Time {
	if d.LastSyncedAt == nil {
		return time.Time{}
	}
	return *d.LastSyncedAt
}

func (r *MemoryRepository) AppendAudit(_ context.Context, entry AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, entry)
	return nil
}

// AuditEntries returns a copy of all recorded audit entries.
func (r *MemoryRepository) AuditEntries() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEntry, len(r.audit))
	copy(out, r.audit)
	return out
}
