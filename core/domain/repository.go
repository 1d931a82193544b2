package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for domains.
type Repository interface {
	// GetDomain returns a domain by ID or ErrDomainNotFound.
	GetDomain(ctx context.Context, id uuid.UUID) (*Domain, error)
	// UpdateStatus applies a post-sync snapshot atomically and stamps
	// last_synced_at.
	UpdateStatus(ctx context.Context, update StatusUpdate) error
	// SetProviderHostnameID records the provider's hostname identifier.
	// The field is set once; a second write for the same domain returns
	// ErrIssuanceAlreadyStarted.
	SetProviderHostnameID(ctx context.Context, id uuid.UUID, providerID string) error
	// ListDomainsDue returns up to limit domains that need a status
	// sync: any domain in one of the given in-flight statuses, plus
	// domains whose last sync is older than staleBefore.
	ListDomainsDue(ctx context.Context, inflight []Status, staleBefore time.Time, limit int) ([]Domain, error)
}

// AuditStore records domain lifecycle actions.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
}
