package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a custom domain.
type Status string

const (
	// StatusPendingCNAME means the tenant still has to point the
	// validation CNAME at the delegation target.
	StatusPendingCNAME Status = "pending_cname"
	// StatusIssuing means delegation is in place and the certificate
	// authority is validating and issuing.
	StatusIssuing Status = "issuing"
	// StatusActive means the certificate is issued and serving.
	StatusActive Status = "active"
	// StatusError means validation failed permanently and needs tenant
	// or operator action.
	StatusError Status = "error"
)

// Event names published to webhook subscribers on status transitions.
const (
	EventDomainPendingCNAME = "domain.pending_cname"
	EventDomainIssuing      = "domain.issuing"
	EventDomainActive       = "domain.active"
	EventDomainError        = "domain.error"
	EventDomainDNSVerified  = "domain.dns_verified"
)

// EventForStatus maps a domain status to the event published when the
// domain transitions into it.
func EventForStatus(s Status) string {
	switch s {
	case StatusPendingCNAME:
		return EventDomainPendingCNAME
	case StatusIssuing:
		return EventDomainIssuing
	case StatusActive:
		return EventDomainActive
	case StatusError:
		return EventDomainError
	default:
		return ""
	}
}

// Domain is a tenant-owned hostname with a managed certificate.
type Domain struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Status         Status
	// ProviderHostnameID is the certificate authority's identifier for
	// this hostname. Empty until issuance has been requested; never
	// overwritten once set.
	ProviderHostnameID string
	// HostnameStatus and SSLStatus mirror the provider's raw view and
	// are kept for operator debugging.
	HostnameStatus string
	SSLStatus      string
	ErrorMessage   string
	DelegationTarget string
	// NotifyEmail receives lifecycle notifications. Optional.
	NotifyEmail string
	ExpiresAt      *time.Time
	LastIssuedAt   *time.Time
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StatusUpdate is the single-write snapshot applied after a provider
// sync. All derived fields are written together so readers never observe
// a half-updated domain.
type StatusUpdate struct {
	ID             uuid.UUID
	Status         Status
	HostnameStatus string
	SSLStatus      string
	ErrorMessage   string
	ExpiresAt      *time.Time
	LastIssuedAt   *time.Time
}

// AuditEntry records a domain lifecycle action for later inspection.
type AuditEntry struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	DomainID       uuid.UUID
	// UserID is set when a tenant action triggered the entry; system
	// transitions leave it nil.
	UserID    *uuid.UUID
	Action    string
	Detail    string
	CreatedAt time.Time
}

// Audit actions.
const (
	AuditStatusChanged     = "domain.status_changed"
	AuditDNSVerified       = "domain.dns_verified"
	AuditIssuanceRequested = "domain.issuance_requested"
	AuditRenewalRequested  = "domain.renewal_requested"
)
