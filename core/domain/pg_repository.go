package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository is a Postgres-backed Repository and AuditStore.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a PGRepository on top of an existing pool.
func NewPGRepository(pool *pgxpool.Pool) (*PGRepository, error) {
	if pool == nil {
		return nil, ErrRepositoryNil
	}
	return &PGRepository{pool: pool}, nil
}

const domainColumns = `id, organization_id, name, status, provider_hostname_id,
	hostname_status, ssl_status, error_message, delegation_target, notify_email,
	expires_at, last_issued_at, last_synced_at, created_at, updated_at`

func scanDomain(row pgx.CollectableRow) (Domain, error) {
	var d Domain
	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.Name, &d.Status, &d.ProviderHostnameID,
		&d.HostnameStatus, &d.SSLStatus, &d.ErrorMessage, &d.DelegationTarget,
		&d.NotifyEmail, &d.ExpiresAt, &d.LastIssuedAt, &d.LastSyncedAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func (r *PGRepository) GetDomain(ctx context.Context, id uuid.UUID) (*Domain, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM domains WHERE id = $1`, domainColumns), id)
	if err != nil {
		return nil, fmt.Errorf("query domain: %w", err)
	}
	d, err := pgx.CollectOneRow(rows, scanDomain)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan domain: %w", err)
	}
	return &d, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, update StatusUpdate) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE domains SET
			status = $2,
			hostname_status = $3,
			ssl_status = $4,
			error_message = $5,
			expires_at = $6,
			last_issued_at = $7,
			last_synced_at = now(),
			updated_at = now()
		WHERE id = $1`,
		update.ID, update.Status, update.HostnameStatus, update.SSLStatus,
		update.ErrorMessage, update.ExpiresAt, update.LastIssuedAt,
	)
	if err != nil {
		return fmt.Errorf("update domain status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDomainNotFound
	}
	return nil
}

func (r *PGRepository) SetProviderHostnameID(ctx context.Context, id uuid.UUID, providerID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE domains SET provider_hostname_id = $2, updated_at = now()
		WHERE id = $1 AND provider_hostname_id = ''`, id, providerID)
	if err != nil {
		return fmt.Errorf("set provider hostname id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM domains WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check domain exists: %w", err)
		}
		if !exists {
			return ErrDomainNotFound
		}
		return ErrIssuanceAlreadyStarted
	}
	return nil
}

func (r *PGRepository) ListDomainsDue(ctx context.Context, inflight []Status, staleBefore time.Time, limit int) ([]Domain, error) {
	statuses := make([]string, 0, len(inflight))
	for _, s := range inflight {
		statuses = append(statuses, string(s))
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM domains
		WHERE status = ANY($1)
		   OR (status = 'active' AND (last_synced_at IS NULL OR last_synced_at < $2))
		ORDER BY last_synced_at NULLS FIRST
		LIMIT $3`, domainColumns),
		statuses, staleBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due domains: %w", err)
	}
	domains, err := pgx.CollectRows(rows, scanDomain)
	if err != nil {
		return nil, fmt.Errorf("scan due domains: %w", err)
	}
	return domains, nil
}

func (r *PGRepository) AppendAudit(ctx context.Context, entry AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, organization_id, domain_id, user_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.OrganizationID, entry.DomainID, entry.UserID, entry.Action, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
