package webhook

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements EndpointStore backed by PostgreSQL via pgx.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates an endpoint store over the given connection pool.
func NewPGStore(pool *pgxpool.Pool) (*PGStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("webhook: connection pool cannot be nil")
	}
	return &PGStore{pool: pool}, nil
}

// ListEndpoints returns all endpoints registered for the organization.
func (s *PGStore) ListEndpoints(ctx context.Context, organizationID uuid.UUID) ([]Endpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, url, secret, events, enabled, created_at, updated_at
		FROM webhook_endpoints
		WHERE organization_id = $1`,
		organizationID)
	if err != nil {
		return nil, fmt.Errorf("webhook: failed to query endpoints: %w", err)
	}
	defer rows.Close()

	endpoints, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Endpoint, error) {
		var e Endpoint
		err := row.Scan(&e.ID, &e.OrganizationID, &e.URL, &e.Secret, &e.Events, &e.Enabled, &e.CreatedAt, &e.UpdatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("webhook: failed to scan endpoints: %w", err)
	}

	return endpoints, nil
}
