package webhook

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements EndpointStore for testing and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	endpoints map[uuid.UUID][]Endpoint
}

// NewMemoryStore creates an empty in-memory endpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		endpoints: make(map[uuid.UUID][]Endpoint),
	}
}

// Add registers an endpoint under its organization.
func (s *MemoryStore) Add(endpoint Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endpoints[endpoint.OrganizationID] = append(s.endpoints[endpoint.OrganizationID], endpoint)
}

// ListEndpoints returns all endpoints registered for the organization.
func (s *MemoryStore) ListEndpoints(ctx context.Context, organizationID uuid.UUID) ([]Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.endpoints[organizationID]
	result := make([]Endpoint, len(stored))
	copy(result, stored)
	return result, nil
}
