package webhook

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Endpoint is a tenant-registered delivery target for lifecycle events.
// Endpoints are created and rotated by the application CRUD layer; this
// package only reads them.
type Endpoint struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	URL            string    `json:"url"`
	Secret         string    `json:"-"`
	Events         []string  `json:"events"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Subscribed reports whether the endpoint should receive the given event.
// Disabled endpoints never receive events, even if subscribed.
func (e Endpoint) Subscribed(event string) bool {
	return e.Enabled && slices.Contains(e.Events, event)
}

// Envelope is the wire format delivered to endpoints.
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// EndpointStore provides read access to an organization's registered endpoints.
type EndpointStore interface {
	ListEndpoints(ctx context.Context, organizationID uuid.UUID) ([]Endpoint, error)
}
