package registry

import (
	"context"
	"time"
)

// Repository defines persistent agent storage. Backed by PostgreSQL in
// production; an in-memory implementation serves tests and single-node
// deployments.
type Repository interface {
	// Create stores a new agent. Fails with ErrAgentAlreadyExists if the
	// id is taken.
	Create(ctx context.Context, agent *Agent) error

	// Update modifies an existing agent. Fails with ErrAgentNotFound.
	Update(ctx context.Context, agent *Agent) error

	// Delete removes an agent by id. Fails with ErrAgentNotFound.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves an agent by id. Fails with ErrAgentNotFound.
	GetByID(ctx context.Context, id string) (*Agent, error)

	// List retrieves agents matching the filter.
	List(ctx context.Context, filter Filter) ([]*Agent, error)
}

// Presence holds the live status of an agent in the presence store.
type Presence struct {
	AgentID     string      `json:"agent_id"`
	Status      AgentStatus `json:"status"`
	ActiveTasks int         `json:"active_tasks"`
	LastSeen    time.Time   `json:"last_seen"`
}

// PresenceStore defines fast agent liveness tracking. Backed by Redis in
// production; entries expire when an agent stops heartbeating.
// All methods must be safe for concurrent use.
type PresenceStore interface {
	// SetPresence records an agent's live status with the given TTL.
	SetPresence(ctx context.Context, p *Presence, ttl time.Duration) error

	// GetPresence retrieves an agent's live status.
	// Returns nil, nil if the agent has no presence entry.
	GetPresence(ctx context.Context, agentID string) (*Presence, error)

	// DeletePresence removes an agent's presence entry.
	DeletePresence(ctx context.Context, agentID string) error

	// Close releases any resources held by the store.
	Close() error
}
