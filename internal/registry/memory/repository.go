// Package memory provides in-memory implementations of the registry
// interfaces for tests and single-node deployments.
package memory

import (
	"context"
	"sync"

	"agenthub/internal/registry"
)

// Repository is an in-memory implementation of registry.Repository.
type Repository struct {
	mu sync.RWMutex

	// agents stores all registered agents by their ID
	agents map[string]*registry.Agent
}

// NewRepository creates a new in-memory agent repository.
func NewRepository() *Repository {
	return &Repository{
		agents: make(map[string]*registry.Agent),
	}
}

// Create stores a new agent.
func (r *Repository) Create(ctx context.Context, agent *registry.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agent.ID]; exists {
		return registry.ErrAgentAlreadyExists
	}

	// Store a copy
	agentCopy := *agent
	r.agents[agent.ID] = &agentCopy
	return nil
}

// Update modifies an existing agent.
func (r *Repository) Update(ctx context.Context, agent *registry.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agent.ID]; !exists {
		return registry.ErrAgentNotFound
	}

	agentCopy := *agent
	r.agents[agent.ID] = &agentCopy
	return nil
}

// Delete removes an agent by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[id]; !exists {
		return registry.ErrAgentNotFound
	}

	delete(r.agents, id)
	return nil
}

// GetByID retrieves an agent by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*registry.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[id]
	if !exists {
		return nil, registry.ErrAgentNotFound
	}

	agentCopy := *agent
	return &agentCopy, nil
}

// List retrieves agents matching the filter.
func (r *Repository) List(ctx context.Context, filter registry.Filter) ([]*registry.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*registry.Agent, 0)
	for _, agent := range r.agents {
		if filter.Matches(agent) {
			agentCopy := *agent
			result = append(result, &agentCopy)
		}
	}
	return result, nil
}
