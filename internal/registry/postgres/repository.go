package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"agenthub/internal/registry"
)

// pgUniqueViolation is the PostgreSQL error code for a unique constraint
// violation.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Repository implements registry.Repository using PostgreSQL.
type Repository struct {
	db *DB
}

// NewRepository creates a new PostgreSQL-backed agent repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new agent.
func (r *Repository) Create(ctx context.Context, agent *registry.Agent) error {
	query := `
		INSERT INTO agents (
			id, name, type, capabilities, status, active_tasks, last_seen, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.pool.Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.Type,
		agent.Capabilities,
		agent.Status,
		agent.ActiveTasks,
		agent.LastSeen,
		agent.CreatedAt,
		agent.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return registry.ErrAgentAlreadyExists
		}
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

// Update modifies an existing agent.
func (r *Repository) Update(ctx context.Context, agent *registry.Agent) error {
	query := `
		UPDATE agents SET
			name = $2,
			type = $3,
			capabilities = $4,
			status = $5,
			active_tasks = $6,
			last_seen = $7,
			updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.pool.Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.Type,
		agent.Capabilities,
		agent.Status,
		agent.ActiveTasks,
		agent.LastSeen,
		agent.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return registry.ErrAgentNotFound
	}

	return nil
}

// Delete removes an agent by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return registry.ErrAgentNotFound
	}

	return nil
}

// GetByID retrieves an agent by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*registry.Agent, error) {
	query := `
		SELECT id, name, type, capabilities, status, active_tasks, last_seen, created_at, updated_at
		FROM agents
		WHERE id = $1
	`

	agent := &registry.Agent{}
	err := r.db.pool.QueryRow(ctx, query, id).Scan(
		&agent.ID,
		&agent.Name,
		&agent.Type,
		&agent.Capabilities,
		&agent.Status,
		&agent.ActiveTasks,
		&agent.LastSeen,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registry.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return agent, nil
}

// List retrieves agents matching the filter. Type and status filtering is
// pushed to the database; capability filtering uses array containment.
func (r *Repository) List(ctx context.Context, filter registry.Filter) ([]*registry.Agent, error) {
	query := `
		SELECT id, name, type, capabilities, status, active_tasks, last_seen, created_at, updated_at
		FROM agents
		WHERE ($1 = '' OR type = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR capabilities @> ARRAY[$3])
		ORDER BY created_at
	`

	rows, err := r.db.pool.Query(ctx, query, string(filter.Type), string(filter.Status), filter.Capability)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := make([]*registry.Agent, 0)
	for rows.Next() {
		agent := &registry.Agent{}
		err := rows.Scan(
			&agent.ID,
			&agent.Name,
			&agent.Type,
			&agent.Capabilities,
			&agent.Status,
			&agent.ActiveTasks,
			&agent.LastSeen,
			&agent.CreatedAt,
			&agent.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read agents: %w", err)
	}

	return agents, nil
}
