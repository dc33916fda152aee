// Package redis provides the Redis-backed implementation of the registry
// presence store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agenthub/internal/config"
	"agenthub/internal/registry"
)

const prefixPresence = "presence:"

// PresenceStore implements registry.PresenceStore using Redis. Presence
// entries carry a TTL so an agent that stops heartbeating goes offline on
// its own.
type PresenceStore struct {
	client *redis.Client
}

// NewPresenceStore creates a new Redis-backed presence store.
func NewPresenceStore(cfg *config.RedisConfig) (*PresenceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &PresenceStore{client: client}, nil
}

func presenceKey(agentID string) string {
	return prefixPresence + agentID
}

// SetPresence records an agent's live status with the given TTL.
func (s *PresenceStore) SetPresence(ctx context.Context, p *registry.Presence, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	if err := s.client.Set(ctx, presenceKey(p.AgentID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

// GetPresence retrieves an agent's live status, or nil if the entry is
// absent or expired.
func (s *PresenceStore) GetPresence(ctx context.Context, agentID string) (*registry.Presence, error) {
	data, err := s.client.Get(ctx, presenceKey(agentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var p registry.Presence
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return &p, nil
}

// DeletePresence removes an agent's presence entry.
func (s *PresenceStore) DeletePresence(ctx context.Context, agentID string) error {
	if err := s.client.Del(ctx, presenceKey(agentID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *PresenceStore) Close() error {
	return s.client.Close()
}
