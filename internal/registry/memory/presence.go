package memory

import (
	"context"
	"sync"
	"time"

	"agenthub/internal/registry"
)

// presenceEntry pairs a presence record with its expiry deadline.
type presenceEntry struct {
	presence  registry.Presence
	expiresAt time.Time
}

// PresenceStore is an in-memory implementation of registry.PresenceStore.
// Entries expire lazily on read, matching the TTL behavior of the Redis
// implementation.
type PresenceStore struct {
	mu      sync.RWMutex
	entries map[string]presenceEntry
}

// NewPresenceStore creates a new in-memory presence store.
func NewPresenceStore() *PresenceStore {
	return &PresenceStore{
		entries: make(map[string]presenceEntry),
	}
}

// SetPresence records an agent's live status with the given TTL. A TTL of
// zero means the entry never expires.
func (s *PresenceStore) SetPresence(ctx context.Context, p *registry.Presence, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := presenceEntry{presence: *p}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.entries[p.AgentID] = entry
	return nil
}

// GetPresence retrieves an agent's live status, or nil if the entry is
// absent or expired.
func (s *PresenceStore) GetPresence(ctx context.Context, agentID string) (*registry.Presence, error) {
	s.mu.RLock()
	entry, exists := s.entries[agentID]
	s.mu.RUnlock()

	if !exists {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, agentID)
		s.mu.Unlock()
		return nil, nil
	}

	p := entry.presence
	return &p, nil
}

// DeletePresence removes an agent's presence entry.
func (s *PresenceStore) DeletePresence(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, agentID)
	return nil
}

// Close releases resources. A no-op for the in-memory store.
func (s *PresenceStore) Close() error {
	return nil
}
