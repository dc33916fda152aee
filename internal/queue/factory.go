package queue

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"agenthub/internal/config"
)

// Constructor builds a queue backend from messaging configuration.
type Constructor func(cfg *config.MessagingConfig, logger *slog.Logger) (MessageQueue, error)

// Factory maps backend discriminators to constructors. It is an explicitly
// constructed instance with no package-level state; the process entry point
// owns it and registers the backends it ships with.
type Factory struct {
	mu       sync.RWMutex
	backends map[config.QueueBackend]Constructor
}

// NewFactory creates an empty backend factory.
func NewFactory() *Factory {
	return &Factory{
		backends: make(map[config.QueueBackend]Constructor),
	}
}

// Register adds or replaces a backend constructor.
func (f *Factory) Register(backend config.QueueBackend, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backends[backend] = ctor
}

// New constructs the queue selected by cfg.Backend. Constructing from an
// unregistered discriminator fails with a descriptive error rather than a
// generic lookup failure.
func (f *Factory) New(cfg *config.MessagingConfig, logger *slog.Logger) (MessageQueue, error) {
	f.mu.RLock()
	ctor, ok := f.backends[cfg.Backend]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnsupportedBackend, cfg.Backend, f.Backends())
	}

	return ctor(cfg, logger)
}

// Backends returns the registered backend discriminators in stable order.
func (f *Factory) Backends() []config.QueueBackend {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]config.QueueBackend, 0, len(f.backends))
	for b := range f.backends {
		names = append(names, b)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
