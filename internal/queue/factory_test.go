package queue

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"agenthub/internal/config"
	"agenthub/internal/protocol"
)

type stubQueue struct{}

func (s *stubQueue) Initialize(context.Context) error { return nil }
func (s *stubQueue) Put(context.Context, protocol.Message, ...PutOption) (string, error) {
	return "", nil
}
func (s *stubQueue) Get(context.Context, time.Duration) (*QueueMessage, error) { return nil, nil }
func (s *stubQueue) MarkCompleted(context.Context, string) error               { return nil }
func (s *stubQueue) MarkFailed(context.Context, string, bool) error            { return nil }
func (s *stubQueue) Cancel(context.Context, string) (bool, error)              { return false, nil }
func (s *stubQueue) Stats() map[string]any                                     { return map[string]any{} }
func (s *stubQueue) Close(context.Context) error                               { return nil }

func TestFactory_New(t *testing.T) {
	f := NewFactory()
	f.Register(config.BackendInMemory, func(*config.MessagingConfig, *slog.Logger) (MessageQueue, error) {
		return &stubQueue{}, nil
	})

	q, err := f.New(&config.MessagingConfig{Backend: config.BackendInMemory}, slog.Default())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if q == nil {
		t.Fatal("expected a queue instance")
	}
}

func TestFactory_UnsupportedBackend(t *testing.T) {
	f := NewFactory()

	_, err := f.New(&config.MessagingConfig{Backend: config.BackendKafka}, slog.Default())
	if err == nil {
		t.Fatal("expected an error for unregistered backend")
	}
	if !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("error = %v, want ErrUnsupportedBackend", err)
	}
}

func TestFactory_Backends(t *testing.T) {
	f := NewFactory()
	ctor := func(*config.MessagingConfig, *slog.Logger) (MessageQueue, error) {
		return &stubQueue{}, nil
	}
	f.Register(config.BackendKafka, ctor)
	f.Register(config.BackendInMemory, ctor)

	got := f.Backends()
	if len(got) != 2 {
		t.Fatalf("Backends() returned %d entries, want 2", len(got))
	}
	if got[0] != config.BackendInMemory || got[1] != config.BackendKafka {
		t.Errorf("Backends() = %v, want sorted [in_memory kafka]", got)
	}
}
