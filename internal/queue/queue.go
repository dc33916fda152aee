// Package queue defines the backend-agnostic message queue contract and
// the shared pieces every backend uses: the queue message wrapper, the
// transport wire codec, put options and the backend factory. Concrete
// implementations live in the kafka and memory subpackages.
package queue

import (
	"context"
	"errors"
	"time"

	"agenthub/internal/protocol"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotInitialized is returned by operations invoked before
	// Initialize or after Close.
	ErrNotInitialized = errors.New("queue not initialized")

	// ErrQueueClosed is returned when attempting to use a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFull is returned by bounded backends when no capacity is
	// available for a new message.
	ErrQueueFull = errors.New("queue is full")

	// ErrUnsupportedBackend is returned by the factory for a backend
	// discriminator with no registered constructor.
	ErrUnsupportedBackend = errors.New("unsupported queue backend")
)

// DefaultPollInterval is the interval backends wait between poll attempts
// when no message is available.
const DefaultPollInterval = 100 * time.Millisecond

// MessageQueue is the capability contract every backend must satisfy.
// Implementations must be safe for concurrent producers; the consumer side
// follows a single-consumer-per-process discipline.
type MessageQueue interface {
	// Initialize prepares the backend transport. It is idempotent: a
	// second call while already running is a no-op, not an error.
	Initialize(ctx context.Context) error

	// Put enqueues a message and returns its queue id. Configuration
	// defaults are applied for any omitted option. Fails with
	// ErrNotInitialized before Initialize or after Close.
	Put(ctx context.Context, msg protocol.Message, opts ...PutOption) (string, error)

	// Get blocks cooperatively up to timeout waiting for a message and
	// returns (nil, nil) if nothing is available in time. A timeout <= 0
	// means poll at the backend's default interval until ctx is done.
	Get(ctx context.Context, timeout time.Duration) (*QueueMessage, error)

	// MarkCompleted removes the id from the in-flight set. Idempotent
	// no-op if the id is not currently tracked.
	MarkCompleted(ctx context.Context, queueID string) error

	// MarkFailed removes the id from the in-flight set and records the
	// failure. Idempotent no-op if the id is not currently tracked.
	MarkFailed(ctx context.Context, queueID string, retry bool) error

	// Cancel attempts to prevent a still-pending message from being
	// delivered. Returns false, not an error, when the backend cannot
	// support cancellation.
	Cancel(ctx context.Context, queueID string) (bool, error)

	// Stats returns point-in-time counters. Non-blocking, never fails.
	Stats() map[string]any

	// Close stops background consumption and releases transport
	// resources. Idempotent, and safe to call without Initialize.
	Close(ctx context.Context) error
}
