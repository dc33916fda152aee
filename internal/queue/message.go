package queue

import (
	"time"

	"github.com/google/uuid"

	"agenthub/internal/config"
	"agenthub/internal/protocol"
)

// Priority orders messages by urgency. For the Kafka backend priority is
// advisory metadata: all messages share one topic and are consumed in
// arrival order.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
	PriorityUrgent Priority = 3
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// IsValid returns true if the priority is a known level.
func (p Priority) IsValid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// ParsePriority maps a lowercase priority name to its level. Unknown names
// map to PriorityNormal with ok=false.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "low":
		return PriorityLow, true
	case "normal":
		return PriorityNormal, true
	case "high":
		return PriorityHigh, true
	case "urgent":
		return PriorityUrgent, true
	default:
		return PriorityNormal, false
	}
}

// QueueMessage decorates a protocol message with queue delivery metadata.
// It is created at put time and never mutated in place; status transitions
// live on Message.Body.Status and are tracked by the caller, not the queue.
type QueueMessage struct {
	Message    protocol.Message
	Priority   Priority
	CreatedAt  float64 // epoch seconds
	QueueID    string
	TTL        float64 // seconds; 0 disables expiry
	MaxRetries int
	Metadata   map[string]any
}

// NewQueueMessage wraps a message for queue transport, normalizing the
// optional fields so downstream code never branches on nil: a nil TTL
// becomes 0.0, a nil metadata map becomes empty, and an empty queue id is
// replaced with a fresh random id.
func NewQueueMessage(msg protocol.Message, priority Priority, ttl *float64, maxRetries int, metadata map[string]any) *QueueMessage {
	normalizedTTL := 0.0
	if ttl != nil {
		normalizedTTL = *ttl
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &QueueMessage{
		Message:    msg,
		Priority:   priority,
		CreatedAt:  float64(time.Now().UnixNano()) / float64(time.Second),
		QueueID:    uuid.NewString(),
		TTL:        normalizedTTL,
		MaxRetries: maxRetries,
		Metadata:   metadata,
	}
}

// Expired reports whether the message outlived its TTL. A TTL of zero or
// less disables expiry, matching the messaging default_ttl semantics, so
// such messages are always delivered.
func (m *QueueMessage) Expired(now time.Time) bool {
	if m.TTL <= 0 {
		return false
	}
	return m.Age(now) > m.TTL
}

// Age returns the seconds elapsed since the message was enqueued.
func (m *QueueMessage) Age(now time.Time) float64 {
	return float64(now.UnixNano())/float64(time.Second) - m.CreatedAt
}

// PutOptions carries the optional delivery policy arguments for Put.
// Unset fields fall back to messaging configuration defaults.
type PutOptions struct {
	Priority   *Priority
	TTL        *float64
	MaxRetries *int
	Metadata   map[string]any
}

// PutOption configures a single Put call.
type PutOption func(*PutOptions)

// WithPriority sets the delivery priority.
func WithPriority(p Priority) PutOption {
	return func(o *PutOptions) { o.Priority = &p }
}

// WithTTL sets the time-to-live in seconds. Zero marks the message as
// already expired.
func WithTTL(seconds float64) PutOption {
	return func(o *PutOptions) { o.TTL = &seconds }
}

// WithMaxRetries sets the retry budget.
func WithMaxRetries(n int) PutOption {
	return func(o *PutOptions) { o.MaxRetries = &n }
}

// WithMetadata attaches free-form metadata.
func WithMetadata(m map[string]any) PutOption {
	return func(o *PutOptions) { o.Metadata = m }
}

// ResolvePut builds the queue message for a Put call, applying messaging
// configuration defaults for every omitted option. Shared by all backends
// so default handling cannot drift between them.
func ResolvePut(cfg *config.MessagingConfig, msg protocol.Message, opts ...PutOption) *QueueMessage {
	var o PutOptions
	for _, opt := range opts {
		opt(&o)
	}

	priority := PriorityNormal
	if o.Priority != nil {
		priority = *o.Priority
	} else if p, ok := ParsePriority(cfg.DefaultPriority); ok {
		priority = p
	}

	ttl := o.TTL
	if ttl == nil && cfg.DefaultTTL > 0 {
		ttl = &cfg.DefaultTTL
	}

	maxRetries := cfg.DefaultMaxRetries
	if o.MaxRetries != nil {
		maxRetries = *o.MaxRetries
	}

	return NewQueueMessage(msg, priority, ttl, maxRetries, o.Metadata)
}
