// Package fault provides the structured failure taxonomy and retry
// mechanics shared across the system. A fault.Detail is a machine-readable
// failure record, distinct from Go error plumbing: callers branch on its
// type and code rather than string-matching error text.
package fault

import (
	"time"
)

// Type categorizes a failure. Retryable* types describe operational
// failures that may succeed on a later attempt; the rest are terminal.
type Type string

const (
	Validation     Type = "validation_error"
	Processing     Type = "processing_error"
	Timeout        Type = "timeout_error"
	Resource       Type = "resource_error"
	Network        Type = "network_error"
	Authentication Type = "authentication_error"
	Authorization  Type = "authorization_error"
	Configuration  Type = "configuration_error"
	Unknown        Type = "unknown_error"
)

// Retryable reports whether failures of this type may be retried at all.
// Validation, authorization and unknown failures are never retried.
func Retryable(t Type) bool {
	switch t {
	case Processing, Timeout, Resource, Network, Authentication, Configuration:
		return true
	default:
		return false
	}
}

// RetryStrategy governs the delay before a retried operation is attempted
// again.
type RetryStrategy string

const (
	// Immediate retries with no delay.
	Immediate RetryStrategy = "immediate"
	// ExponentialBackoff waits base, 2*base, 4*base, ...
	ExponentialBackoff RetryStrategy = "exponential_backoff"
	// LinearBackoff waits base, 2*base, 3*base, ...
	LinearBackoff RetryStrategy = "linear_backoff"
	// Custom looks the delay up in a caller-supplied table.
	Custom RetryStrategy = "custom"
)

// Detail is a structured failure record. Each retry attempt produces a new
// Detail; an existing one is never mutated in place.
type Detail struct {
	Type       Type           `json:"error_type"`
	Code       string         `json:"error_code"`
	Message    string         `json:"error_message"`
	Context    map[string]any `json:"error_context"`
	Timestamp  time.Time      `json:"timestamp"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
	RetryAfter *time.Time     `json:"retry_after,omitempty"`
	Strategy   RetryStrategy  `json:"retry_strategy,omitempty"`
	Source     string         `json:"source,omitempty"`
}

// New creates a failure record with default retry settings.
func New(t Type, code, message string, context map[string]any, source string) Detail {
	if context == nil {
		context = map[string]any{}
	}
	return Detail{
		Type:       t,
		Code:       code,
		Message:    message,
		Context:    context,
		Timestamp:  time.Now().UTC(),
		RetryCount: 0,
		MaxRetries: 3,
		Source:     source,
	}
}

// CanRetry reports whether this failure still has retry budget and belongs
// to a retryable type.
func (d Detail) CanRetry() bool {
	return d.RetryCount < d.MaxRetries && Retryable(d.Type)
}

// ShouldRetryNow reports whether the retry delay, if any, has elapsed.
func (d Detail) ShouldRetryNow() bool {
	if !d.CanRetry() {
		return false
	}
	if d.RetryAfter == nil {
		return true
	}
	return !time.Now().UTC().Before(*d.RetryAfter)
}

// RetryHandler computes retry timing. It never decides whether to give up;
// callers check CanRetry separately.
type RetryHandler struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// NewRetryHandler creates a retry handler with the given budget and base delay.
func NewRetryHandler(maxRetries int, baseDelay time.Duration) *RetryHandler {
	return &RetryHandler{MaxRetries: maxRetries, BaseDelay: baseDelay}
}

// Delay computes the wait before the next attempt. For the Custom strategy
// the retry count indexes customDelays, clamped to the last entry; with no
// table the base delay is used.
func (h *RetryHandler) Delay(retryCount int, strategy RetryStrategy, customDelays []time.Duration) time.Duration {
	switch strategy {
	case Immediate:
		return 0
	case ExponentialBackoff:
		return h.BaseDelay * (1 << retryCount)
	case LinearBackoff:
		return h.BaseDelay * time.Duration(retryCount+1)
	case Custom:
		if len(customDelays) == 0 {
			return h.BaseDelay
		}
		idx := retryCount
		if idx >= len(customDelays) {
			idx = len(customDelays) - 1
		}
		return customDelays[idx]
	default:
		return h.BaseDelay
	}
}

// PrepareForRetry produces a new Detail with the retry count incremented
// and a freshly computed RetryAfter. If the failure cannot be retried the
// original is returned unchanged; this function only computes timing and
// never fabricates retryability.
func (h *RetryHandler) PrepareForRetry(d Detail, strategy RetryStrategy) Detail {
	if !d.CanRetry() {
		return d
	}

	next := d
	next.RetryCount = d.RetryCount + 1
	next.Strategy = strategy

	delay := h.Delay(next.RetryCount, strategy, nil)
	after := time.Now().UTC().Add(delay)
	next.RetryAfter = &after

	return next
}
