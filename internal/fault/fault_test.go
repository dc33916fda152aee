package fault

import (
	"testing"
	"time"
)

func TestDetail_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		typ        Type
		retryCount int
		maxRetries int
		want       bool
	}{
		{"processing under budget", Processing, 0, 3, true},
		{"timeout under budget", Timeout, 2, 3, true},
		{"resource under budget", Resource, 1, 3, true},
		{"network under budget", Network, 0, 3, true},
		{"authentication under budget", Authentication, 0, 3, true},
		{"configuration under budget", Configuration, 0, 3, true},
		{"processing at budget", Processing, 3, 3, false},
		{"processing over budget", Processing, 5, 3, false},
		{"validation never retried", Validation, 0, 3, false},
		{"authorization never retried", Authorization, 0, 3, false},
		{"unknown never retried", Unknown, 0, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.typ, "TEST", "test failure", nil, "test")
			d.RetryCount = tt.retryCount
			d.MaxRetries = tt.maxRetries
			if got := d.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetail_ShouldRetryNow(t *testing.T) {
	d := New(Network, "CONN_RESET", "connection reset", nil, "queue")

	if !d.ShouldRetryNow() {
		t.Error("no RetryAfter set, should retry now")
	}

	future := time.Now().UTC().Add(time.Hour)
	d.RetryAfter = &future
	if d.ShouldRetryNow() {
		t.Error("RetryAfter in the future, should not retry yet")
	}

	past := time.Now().UTC().Add(-time.Hour)
	d.RetryAfter = &past
	if !d.ShouldRetryNow() {
		t.Error("RetryAfter elapsed, should retry now")
	}

	d.RetryCount = d.MaxRetries
	if d.ShouldRetryNow() {
		t.Error("exhausted budget, should never retry")
	}
}

func TestRetryHandler_Delay(t *testing.T) {
	h := NewRetryHandler(3, time.Second)

	tests := []struct {
		name       string
		retryCount int
		strategy   RetryStrategy
		custom     []time.Duration
		want       time.Duration
	}{
		{"immediate count 0", 0, Immediate, nil, 0},
		{"immediate count 9", 9, Immediate, nil, 0},
		{"exponential count 0", 0, ExponentialBackoff, nil, time.Second},
		{"exponential count 3", 3, ExponentialBackoff, nil, 8 * time.Second},
		{"linear count 0", 0, LinearBackoff, nil, time.Second},
		{"linear count 3", 3, LinearBackoff, nil, 4 * time.Second},
		{"custom in range", 1, Custom, []time.Duration{time.Second, 5 * time.Second}, 5 * time.Second},
		{"custom clamped to last", 7, Custom, []time.Duration{time.Second, 5 * time.Second}, 5 * time.Second},
		{"custom without table", 2, Custom, nil, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Delay(tt.retryCount, tt.strategy, tt.custom); got != tt.want {
				t.Errorf("Delay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryHandler_PrepareForRetry(t *testing.T) {
	h := NewRetryHandler(3, time.Second)

	d := New(Timeout, "OP_TIMEOUT", "operation timed out", map[string]any{"op": "put"}, "queue")
	next := h.PrepareForRetry(d, ExponentialBackoff)

	if next.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", next.RetryCount)
	}
	if next.RetryAfter == nil {
		t.Fatal("RetryAfter should be set")
	}
	if next.Strategy != ExponentialBackoff {
		t.Errorf("Strategy = %v, want %v", next.Strategy, ExponentialBackoff)
	}
	// Original record is untouched.
	if d.RetryCount != 0 || d.RetryAfter != nil {
		t.Error("PrepareForRetry must not mutate the original detail")
	}

	// Delay for count 1 under exponential backoff is 2*base.
	wantAfter := time.Now().UTC().Add(2 * time.Second)
	if diff := next.RetryAfter.Sub(wantAfter); diff < -time.Second || diff > time.Second {
		t.Errorf("RetryAfter %v not near expected %v", next.RetryAfter, wantAfter)
	}
}

func TestRetryHandler_PrepareForRetry_Terminal(t *testing.T) {
	h := NewRetryHandler(3, time.Second)

	d := New(Validation, "BAD_INPUT", "invalid payload", nil, "validation")
	next := h.PrepareForRetry(d, ExponentialBackoff)

	if next.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 for non-retryable failure", next.RetryCount)
	}
	if next.RetryAfter != nil {
		t.Error("RetryAfter should stay unset for non-retryable failure")
	}
}

func TestRetryHandler_PrepareForRetry_NeverResets(t *testing.T) {
	h := NewRetryHandler(3, time.Second)

	d := New(Network, "CONN_RESET", "connection reset", nil, "queue")
	for i := 0; i < 3; i++ {
		d = h.PrepareForRetry(d, LinearBackoff)
	}
	if d.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3", d.RetryCount)
	}
	// Budget exhausted: further preparation is a no-op.
	final := h.PrepareForRetry(d, LinearBackoff)
	if final.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3 after budget exhausted", final.RetryCount)
	}
}
