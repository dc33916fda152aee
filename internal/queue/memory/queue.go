// Package memory provides an in-process implementation of the message
// queue contract. It backs development and tests without external
// dependencies, and unlike the log-based Kafka backend it supports true
// cancellation of still-pending messages.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"agenthub/internal/config"
	"agenthub/internal/metrics"
	"agenthub/internal/protocol"
	"agenthub/internal/queue"
)

// Queue is a channel-backed message queue. Safe for concurrent use.
type Queue struct {
	cfg    *config.MessagingConfig
	logger *slog.Logger

	mu        sync.Mutex
	messages  chan *queue.QueueMessage
	pending   map[string]struct{}
	cancelled map[string]struct{}
	inFlight  map[string]struct{}
	running   bool
	closed    bool

	totalMessages     uint64
	processedMessages uint64
	failedMessages    uint64
	droppedMessages   uint64
}

var _ queue.MessageQueue = (*Queue)(nil)

// New creates an in-memory queue. The buffer size comes from the
// in_memory backend configuration.
func New(cfg *config.MessagingConfig, logger *slog.Logger) (queue.MessageQueue, error) {
	return &Queue{
		cfg:       cfg,
		logger:    logger,
		pending:   make(map[string]struct{}),
		cancelled: make(map[string]struct{}),
		inFlight:  make(map[string]struct{}),
	}, nil
}

// Initialize allocates the message buffer. Idempotent while running.
func (q *Queue) Initialize(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return queue.ErrQueueClosed
	}
	if q.running {
		return nil
	}

	size := q.cfg.InMemory.MaxSize
	if size <= 0 {
		size = 1
	}
	q.messages = make(chan *queue.QueueMessage, size)
	q.running = true

	q.logger.Debug("in-memory queue initialized", "buffer_size", size)
	return nil
}

// Put enqueues a message, applying configuration defaults for omitted
// options, and returns the assigned queue id.
func (q *Queue) Put(ctx context.Context, msg protocol.Message, opts ...queue.PutOption) (string, error) {
	qm := queue.ResolvePut(q.cfg, msg, opts...)

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return "", queue.ErrNotInitialized
	}

	select {
	case q.messages <- qm:
	default:
		return "", queue.ErrQueueFull
	}

	q.pending[qm.QueueID] = struct{}{}
	q.totalMessages++

	return qm.QueueID, nil
}

// Get waits up to timeout for the next message. Returns (nil, nil) when
// nothing arrives in time; a timeout <= 0 waits until ctx is done.
func (q *Queue) Get(ctx context.Context, timeout time.Duration) (*queue.QueueMessage, error) {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil, queue.ErrNotInitialized
	}
	ch := q.messages
	q.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, nil
		case qm, ok := <-ch:
			if !ok {
				return nil, nil
			}
			if q.admit(qm) {
				return qm, nil
			}
		}
	}
}

// admit moves a delivered message into the in-flight set, discarding
// cancelled or expired messages.
func (q *Queue) admit(qm *queue.QueueMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.pending, qm.QueueID)

	if _, wasCancelled := q.cancelled[qm.QueueID]; wasCancelled {
		delete(q.cancelled, qm.QueueID)
		q.droppedMessages++
		return false
	}
	now := time.Now()
	if qm.Expired(now) {
		q.droppedMessages++
		q.logger.Debug("dropping expired message", "queue_id", qm.QueueID, "ttl", qm.TTL)
		return false
	}

	q.inFlight[qm.QueueID] = struct{}{}
	metrics.MessagesDequeuedTotal.WithLabelValues(string(config.BackendInMemory)).Inc()
	metrics.MessageQueueLatency.Observe(qm.Age(now))
	return true
}

// MarkCompleted acknowledges successful processing. Idempotent.
func (q *Queue) MarkCompleted(ctx context.Context, queueID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inFlight[queueID]; ok {
		delete(q.inFlight, queueID)
		q.processedMessages++
		metrics.MessagesCompletedTotal.WithLabelValues(string(config.BackendInMemory), "completed").Inc()
	}
	return nil
}

// MarkFailed records a processing failure. Idempotent.
func (q *Queue) MarkFailed(ctx context.Context, queueID string, retry bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inFlight[queueID]; ok {
		delete(q.inFlight, queueID)
		q.failedMessages++
		metrics.MessagesCompletedTotal.WithLabelValues(string(config.BackendInMemory), "failed").Inc()
	}
	return nil
}

// Cancel withdraws a still-pending message so it is never delivered.
// Returns false once the message has been handed to a consumer.
func (q *Queue) Cancel(ctx context.Context, queueID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[queueID]; !ok {
		return false, nil
	}
	q.cancelled[queueID] = struct{}{}
	return true, nil
}

// Stats returns point-in-time counters.
func (q *Queue) Stats() map[string]any {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued := 0
	if q.messages != nil {
		queued = len(q.messages)
	}

	return map[string]any{
		"backend":            string(config.BackendInMemory),
		"total_messages":     q.totalMessages,
		"processed_messages": q.processedMessages,
		"failed_messages":    q.failedMessages,
		"dropped_messages":   q.droppedMessages,
		"processing_count":   len(q.inFlight),
		"queued_messages":    queued,
	}
}

// Close shuts down the queue. Idempotent, safe without Initialize.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if q.running {
		q.running = false
		close(q.messages)
	}
	return nil
}
