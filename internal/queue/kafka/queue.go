// Package kafka provides the Kafka-backed message queue implementation.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"agenthub/internal/config"
	"agenthub/internal/metrics"
	"agenthub/internal/protocol"
	"agenthub/internal/queue"
)

// Queue implements queue.MessageQueue on top of a single Kafka topic.
//
// Publishing is fire-and-forget: Put returns as soon as the message is
// handed to the async writer, and delivery failures surface only in the
// writer's completion callback. Priority is advisory metadata; Kafka
// preserves per-partition log order, so higher-priority messages are not
// reordered ahead of earlier ones. Cancellation is unsupported for the
// same reason: once appended to the log a message cannot be withdrawn.
type Queue struct {
	cfg    *config.MessagingConfig
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	inFlight map[string]struct{}

	writer     *kafka.Writer
	reader     *kafka.Reader
	deliveries chan *queue.QueueMessage
	consumeCtx context.CancelFunc
	wg         sync.WaitGroup

	totalMessages     uint64
	processedMessages uint64
	failedMessages    uint64
	droppedMessages   uint64
}

var _ queue.MessageQueue = (*Queue)(nil)

// New creates an uninitialized Kafka queue. No connection is made until
// Initialize.
func New(cfg *config.MessagingConfig, logger *slog.Logger) (queue.MessageQueue, error) {
	return &Queue{
		cfg:      cfg,
		logger:   logger.With("backend", string(config.BackendKafka)),
		inFlight: make(map[string]struct{}),
	}, nil
}

// Initialize ensures the topic exists, builds the producer and consumer
// and starts the background consume loop. Idempotent while running.
func (q *Queue) Initialize(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return queue.ErrQueueClosed
	}
	if q.running {
		return nil
	}

	kcfg := &q.cfg.Kafka

	if err := ensureTopic(ctx, kcfg); err != nil {
		return fmt.Errorf("failed to ensure topic %q: %w", kcfg.Topic(), err)
	}

	q.writer = newWriter(kcfg, q.logger)
	q.reader = newReader(kcfg)

	buffer := q.cfg.BatchSize
	if buffer <= 0 {
		buffer = 100
	}
	q.deliveries = make(chan *queue.QueueMessage, buffer)

	consumeCtx, cancel := context.WithCancel(context.Background())
	q.consumeCtx = cancel
	q.wg.Add(1)
	go q.consume(consumeCtx)

	q.running = true
	q.logger.Info("kafka queue initialized",
		"topic", kcfg.Topic(),
		"brokers", kcfg.BootstrapServers,
		"group", kcfg.ConsumerGroup,
	)
	return nil
}

// ensureTopic creates the topic through the cluster controller, tolerating
// a topic that already exists.
func ensureTopic(ctx context.Context, cfg *config.KafkaConfig) error {
	conn, err := kafka.DialContext(ctx, "tcp", cfg.BootstrapServers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to resolve controller: %w", err)
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := kafka.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.Topic(),
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return err
	}
	return nil
}

func newWriter(cfg *config.KafkaConfig, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.BootstrapServers...),
		Topic:        cfg.Topic(),
		Balancer:     &kafka.Hash{}, // key-based partitioning keeps per-agent order
		RequiredAcks: requiredAcks(cfg.Acks),
		MaxAttempts:  cfg.Retries + 1,
		BatchBytes:   int64(cfg.BatchSize),
		BatchTimeout: cfg.Linger,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("kafka delivery failed",
					"error", err,
					"messages", len(messages),
				)
			}
		},
	}
}

func newReader(cfg *config.KafkaConfig) *kafka.Reader {
	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}

	rc := kafka.ReaderConfig{
		Brokers:           cfg.BootstrapServers,
		Topic:             cfg.Topic(),
		GroupID:           cfg.ConsumerGroup,
		StartOffset:       startOffset,
		MinBytes:          1,
		MaxBytes:          10e6, // 10MB
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}
	if cfg.EnableAutoCommit {
		rc.CommitInterval = time.Second
	}
	return kafka.NewReader(rc)
}

func requiredAcks(acks string) kafka.RequiredAcks {
	switch acks {
	case "none":
		return kafka.RequireNone
	case "one":
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

// consume fetches, decodes and commits messages until ctx is cancelled,
// handing decoded messages to the delivery channel for Get.
func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()
	defer close(q.deliveries)

	for {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(queue.DefaultPollInterval):
			}
			continue
		}

		qm, err := queue.DecodeWire(msg.Value)
		if err != nil {
			// Malformed payloads are committed and dropped so they do not
			// wedge the partition.
			q.logger.Error("dropping undecodable message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			q.mu.Lock()
			q.droppedMessages++
			q.mu.Unlock()
		} else {
			select {
			case q.deliveries <- qm:
			case <-ctx.Done():
				return
			}
		}

		if err := q.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Error("failed to commit message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
		}
	}
}

// Put serializes the message and hands it to the async writer, keyed by
// agent id. The returned queue id identifies the message for the
// in-flight tracking calls; delivery itself is not confirmed here.
func (q *Queue) Put(ctx context.Context, msg protocol.Message, opts ...queue.PutOption) (string, error) {
	qm := queue.ResolvePut(q.cfg, msg, opts...)

	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return "", queue.ErrNotInitialized
	}
	writer := q.writer
	q.mu.Unlock()

	payload, err := queue.EncodeWire(qm)
	if err != nil {
		return "", err
	}

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(qm.Message.Header.AgentID),
		Value: payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to write message to kafka: %w", err)
	}

	q.mu.Lock()
	q.totalMessages++
	q.mu.Unlock()

	q.logger.Debug("message queued",
		"queue_id", qm.QueueID,
		"message_id", qm.Message.Header.MessageID,
		"priority", qm.Priority.String(),
	)
	return qm.QueueID, nil
}

// Get waits up to timeout for the next decoded message. Returns (nil, nil)
// when nothing arrives in time; a timeout <= 0 waits until ctx is done.
func (q *Queue) Get(ctx context.Context, timeout time.Duration) (*queue.QueueMessage, error) {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil, queue.ErrNotInitialized
	}
	ch := q.deliveries
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
// expired messages.
func (q *Queue) admit(qm *queue.QueueMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	if qm.Expired(now) {
		q.droppedMessages++
		q.logger.Debug("dropping expired message", "queue_id", qm.QueueID, "ttl", qm.TTL)
		return false
	}

	q.inFlight[qm.QueueID] = struct{}{}
	metrics.MessagesDequeuedTotal.WithLabelValues(string(config.BackendKafka)).Inc()
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
		metrics.MessagesCompletedTotal.WithLabelValues(string(config.BackendKafka), "completed").Inc()
	}
	return nil
}

// MarkFailed records a processing failure. The retry flag only affects
// logging; retry scheduling is the caller's responsibility. Idempotent.
func (q *Queue) MarkFailed(ctx context.Context, queueID string, retry bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inFlight[queueID]; ok {
		delete(q.inFlight, queueID)
		q.failedMessages++
		metrics.MessagesCompletedTotal.WithLabelValues(string(config.BackendKafka), "failed").Inc()
		q.logger.Warn("message failed", "queue_id", queueID, "retry", retry)
	}
	return nil
}

// Cancel always reports false: a message appended to the Kafka log cannot
// be withdrawn before delivery.
func (q *Queue) Cancel(ctx context.Context, queueID string) (bool, error) {
	q.logger.Debug("cancel not supported for kafka backend", "queue_id", queueID)
	return false, nil
}

// Stats returns point-in-time counters. Never fails.
func (q *Queue) Stats() map[string]any {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued := 0
	if q.deliveries != nil {
		queued = len(q.deliveries)
	}

	return map[string]any{
		"backend":            string(config.BackendKafka),
		"topic":              q.cfg.Kafka.Topic(),
		"brokers":            q.cfg.Kafka.BootstrapServers,
		"consumer_group":     q.cfg.Kafka.ConsumerGroup,
		"total_messages":     q.totalMessages,
		"processed_messages": q.processedMessages,
		"failed_messages":    q.failedMessages,
		"dropped_messages":   q.droppedMessages,
		"processing_count":   len(q.inFlight),
		"queued_messages":    queued,
	}
}

// Close stops the consume loop and releases the reader and writer.
// Idempotent, safe without Initialize.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	wasRunning := q.running
	q.running = false
	q.mu.Unlock()

	if !wasRunning {
		return nil
	}

	q.consumeCtx()
	q.wg.Wait()

	var errs []error
	if err := q.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close reader: %w", err))
	}
	if err := q.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close writer: %w", err))
	}

	q.logger.Info("kafka queue closed")
	return errors.Join(errs...)
}
