package queue

import (
	"encoding/json"
	"fmt"

	"agenthub/internal/protocol"
)

// wireEnvelope is the transport payload contract. Every backend must
// produce and accept this exact JSON shape so alternate implementations
// stay interoperable with existing consumers: `message` holds the full
// envelope dict with enum values (not names), `priority` is numeric and
// `created_at` is float epoch seconds.
type wireEnvelope struct {
	Message    map[string]any `json:"message"`
	Priority   int            `json:"priority"`
	CreatedAt  float64        `json:"created_at"`
	QueueID    string         `json:"queue_id"`
	TTL        float64        `json:"ttl"`
	MaxRetries int            `json:"max_retries"`
	Metadata   map[string]any `json:"metadata"`
}

// EncodeWire serializes a queue message to its compact transport payload.
func EncodeWire(qm *QueueMessage) ([]byte, error) {
	env := wireEnvelope{
		Message:    qm.Message.ToMap(),
		Priority:   int(qm.Priority),
		CreatedAt:  qm.CreatedAt,
		QueueID:    qm.QueueID,
		TTL:        qm.TTL,
		MaxRetries: qm.MaxRetries,
		Metadata:   qm.Metadata,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue message: %w", err)
	}
	return data, nil
}

// DecodeWire reconstructs a queue message from its transport payload.
func DecodeWire(data []byte) (*QueueMessage, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode queue message: %w", err)
	}

	msg, err := protocol.FromMap(env.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message envelope: %w", err)
	}

	metadata := env.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &QueueMessage{
		Message:    msg,
		Priority:   Priority(env.Priority),
		CreatedAt:  env.CreatedAt,
		QueueID:    env.QueueID,
		TTL:        env.TTL,
		MaxRetries: env.MaxRetries,
		Metadata:   metadata,
	}, nil
}
