package queue

import (
	"encoding/json"
	"testing"

	"agenthub/internal/protocol"
)

func TestWire_RoundTrip(t *testing.T) {
	msg := protocol.NewCommand(protocol.ActionAnalyzeBusinessRequirement, map[string]any{"task": "t1"})
	ttl := 300.0
	qm := NewQueueMessage(msg, PriorityHigh, &ttl, 5, map[string]any{"source": "api"})

	data, err := EncodeWire(qm)
	if err != nil {
		t.Fatalf("EncodeWire error: %v", err)
	}

	got, err := DecodeWire(data)
	if err != nil {
		t.Fatalf("DecodeWire error: %v", err)
	}

	if got.QueueID != qm.QueueID {
		t.Errorf("QueueID = %v, want %v", got.QueueID, qm.QueueID)
	}
	if got.Priority != PriorityHigh {
		t.Errorf("Priority = %v, want %v", got.Priority, PriorityHigh)
	}
	if got.TTL != 300.0 {
		t.Errorf("TTL = %v, want 300", got.TTL)
	}
	if got.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", got.MaxRetries)
	}
	if got.CreatedAt != qm.CreatedAt {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, qm.CreatedAt)
	}
	if got.Message.Header.MessageID != msg.Header.MessageID {
		t.Errorf("MessageID = %v, want %v", got.Message.Header.MessageID, msg.Header.MessageID)
	}
	if got.Message.Body.Action != protocol.ActionAnalyzeBusinessRequirement {
		t.Errorf("Action = %v, want %v", got.Message.Body.Action, protocol.ActionAnalyzeBusinessRequirement)
	}
	if got.Metadata["source"] != "api" {
		t.Errorf("Metadata[source] = %v, want api", got.Metadata["source"])
	}
}

// The wire payload is a contract shared with non-Go consumers: keys and
// value shapes must stay exactly as documented.
func TestWire_PayloadShape(t *testing.T) {
	msg := protocol.NewCommand(protocol.ActionAnalyzeBusinessRequirement, map[string]any{"task": "t1"})
	qm := NewQueueMessage(msg, PriorityHigh, nil, 3, nil)

	data, err := EncodeWire(qm)
	if err != nil {
		t.Fatalf("EncodeWire error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}

	for _, key := range []string{"message", "priority", "created_at", "queue_id", "ttl", "max_retries", "metadata"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("payload missing key %q", key)
		}
	}

	// Priority travels as its numeric value.
	if prio, ok := raw["priority"].(float64); !ok || prio != float64(PriorityHigh) {
		t.Errorf("priority = %v, want numeric %d", raw["priority"], PriorityHigh)
	}

	// The message envelope keeps its header/body sub-objects with enum
	// string values.
	message := raw["message"].(map[string]any)
	body := message["body"].(map[string]any)
	if body["action"] != protocol.ActionAnalyzeBusinessRequirement {
		t.Errorf("message.body.action = %v, want %v", body["action"], protocol.ActionAnalyzeBusinessRequirement)
	}
	if body["status"] != "pending" {
		t.Errorf("message.body.status = %v, want pending", body["status"])
	}
	header := message["header"].(map[string]any)
	if header["message_type"] != "command" {
		t.Errorf("message.header.message_type = %v, want command", header["message_type"])
	}
}

func TestDecodeWire_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("not-json")},
		{"empty object", []byte("{}")},
		{"message not an envelope", []byte(`{"message":{"header":"x"},"priority":1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeWire(tt.data); err == nil {
				t.Error("expected a decode error")
			}
		})
	}
}
