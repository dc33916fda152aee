// Package protocol contains the message envelope exchanged between the
// system and agents. A message is an immutable header plus a body whose
// status is the only field that may change, and only through an explicit
// transition.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the current message protocol version.
const Version = "1.0"

// DefaultAgentID is the agent a message addresses when none is specified.
const DefaultAgentID = "business_analyst"

// MessageType identifies the direction and intent of a message.
type MessageType string

const (
	// TypeCommand is a system-to-agent instruction.
	TypeCommand MessageType = "command"
	// TypeEvent is an agent-to-system notification.
	TypeEvent MessageType = "event"
	// TypeResponse is a direct agent-to-system reply.
	TypeResponse MessageType = "response"
)

// IsValid returns true if the message type is a known value.
func (t MessageType) IsValid() bool {
	switch t {
	case TypeCommand, TypeEvent, TypeResponse:
		return true
	default:
		return false
	}
}

// MessageStatus tracks the processing state of a message.
type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusInProgress MessageStatus = "in_progress"
	StatusCompleted  MessageStatus = "completed"
	StatusFailed     MessageStatus = "failed"
	StatusStopped    MessageStatus = "stopped"
	StatusRetrying   MessageStatus = "retrying"
	StatusTimeout    MessageStatus = "timeout"
	StatusCancelled  MessageStatus = "cancelled"
)

// IsValid returns true if the status is a known value.
func (s MessageStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed,
		StatusStopped, StatusRetrying, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once a message can be discarded after acknowledgement.
func (s MessageStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

// Known actions an agent can be commanded to perform.
const (
	ActionAnalyzeBusinessRequirement = "analyze_business_requirement"
	ActionGetAnalysisStatus          = "get_analysis_status"
	ActionStopAnalysis               = "stop_analysis"
)

// Known events an agent can emit.
const (
	EventAnalysisStarted  = "analysis_started"
	EventAnalysisProgress = "analysis_progress"
	EventAnalysisComplete = "analysis_complete"
	EventAnalysisFailed   = "analysis_failed"
	EventAnalysisStopped  = "analysis_stopped"
)

// KnownActions returns every action and event name the system ships with.
// Custom actions are still accepted at the boundary unless an allowlist
// is configured.
func KnownActions() []string {
	return []string{
		ActionAnalyzeBusinessRequirement,
		ActionGetAnalysisStatus,
		ActionStopAnalysis,
		EventAnalysisStarted,
		EventAnalysisProgress,
		EventAnalysisComplete,
		EventAnalysisFailed,
		EventAnalysisStopped,
	}
}

// Header carries the immutable identity of a message.
type Header struct {
	MessageID string      `json:"message_id"`
	Timestamp time.Time   `json:"timestamp"`
	AgentID   string      `json:"agent_id"`
	Type      MessageType `json:"message_type"`
	Version   string      `json:"version"`
}

// Body carries the payload of a message. Status is the only mutable field
// of the whole envelope and changes only via Message.WithStatus.
type Body struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
	Status MessageStatus  `json:"status"`
}

// Message is the unit of inter-agent communication.
type Message struct {
	Header Header `json:"header"`
	Body   Body   `json:"body"`
}

// NewCommand creates a system-to-agent command message with a fresh id
// and current UTC timestamp.
func NewCommand(action string, data map[string]any) Message {
	return newMessage(TypeCommand, action, data, StatusPending)
}

// NewEvent creates an agent-to-system event message with a fresh id and
// current UTC timestamp.
func NewEvent(action string, data map[string]any, status MessageStatus) Message {
	return newMessage(TypeEvent, action, data, status)
}

func newMessage(typ MessageType, action string, data map[string]any, status MessageStatus) Message {
	if data == nil {
		data = map[string]any{}
	}
	return Message{
		Header: Header{
			MessageID: uuid.NewString(),
			Timestamp: time.Now().UTC(),
			AgentID:   DefaultAgentID,
			Type:      typ,
			Version:   Version,
		},
		Body: Body{
			Action: action,
			Data:   data,
			Status: status,
		},
	}
}

// ForAgent returns a copy of the message addressed to the given agent.
func (m Message) ForAgent(agentID string) Message {
	m.Header.AgentID = agentID
	return m
}

// WithStatus returns a copy of the message with the body status replaced.
// This is the only sanctioned status transition; the header is never touched.
func (m Message) WithStatus(status MessageStatus) Message {
	m.Body.Status = status
	return m
}

// Errors returned when reconstructing a message from its map form.
var (
	ErrMissingHeader = errors.New("message header is missing or not an object")
	ErrMissingBody   = errors.New("message body is missing or not an object")
)

// ToMap converts the message to its transport-neutral dictionary form.
// Enum fields are stored as their string values and the timestamp as
// RFC 3339 with nanoseconds, so the conversion is deterministic.
func (m Message) ToMap() map[string]any {
	return map[string]any{
		"header": map[string]any{
			"message_id":   m.Header.MessageID,
			"timestamp":    m.Header.Timestamp.Format(time.RFC3339Nano),
			"agent_id":     m.Header.AgentID,
			"message_type": string(m.Header.Type),
			"version":      m.Header.Version,
		},
		"body": map[string]any{
			"action": m.Body.Action,
			"data":   m.Body.Data,
			"status": string(m.Body.Status),
		},
	}
}

// FromMap reconstructs a message from its dictionary form. The round trip
// through ToMap is loss-less: every field present before conversion is
// present and equal after.
func FromMap(data map[string]any) (Message, error) {
	headerData, ok := data["header"].(map[string]any)
	if !ok {
		return Message{}, ErrMissingHeader
	}
	bodyData, ok := data["body"].(map[string]any)
	if !ok {
		return Message{}, ErrMissingBody
	}

	ts, err := time.Parse(time.RFC3339Nano, stringField(headerData, "timestamp"))
	if err != nil {
		return Message{}, fmt.Errorf("invalid message timestamp: %w", err)
	}

	payload, _ := bodyData["data"].(map[string]any)
	if payload == nil {
		payload = map[string]any{}
	}

	msg := Message{
		Header: Header{
			MessageID: stringField(headerData, "message_id"),
			Timestamp: ts,
			AgentID:   stringField(headerData, "agent_id"),
			Type:      MessageType(stringField(headerData, "message_type")),
			Version:   stringField(headerData, "version"),
		},
		Body: Body{
			Action: stringField(bodyData, "action"),
			Data:   payload,
			Status: MessageStatus(stringField(bodyData, "status")),
		},
	}

	if !msg.Header.Type.IsValid() {
		return Message{}, fmt.Errorf("invalid message type: %q", msg.Header.Type)
	}
	if !msg.Body.Status.IsValid() {
		return Message{}, fmt.Errorf("invalid message status: %q", msg.Body.Status)
	}

	return msg, nil
}

// MarshalJSON serializes the message in the same shape ToMap produces.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

// UnmarshalJSON deserializes a message produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	msg, err := FromMap(raw)
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
