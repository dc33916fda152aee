// Package registry defines the agent registry: the agent domain type, the
// persistence and presence abstractions, and the availability service the
// message endpoints use to resolve broadcast and route targets.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for registry operations.
var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAgentAlreadyExists = errors.New("agent already exists")
	ErrNoAgentAvailable   = errors.New("no agent available")
)

// AgentType categorizes an agent by role.
type AgentType string

const (
	TypeBusinessAnalyst AgentType = "business_analyst"
	TypeDeveloper       AgentType = "developer"
	TypeTester          AgentType = "tester"
	TypeDeployer        AgentType = "deployer"
	TypeMonitor         AgentType = "monitor"
	TypeCustom          AgentType = "custom"
)

// IsValid reports whether t is a known agent type.
func (t AgentType) IsValid() bool {
	switch t {
	case TypeBusinessAnalyst, TypeDeveloper, TypeTester, TypeDeployer, TypeMonitor, TypeCustom:
		return true
	}
	return false
}

// AgentStatus is the presence state of an agent.
type AgentStatus string

const (
	StatusOnline  AgentStatus = "online"
	StatusOffline AgentStatus = "offline"
	StatusBusy    AgentStatus = "busy"
)

// IsValid reports whether s is a known agent status.
func (s AgentStatus) IsValid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusBusy:
		return true
	}
	return false
}

// KnownCapabilities is the fixed capability vocabulary agents may declare.
var KnownCapabilities = []string{
	"text_processing",
	"code_generation",
	"testing",
	"deployment",
	"monitoring",
	"analysis",
	"planning",
}

// Agent is a registered worker that consumes messages from the queue.
type Agent struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Type         AgentType   `json:"type"`
	Capabilities []string    `json:"capabilities"`
	Status       AgentStatus `json:"status"`

	// ActiveTasks is the number of messages the agent is currently
	// processing, used by least-busy routing.
	ActiveTasks int `json:"active_tasks"`

	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAgent creates an offline agent with a generated id.
func NewAgent(name string, agentType AgentType, capabilities []string) *Agent {
	now := time.Now().UTC()
	if capabilities == nil {
		capabilities = []string{}
	}
	return &Agent{
		ID:           uuid.NewString(),
		Name:         name,
		Type:         agentType,
		Capabilities: capabilities,
		Status:       StatusOffline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the agent's fields against the registry vocabularies.
func (a *Agent) Validate() error {
	if a.ID == "" {
		return errors.New("agent id is required")
	}
	if a.Name == "" {
		return errors.New("agent name is required")
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("invalid agent type: %q", a.Type)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("invalid agent status: %q", a.Status)
	}
	for _, c := range a.Capabilities {
		if !slices.Contains(KnownCapabilities, c) {
			return fmt.Errorf("unknown capability: %q", c)
		}
	}
	return nil
}

// HasCapabilities reports whether the agent declares every capability in
// required.
func (a *Agent) HasCapabilities(required []string) bool {
	for _, c := range required {
		if !slices.Contains(a.Capabilities, c) {
			return false
		}
	}
	return true
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Type       AgentType
	Status     AgentStatus
	Capability string
}

// Matches reports whether the agent satisfies the filter.
func (f Filter) Matches(a *Agent) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Capability != "" && !slices.Contains(a.Capabilities, f.Capability) {
		return false
	}
	return true
}
