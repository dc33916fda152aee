package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"agenthub/internal/metrics"
	"agenthub/internal/registry"
)

// AgentHandler handles HTTP requests for agent registry operations.
type AgentHandler struct {
	repo     registry.Repository
	presence registry.PresenceStore
	logger   *slog.Logger

	// presenceTTL bounds how long a heartbeat keeps an agent online.
	presenceTTL time.Duration
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(repo registry.Repository, presence registry.PresenceStore, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		repo:        repo,
		presence:    presence,
		logger:      logger,
		presenceTTL: 90 * time.Second,
	}
}

// registerAgentRequest is the payload for agent registration.
type registerAgentRequest struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Capabilities []string `json:"capabilities"`
}

// Register handles POST /v1/agents
// Registers a new agent.
func (h *AgentHandler) Register(c *fiber.Ctx) error {
	var req registerAgentRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	agent := registry.NewAgent(req.Name, registry.AgentType(req.Type), req.Capabilities)
	if err := agent.Validate(); err != nil {
		h.logger.Debug("agent validation failed", "error", err)
		return ValidationFailure(c, []string{err.Error()})
	}

	if err := h.repo.Create(c.Context(), agent); err != nil {
		if errors.Is(err, registry.ErrAgentAlreadyExists) {
			return Conflict(c, "agent already exists")
		}
		h.logger.Error("failed to register agent", "error", err)
		return InternalError(c, "failed to register agent")
	}

	metrics.AgentsRegistered.WithLabelValues(string(agent.Type)).Inc()
	h.logger.Info("registered agent", "id", agent.ID, "name", agent.Name, "type", agent.Type)
	return Created(c, agent)
}

// List handles GET /v1/agents
// Returns agents, optionally filtered by type, status or capability.
func (h *AgentHandler) List(c *fiber.Ctx) error {
	filter := registry.Filter{
		Type:       registry.AgentType(c.Query("type")),
		Status:     registry.AgentStatus(c.Query("status")),
		Capability: c.Query("capability"),
	}

	agents, err := h.repo.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list agents", "error", err)
		return InternalError(c, "failed to list agents")
	}

	return Success(c, agents)
}

// GetByID handles GET /v1/agents/:id
// Returns a single agent by ID.
func (h *AgentHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	agent, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return NotFound(c, "agent not found")
		}
		h.logger.Error("failed to get agent", "error", err)
		return InternalError(c, "failed to get agent")
	}

	return Success(c, agent)
}

// Deregister handles DELETE /v1/agents/:id
// Removes an agent and its presence entry.
func (h *AgentHandler) Deregister(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	agent, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return NotFound(c, "agent not found")
		}
		h.logger.Error("failed to get agent", "error", err)
		return InternalError(c, "failed to deregister agent")
	}

	if err := h.repo.Delete(c.Context(), id); err != nil {
		h.logger.Error("failed to delete agent", "error", err)
		return InternalError(c, "failed to deregister agent")
	}
	if err := h.presence.DeletePresence(c.Context(), id); err != nil {
		h.logger.Warn("failed to delete presence", "error", err, "agent_id", id)
	}

	metrics.AgentsRegistered.WithLabelValues(string(agent.Type)).Dec()
	h.logger.Info("deregistered agent", "id", id)
	return NoContent(c)
}

// heartbeatRequest is the payload for agent heartbeats.
type heartbeatRequest struct {
	Status      string `json:"status"`
	ActiveTasks int    `json:"active_tasks"`
}

// Heartbeat handles POST /v1/agents/:id/heartbeat
// Refreshes the agent's presence entry. The entry expires if the agent
// stops heartbeating, taking it offline automatically.
func (h *AgentHandler) Heartbeat(c *fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.repo.GetByID(c.Context(), id); err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return NotFound(c, "agent not found")
		}
		h.logger.Error("failed to get agent", "error", err)
		return InternalError(c, "failed to record heartbeat")
	}

	req := heartbeatRequest{Status: string(registry.StatusOnline)}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return BadRequest(c, "invalid request body")
		}
	}

	status := registry.AgentStatus(req.Status)
	if !status.IsValid() {
		return ValidationFailure(c, []string{"invalid agent status: " + req.Status})
	}

	p := &registry.Presence{
		AgentID:     id,
		Status:      status,
		ActiveTasks: req.ActiveTasks,
		LastSeen:    time.Now().UTC(),
	}
	if err := h.presence.SetPresence(c.Context(), p, h.presenceTTL); err != nil {
		h.logger.Error("failed to set presence", "error", err, "agent_id", id)
		return InternalError(c, "failed to record heartbeat")
	}

	return Success(c, p)
}
