package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"agenthub/internal/config"
	"agenthub/internal/fault"
	"agenthub/internal/metrics"
	"agenthub/internal/protocol"
	"agenthub/internal/queue"
	"agenthub/internal/registry"
	"agenthub/internal/validation"
)

// MessageHandler handles HTTP requests for sending, broadcasting and
// routing messages through the queue.
type MessageHandler struct {
	queue        queue.MessageQueue
	validator    *validation.Validator
	availability *registry.AvailabilityService
	cfg          *config.MessagingConfig
	logger       *slog.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(q queue.MessageQueue, validator *validation.Validator, availability *registry.AvailabilityService, cfg *config.MessagingConfig, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		queue:        q,
		validator:    validator,
		availability: availability,
		cfg:          cfg,
		logger:       logger,
	}
}

// parseBody decodes the request body into the untyped map the validators
// work on. The middleware has already guaranteed well-formed JSON.
func parseBody(c *fiber.Ctx) (map[string]any, error) {
	data := map[string]any{}
	if len(c.Body()) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(c.Body(), &data); err != nil {
		return nil, err
	}
	return data, nil
}

// putOptions translates the optional request fields into queue options.
func putOptions(body map[string]any) []queue.PutOption {
	var opts []queue.PutOption
	if name, ok := body["priority"].(string); ok {
		if p, valid := queue.ParsePriority(name); valid {
			opts = append(opts, queue.WithPriority(p))
		}
	}
	if ttl, ok := body["ttl"].(float64); ok {
		opts = append(opts, queue.WithTTL(ttl))
	}
	if metadata, ok := body["metadata"].(map[string]any); ok {
		opts = append(opts, queue.WithMetadata(metadata))
	}
	return opts
}

// priorityLabel resolves the metric label for the request's priority,
// mirroring what ResolvePut applies on the enqueue path.
func (h *MessageHandler) priorityLabel(body map[string]any) string {
	if name, ok := body["priority"].(string); ok {
		return name
	}
	if h.cfg.DefaultPriority != "" {
		return h.cfg.DefaultPriority
	}
	return "normal"
}

// payloadData extracts the data payload, defaulting to an empty map.
func payloadData(body map[string]any) map[string]any {
	if data, ok := body["data"].(map[string]any); ok {
		return data
	}
	return map[string]any{}
}

// Send handles POST /v1/messages/send.
// Validates the request, checks the target agent's availability and puts
// a command message on the queue.
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	start := time.Now()

	body, err := parseBody(c)
	if err != nil {
		return BadRequest(c, "invalid request body")
	}

	if result := h.validator.ValidateSend(body); !result.IsValid {
		return ValidationFailure(c, result.Errors)
	}

	agentID := body["agent_id"].(string)
	action := body["action"].(string)

	available, err := h.availability.IsAvailable(c.Context(), agentID)
	if err != nil && !errors.Is(err, registry.ErrAgentNotFound) {
		h.logger.Error("availability check failed", "error", err, "agent_id", agentID)
		return InternalError(c, "failed to check agent availability")
	}
	if !available {
		return AgentUnavailable(c, agentID)
	}

	msg := protocol.NewCommand(action, payloadData(body)).ForAgent(agentID)

	queueID, err := h.queue.Put(c.Context(), msg, putOptions(body)...)
	if err != nil {
		h.logger.Error("failed to enqueue message", "error", err, "agent_id", agentID, "action", action)
		return InternalError(c, "failed to enqueue message")
	}

	metrics.MessagesEnqueuedTotal.WithLabelValues(string(h.cfg.Backend), action, h.priorityLabel(body)).Inc()
	metrics.EnqueueLatency.Observe(time.Since(start).Seconds())

	h.logger.Debug("message accepted",
		"queue_id", queueID,
		"message_id", msg.Header.MessageID,
		"agent_id", agentID,
		"action", action,
	)

	return Created(c, fiber.Map{
		"message_id": msg.Header.MessageID,
		"queue_id":   queueID,
		"agent_id":   agentID,
		"action":     action,
		"status":     protocol.StatusPending,
		"created_at": msg.Header.Timestamp,
	})
}

// Broadcast handles POST /v1/messages/broadcast.
// Sends the same command to every online agent of the requested types.
func (h *MessageHandler) Broadcast(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return BadRequest(c, "invalid request body")
	}

	if result := h.validator.ValidateBroadcast(body); !result.IsValid {
		return ValidationFailure(c, result.Errors)
	}

	agentTypes := stringList(body["agent_types"])
	excludeIDs := stringList(body["exclude_agent_ids"])
	action := body["action"].(string)

	targets, err := h.availability.BroadcastTargets(c.Context(), agentTypes, excludeIDs)
	if err != nil {
		h.logger.Error("failed to resolve broadcast targets", "error", err)
		return InternalError(c, "failed to resolve broadcast targets")
	}

	data := payloadData(body)
	opts := putOptions(body)

	queueIDs := make([]string, 0, len(targets))
	failed := 0
	for _, target := range targets {
		msg := protocol.NewCommand(action, data).ForAgent(target.ID)
		queueID, err := h.queue.Put(c.Context(), msg, opts...)
		if err != nil {
			h.logger.Error("broadcast enqueue failed", "error", err, "agent_id", target.ID)
			failed++
			continue
		}
		queueIDs = append(queueIDs, queueID)
		metrics.MessagesEnqueuedTotal.WithLabelValues(string(h.cfg.Backend), action, h.priorityLabel(body)).Inc()
	}

	return Created(c, fiber.Map{
		"total_agents":     len(targets),
		"successful_sends": len(queueIDs),
		"failed_sends":     failed,
		"queue_ids":        queueIDs,
		"action":           action,
	})
}

// Route handles POST /v1/messages/route.
// Picks one available agent matching the required capabilities and sends
// the command to it.
func (h *MessageHandler) Route(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return BadRequest(c, "invalid request body")
	}

	if result := h.validator.ValidateRoute(body); !result.IsValid {
		return ValidationFailure(c, result.Errors)
	}

	capabilities := stringList(body["capabilities"])
	action := body["action"].(string)
	strategy, _ := body["load_balancing"].(string)
	if strategy == "" {
		strategy = registry.StrategyRoundRobin
	}

	agent, err := h.availability.Route(c.Context(), capabilities, strategy)
	if err != nil {
		if errors.Is(err, registry.ErrNoAgentAvailable) {
			metrics.RoutingDecisionsTotal.WithLabelValues(strategy, "no_agent").Inc()
			return ErrorWithContext(c, fiber.StatusServiceUnavailable,
				fault.Resource,
				ErrCodeAgentUnavailable,
				"No agent available for the required capabilities",
				map[string]any{"capabilities": capabilities},
				"agent_availability",
			)
		}
		h.logger.Error("routing failed", "error", err)
		return InternalError(c, "failed to route message")
	}
	metrics.RoutingDecisionsTotal.WithLabelValues(strategy, "routed").Inc()

	msg := protocol.NewCommand(action, payloadData(body)).ForAgent(agent.ID)

	queueID, err := h.queue.Put(c.Context(), msg, putOptions(body)...)
	if err != nil {
		h.logger.Error("failed to enqueue routed message", "error", err, "agent_id", agent.ID)
		return InternalError(c, "failed to enqueue message")
	}
	metrics.MessagesEnqueuedTotal.WithLabelValues(string(h.cfg.Backend), action, h.priorityLabel(body)).Inc()

	return Created(c, fiber.Map{
		"message_id":     msg.Header.MessageID,
		"queue_id":       queueID,
		"agent_id":       agent.ID,
		"agent_name":     agent.Name,
		"action":         action,
		"load_balancing": strategy,
		"status":         protocol.StatusPending,
	})
}

// QueueStatus handles GET /v1/messages/queue/status.
func (h *MessageHandler) QueueStatus(c *fiber.Ctx) error {
	return Success(c, h.queue.Stats())
}

// Cancel handles DELETE /v1/messages/queue/:queueID.
// Reports whether the backend could withdraw the message; false is a
// valid outcome for log-based transports.
func (h *MessageHandler) Cancel(c *fiber.Ctx) error {
	queueID := c.Params("queueID")

	cancelled, err := h.queue.Cancel(c.Context(), queueID)
	if err != nil {
		h.logger.Error("cancel failed", "error", err, "queue_id", queueID)
		return InternalError(c, "failed to cancel message")
	}

	return Success(c, fiber.Map{
		"queue_id":     queueID,
		"cancelled":    cancelled,
		"cancelled_at": time.Now().UTC(),
	})
}

// Retry handles POST /v1/messages/queue/retry/:queueID.
// Releases a failed message back for redelivery by marking the failure
// as retryable. The reported schedule follows the exponential backoff
// policy; actual redelivery timing belongs to the backend.
func (h *MessageHandler) Retry(c *fiber.Ctx) error {
	queueID := c.Params("queueID")

	if err := h.queue.MarkFailed(c.Context(), queueID, true); err != nil {
		h.logger.Error("retry failed", "error", err, "queue_id", queueID)
		return InternalError(c, "failed to retry message")
	}

	handler := fault.NewRetryHandler(h.cfg.DefaultMaxRetries, time.Second)
	delay := handler.Delay(1, fault.ExponentialBackoff, nil)

	return Success(c, fiber.Map{
		"queue_id":     queueID,
		"status":       protocol.StatusRetrying,
		"scheduled_at": time.Now().UTC().Add(delay),
	})
}

// Availability handles GET /v1/messages/agent/:agentID/availability.
func (h *MessageHandler) Availability(c *fiber.Ctx) error {
	agentID := c.Params("agentID")

	available, err := h.availability.IsAvailable(c.Context(), agentID)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return NotFound(c, "agent not found")
		}
		h.logger.Error("availability check failed", "error", err, "agent_id", agentID)
		return InternalError(c, "failed to check agent availability")
	}

	return Success(c, fiber.Map{
		"agent_id":  agentID,
		"available": available,
	})
}

// stringList coerces a decoded JSON value into a string slice, dropping
// non-string entries. The validators have already rejected bad shapes.
func stringList(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(list))
	for _, entry := range list {
		if s, ok := entry.(string); ok {
			result = append(result, s)
		}
	}
	return result
}
