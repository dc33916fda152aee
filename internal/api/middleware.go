package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"agenthub/internal/config"
	"agenthub/internal/fault"
	"agenthub/internal/metrics"
)

// messagePathPrefix selects the requests the validation middleware
// pre-screens.
const messagePathPrefix = "/v1/messages"

// ValidationMiddleware is the request pre-screen in front of the message
// endpoints. It runs three checks in order, short-circuiting on the first
// failure: declared request size, content type, and structural JSON
// validation with endpoint-specific required fields.
type ValidationMiddleware struct {
	cfg    *config.ValidationConfig
	logger *slog.Logger
}

// NewValidationMiddleware creates the middleware bound to the validation
// configuration.
func NewValidationMiddleware(cfg *config.ValidationConfig, logger *slog.Logger) *ValidationMiddleware {
	return &ValidationMiddleware{cfg: cfg, logger: logger}
}

// Handler returns the fiber middleware function.
func (m *ValidationMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), messagePathPrefix) {
			return c.Next()
		}

		if err := m.checkRequestSize(c); err != nil {
			return err
		}
		if err := m.checkContentType(c); err != nil {
			return err
		}
		if err := m.checkStructure(c); err != nil {
			return err
		}

		return c.Next()
	}
}

// checkRequestSize rejects requests whose declared content length exceeds
// the configured ceiling.
func (m *ValidationMiddleware) checkRequestSize(c *fiber.Ctx) error {
	size := c.Request().Header.ContentLength()
	if size > m.cfg.MaxMessageSizeBytes {
		metrics.ValidationRejectionsTotal.WithLabelValues("size", "request").Inc()
		m.logger.Debug("request too large", "size", size, "max", m.cfg.MaxMessageSizeBytes)
		return ErrorWithContext(c, fiber.StatusRequestEntityTooLarge,
			fault.Validation,
			ErrCodeSizeExceeded,
			"Request size exceeds limit",
			map[string]any{
				"actual_size": size,
				"max_size":    m.cfg.MaxMessageSizeBytes,
				"size_type":   "request",
			},
			"message_validation",
		)
	}
	return nil
}

// checkContentType requires a JSON content type on mutating methods.
func (m *ValidationMiddleware) checkContentType(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
	default:
		return nil
	}

	contentType := c.Get(fiber.HeaderContentType)
	if !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
		metrics.ValidationRejectionsTotal.WithLabelValues("content_type", "request").Inc()
		return ErrorWithContext(c, fiber.StatusBadRequest,
			fault.Validation,
			ErrCodeInvalidContentType,
			fmt.Sprintf("Invalid content type: %s. Expected application/json", contentType),
			nil,
			"message_validation",
		)
	}
	return nil
}

// checkStructure parses the body as JSON, re-checks the payload size
// against the data ceiling (catching chunked bodies that bypass the
// content-length check), requires a top-level object, and applies the
// endpoint-specific required-field rules.
func (m *ValidationMiddleware) checkStructure(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
	default:
		return nil
	}

	body := c.Body()
	if len(body) == 0 {
		// Empty body is acceptable for some endpoints.
		return nil
	}

	if len(body) > m.cfg.MaxDataSizeBytes {
		metrics.ValidationRejectionsTotal.WithLabelValues("size", "data").Inc()
		return ErrorWithContext(c, fiber.StatusRequestEntityTooLarge,
			fault.Validation,
			ErrCodeSizeExceeded,
			"Data size exceeds limit",
			map[string]any{
				"actual_size": len(body),
				"max_size":    m.cfg.MaxDataSizeBytes,
				"size_type":   "data",
			},
			"message_validation",
		)
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.ValidationRejectionsTotal.WithLabelValues("structure", "json").Inc()
		return ErrorWithContext(c, fiber.StatusBadRequest,
			fault.Validation,
			ErrCodeInvalidJSON,
			"Invalid JSON format: "+err.Error(),
			nil,
			"message_validation",
		)
	}

	data, ok := parsed.(map[string]any)
	if !ok {
		metrics.ValidationRejectionsTotal.WithLabelValues("structure", "shape").Inc()
		return ErrorWithContext(c, fiber.StatusBadRequest,
			fault.Validation,
			ErrCodeInvalidStructure,
			"Request body must be a JSON object",
			nil,
			"message_validation",
		)
	}

	if errs := requiredFieldErrors(c.Path(), data); len(errs) > 0 {
		metrics.ValidationRejectionsTotal.WithLabelValues("structure", "fields").Inc()
		return ErrorWithContext(c, fiber.StatusBadRequest,
			fault.Validation,
			ErrCodeInvalidStructure,
			"Message validation failed",
			map[string]any{"validation_errors": errs},
			"message_validation",
		)
	}

	return nil
}

// requiredFieldErrors applies the coarse per-endpoint structure rules
// using a path substring match rather than full router integration.
func requiredFieldErrors(path string, data map[string]any) []string {
	var errs []string

	switch {
	case strings.Contains(path, "/send"):
		if _, ok := data["agent_id"]; !ok {
			errs = append(errs, "Missing required field: agent_id")
		} else if _, isString := data["agent_id"].(string); !isString {
			errs = append(errs, "agent_id must be a string")
		}
		if _, ok := data["action"]; !ok {
			errs = append(errs, "Missing required field: action")
		} else if _, isString := data["action"].(string); !isString {
			errs = append(errs, "action must be a string")
		}

	case strings.Contains(path, "/broadcast"):
		if _, ok := data["agent_types"]; !ok {
			errs = append(errs, "Missing required field: agent_types")
		} else if list, isList := data["agent_types"].([]any); !isList {
			errs = append(errs, "agent_types must be a list")
		} else if len(list) == 0 {
			errs = append(errs, "agent_types cannot be empty")
		}
		if _, ok := data["action"]; !ok {
			errs = append(errs, "Missing required field: action")
		}

	case strings.Contains(path, "/route"):
		if _, ok := data["capabilities"]; !ok {
			errs = append(errs, "Missing required field: capabilities")
		} else if list, isList := data["capabilities"].([]any); !isList {
			errs = append(errs, "capabilities must be a list")
		} else if len(list) == 0 {
			errs = append(errs, "capabilities cannot be empty")
		}
		if _, ok := data["action"]; !ok {
			errs = append(errs, "Missing required field: action")
		}
	}

	return errs
}
