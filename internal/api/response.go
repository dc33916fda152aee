// Package api provides HTTP handlers and routing for the agenthub REST API.
package api

import (
	"github.com/gofiber/fiber/v2"

	"agenthub/internal/fault"
)

// APIResponse is the standard response envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError represents an error response. Every rejection carries a
// machine-readable code, a human-readable message, structured context and
// the originating subsystem, so callers can branch programmatically.
type APIError struct {
	Type    fault.Type     `json:"error_type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Source  string         `json:"source,omitempty"`
}

// Common error codes for consistent API responses.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeValidationFailed   = "MESSAGE_VALIDATION_FAILED"
	ErrCodeSizeExceeded       = "MESSAGE_SIZE_EXCEEDED"
	ErrCodeInvalidContentType = "INVALID_CONTENT_TYPE"
	ErrCodeInvalidJSON        = "INVALID_JSON_FORMAT"
	ErrCodeInvalidStructure   = "INVALID_REQUEST_STRUCTURE"
	ErrCodeAgentUnavailable   = "AGENT_UNAVAILABLE"
	ErrCodeQueueError         = "MESSAGE_QUEUE_ERROR"
)

// Success sends a successful JSON response with the given data.
func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(APIResponse{
		Success: true,
		Data:    data,
	})
}

// SuccessWithStatus sends a successful JSON response with a custom status code.
func SuccessWithStatus(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
	})
}

// Created sends a 201 Created response with the given data.
func Created(c *fiber.Ctx, data interface{}) error {
	return SuccessWithStatus(c, fiber.StatusCreated, data)
}

// Accepted sends a 202 Accepted response with the given data.
func Accepted(c *fiber.Ctx, data interface{}) error {
	return SuccessWithStatus(c, fiber.StatusAccepted, data)
}

// NoContent sends a 204 No Content response.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// Error sends an error JSON response with the given status code.
func Error(c *fiber.Ctx, status int, code, message string) error {
	return ErrorWithContext(c, status, fault.Unknown, code, message, nil, "")
}

// ErrorWithContext sends a fully attributed error response.
func ErrorWithContext(c *fiber.Ctx, status int, errType fault.Type, code, message string, context map[string]any, source string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error: &APIError{
			Type:    errType,
			Code:    code,
			Message: message,
			Context: context,
			Source:  source,
		},
	})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, ErrCodeBadRequest, message)
}

// ValidationFailure sends a 400 response carrying the complete list of
// field validation errors.
func ValidationFailure(c *fiber.Ctx, errors []string) error {
	return ErrorWithContext(c, fiber.StatusBadRequest,
		fault.Validation,
		ErrCodeValidationFailed,
		"Message validation failed",
		map[string]any{"validation_errors": errors},
		"message_validation",
	)
}

// AgentUnavailable sends a 503 response for an unreachable target agent.
func AgentUnavailable(c *fiber.Ctx, agentID string) error {
	return ErrorWithContext(c, fiber.StatusServiceUnavailable,
		fault.Resource,
		ErrCodeAgentUnavailable,
		"Agent "+agentID+" is not available",
		map[string]any{"agent_id": agentID},
		"agent_availability",
	)
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict sends a 409 Conflict error response.
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, ErrCodeConflict, message)
}

// InternalError sends a 500 Internal Server Error response.
func InternalError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, ErrCodeInternalError, message)
}
