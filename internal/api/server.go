package api

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agenthub/internal/config"
	"agenthub/internal/metrics"
)

// Server represents the HTTP server with all configured routes and middleware.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger

	// Handlers
	messageHandler *MessageHandler
	agentHandler   *AgentHandler
	validation     *ValidationMiddleware
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config               *config.ServerConfig
	Logger               *slog.Logger
	MessageHandler       *MessageHandler
	AgentHandler         *AgentHandler
	ValidationMiddleware *ValidationMiddleware
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	// Create Fiber app with optimized settings for high throughput
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable strict routing for consistency
		StrictRouting: true,
		// Case sensitive routing
		CaseSensitive: true,
		// Read timeout from config
		ReadTimeout: deps.Config.ReadTimeout,
		// Write timeout from config
		WriteTimeout: deps.Config.WriteTimeout,
		// Idle timeout from config
		IdleTimeout: deps.Config.IdleTimeout,
		// Custom error handler
		ErrorHandler: customErrorHandler,
	})

	s := &Server{
		app:            app,
		config:         deps.Config,
		logger:         deps.Logger,
		messageHandler: deps.MessageHandler,
		agentHandler:   deps.AgentHandler,
		validation:     deps.ValidationMiddleware,
	}

	// Register middleware
	s.registerMiddleware()

	// Register routes
	s.registerRoutes()

	return s
}

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	// Recovery middleware to handle panics
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware for tracing
	s.app.Use(requestid.New())

	// Logger middleware for request logging
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	// Request counters and timing per route
	s.app.Use(httpMetrics())

	// Message request pre-screen: size, content type, structure
	s.app.Use(s.validation.Handler())
}

// httpMetrics records request counts and handling time, labelled by the
// route pattern rather than the raw path to bound label cardinality.
func httpMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		method := c.Method()
		path := c.Route().Path
		status := strconv.Itoa(c.Response().StatusCode())

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	// Health check endpoint (outside versioned API)
	s.app.Get("/healthz", s.healthCheck)

	// Prometheus metrics endpoint
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.app.Group("/v1")

	// Message dispatch
	messages := v1.Group("/messages")
	messages.Post("/send", s.messageHandler.Send)
	messages.Post("/broadcast", s.messageHandler.Broadcast)
	messages.Post("/route", s.messageHandler.Route)
	messages.Get("/queue/status", s.messageHandler.QueueStatus)
	messages.Post("/queue/retry/:queueID", s.messageHandler.Retry)
	messages.Delete("/queue/:queueID", s.messageHandler.Cancel)
	messages.Get("/agent/:agentID/availability", s.messageHandler.Availability)

	// Agent registry CRUD
	v1.Post("/agents", s.agentHandler.Register)
	v1.Get("/agents", s.agentHandler.List)
	v1.Get("/agents/:id", s.agentHandler.GetByID)
	v1.Delete("/agents/:id", s.agentHandler.Deregister)
	v1.Post("/agents/:id/heartbeat", s.agentHandler.Heartbeat)
}

// healthCheck returns the health status of the service.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return Success(c, map[string]string{
		"status": "healthy",
	})
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler handles errors returned from handlers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		return Error(c, e.Code, ErrCodeInternalError, e.Message)
	}

	// Default to internal server error
	return InternalError(c, fmt.Sprintf("unexpected error: %v", err))
}
