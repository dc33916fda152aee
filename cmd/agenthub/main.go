// Package main is the entry point for the AgentHub messaging service.
// It initializes all components and starts the HTTP server and the
// configured message queue backend.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"agenthub/internal/api"
	"agenthub/internal/banner"
	"agenthub/internal/config"
	"agenthub/internal/queue"
	kafkaqueue "agenthub/internal/queue/kafka"
	memoryqueue "agenthub/internal/queue/memory"
	"agenthub/internal/registry"
	memoryreg "agenthub/internal/registry/memory"
	postgresreg "agenthub/internal/registry/postgres"
	redisreg "agenthub/internal/registry/redis"
	"agenthub/internal/validation"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	banner.Print()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(&cfg.Logger)

	logger.Info("configuration loaded",
		"path", *configPath,
		"storage_mode", cfg.Storage.Mode,
		"queue_backend", cfg.Messaging.Backend,
	)

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize dependencies based on configuration
	deps, cleanup, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Start HTTP server
	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("AgentHub started",
		"address", cfg.Server.Address(),
		"storage_mode", cfg.Storage.Mode,
		"queue_backend", cfg.Messaging.Backend,
	)

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := deps.queue.Close(shutdownCtx); err != nil {
		logger.Error("queue shutdown error", "error", err)
	}

	logger.Info("AgentHub stopped")
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	server *api.Server
	queue  queue.MessageQueue
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		repo         registry.Repository
		presence     registry.PresenceStore
		cleanupFuncs []func()
	)

	if cfg.Storage.UseMemory() {
		logger.Info("initializing in-memory registry storage")

		repo = memoryreg.NewRepository()

		memPresence := memoryreg.NewPresenceStore()
		presence = memPresence
		cleanupFuncs = append(cleanupFuncs, func() { _ = memPresence.Close() })
	} else {
		logger.Info("initializing production registry storage (PostgreSQL, Redis)")

		db, err := postgresreg.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		if err := db.RunMigrations(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("database migrations completed")

		repo = postgresreg.NewRepository(db)

		redisPresence, err := redisreg.NewPresenceStore(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		presence = redisPresence
		cleanupFuncs = append(cleanupFuncs, func() { _ = redisPresence.Close() })
	}

	// Initialize the message queue through the backend factory
	factory := queue.NewFactory()
	factory.Register(config.BackendInMemory, memoryqueue.New)
	factory.Register(config.BackendKafka, kafkaqueue.New)

	mq, err := factory.New(&cfg.Messaging, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := mq.Initialize(ctx); err != nil {
		return nil, nil, err
	}

	// Initialize services
	availability := registry.NewAvailabilityService(repo, presence)
	validator := validation.NewValidator(&cfg.Validation)

	// Initialize API handlers and HTTP server
	server := api.NewServer(api.ServerDeps{
		Config:               &cfg.Server,
		Logger:               logger,
		MessageHandler:       api.NewMessageHandler(mq, validator, availability, &cfg.Messaging, logger),
		AgentHandler:         api.NewAgentHandler(repo, presence, logger),
		ValidationMiddleware: api.NewValidationMiddleware(&cfg.Validation, logger),
	})

	// Build cleanup function
	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	return &dependencies{server: server, queue: mq}, cleanup, nil
}

// initLogger creates and configures the application logger.
func initLogger(cfg *config.LoggerConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
