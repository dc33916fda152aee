// Package config provides configuration loading and management for AgentHub.
// It supports loading configuration from YAML files with sensible defaults
// applied for any unset values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageMode represents the storage backend mode for the agent registry.
type StorageMode string

const (
	// StorageModeMemory uses in-memory implementations for all storage.
	StorageModeMemory StorageMode = "memory"
	// StorageModeStorage uses real storage backends (Redis, PostgreSQL).
	StorageModeStorage StorageMode = "storage"
)

// IsValid returns true if the storage mode is a known value.
func (m StorageMode) IsValid() bool {
	return m == StorageModeMemory || m == StorageModeStorage
}

// QueueBackend identifies a message queue backend implementation.
type QueueBackend string

const (
	// BackendInMemory selects the in-process channel-backed queue.
	BackendInMemory QueueBackend = "in_memory"
	// BackendKafka selects the Kafka-backed queue.
	BackendKafka QueueBackend = "kafka"
)

// IsValid returns true if the backend is a known value.
func (b QueueBackend) IsValid() bool {
	return b == BackendInMemory || b == BackendKafka
}

// Config represents the complete application configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Validation ValidationConfig `yaml:"validation"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Logger     LoggerConfig     `yaml:"logger"`
}

// StorageConfig holds the storage mode configuration.
type StorageConfig struct {
	Mode StorageMode `yaml:"mode"`
}

// UseMemory returns true if in-memory storage should be used.
func (c *StorageConfig) UseMemory() bool {
	return c.Mode == StorageModeMemory
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// MessagingConfig holds the messaging system configuration, including
// backend selection and delivery policy defaults.
type MessagingConfig struct {
	Backend QueueBackend `yaml:"backend"`

	Kafka    KafkaConfig    `yaml:"kafka"`
	InMemory InMemoryConfig `yaml:"in_memory"`

	// DefaultPriority is applied to messages enqueued without an explicit
	// priority. One of: low, normal, high, urgent.
	DefaultPriority string `yaml:"default_priority"`

	// DefaultTTL is the time-to-live in seconds applied to messages
	// enqueued without an explicit TTL. Zero disables expiry.
	DefaultTTL float64 `yaml:"default_ttl"`

	DefaultMaxRetries int `yaml:"default_max_retries"`

	BatchSize        int           `yaml:"batch_size"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// KafkaConfig holds Kafka connection, topic and client tuning settings.
type KafkaConfig struct {
	BootstrapServers []string `yaml:"bootstrap_servers"`
	TopicPrefix      string   `yaml:"topic_prefix"`
	ConsumerGroup    string   `yaml:"consumer_group"`

	// AutoOffsetReset controls where a new consumer group starts reading.
	// One of: earliest, latest.
	AutoOffsetReset   string        `yaml:"auto_offset_reset"`
	EnableAutoCommit  bool          `yaml:"enable_auto_commit"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// Producer settings. Acks is one of: all, one, none.
	Acks      string        `yaml:"acks"`
	Retries   int           `yaml:"retries"`
	BatchSize int           `yaml:"batch_size"`
	Linger    time.Duration `yaml:"linger"`

	// Topic settings.
	NumPartitions     int `yaml:"num_partitions"`
	ReplicationFactor int `yaml:"replication_factor"`
}

// Topic returns the derived topic name for queue messages.
func (c *KafkaConfig) Topic() string {
	return c.TopicPrefix + ".messages"
}

// InMemoryConfig holds settings for the in-memory queue backend.
type InMemoryConfig struct {
	MaxSize int `yaml:"max_size"`
}

// ValidationConfig holds message validation settings.
type ValidationConfig struct {
	MaxMessageSizeBytes int `yaml:"max_message_size_bytes"`
	MaxDataSizeBytes    int `yaml:"max_data_size_bytes"`

	// AllowedActions restricts the set of accepted actions.
	// An empty list means all actions are allowed.
	AllowedActions []string `yaml:"allowed_actions"`

	EnableWarnings bool `yaml:"enable_warnings"`
	MaxRetries     int  `yaml:"max_retries"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int32  `yaml:"max_open_conns"`
	MaxIdleConns int32  `yaml:"max_idle_conns"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Load reads configuration from the specified YAML file path.
// Returns an error if the file cannot be read or parsed, or if a
// discriminator field holds an unknown value.
func Load(path string) (*Config, error) {
	// Clean the path to prevent path traversal attacks
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := newConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newConfig seeds the booleans that default to true. They are set before
// unmarshal so an absent key keeps the default while an explicit false in
// the file still wins; applyDefaults cannot distinguish the two.
func newConfig() *Config {
	cfg := &Config{}
	cfg.Messaging.Kafka.EnableAutoCommit = true
	cfg.Validation.EnableWarnings = true
	return cfg
}

// Default returns a configuration with all defaults applied, suitable for
// tests and embedded use without a config file.
func Default() *Config {
	cfg := newConfig()
	applyDefaults(cfg)
	return cfg
}

// Validate checks the discriminator fields for unknown values.
func (c *Config) Validate() error {
	if !c.Storage.Mode.IsValid() {
		return fmt.Errorf("invalid storage mode: %q", c.Storage.Mode)
	}
	if !c.Messaging.Backend.IsValid() {
		return fmt.Errorf("invalid messaging backend: %q", c.Messaging.Backend)
	}
	return nil
}

// applyDefaults sets sensible default values for configuration fields
// that are not explicitly set in the config file.
func applyDefaults(cfg *Config) {
	// Storage defaults
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = StorageModeMemory
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	// Messaging defaults
	if cfg.Messaging.Backend == "" {
		cfg.Messaging.Backend = BackendInMemory
	}
	if cfg.Messaging.DefaultPriority == "" {
		cfg.Messaging.DefaultPriority = "normal"
	}
	if cfg.Messaging.DefaultMaxRetries == 0 {
		cfg.Messaging.DefaultMaxRetries = 3
	}
	if cfg.Messaging.BatchSize == 0 {
		cfg.Messaging.BatchSize = 100
	}
	if cfg.Messaging.OperationTimeout == 0 {
		cfg.Messaging.OperationTimeout = 30 * time.Second
	}

	// Kafka defaults
	if len(cfg.Messaging.Kafka.BootstrapServers) == 0 {
		cfg.Messaging.Kafka.BootstrapServers = []string{"localhost:9092"}
	}
	if cfg.Messaging.Kafka.TopicPrefix == "" {
		cfg.Messaging.Kafka.TopicPrefix = "agenthub"
	}
	if cfg.Messaging.Kafka.ConsumerGroup == "" {
		cfg.Messaging.Kafka.ConsumerGroup = "agenthub-agents"
	}
	if cfg.Messaging.Kafka.AutoOffsetReset == "" {
		cfg.Messaging.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Messaging.Kafka.SessionTimeout == 0 {
		cfg.Messaging.Kafka.SessionTimeout = 30 * time.Second
	}
	if cfg.Messaging.Kafka.HeartbeatInterval == 0 {
		cfg.Messaging.Kafka.HeartbeatInterval = 3 * time.Second
	}
	if cfg.Messaging.Kafka.Acks == "" {
		cfg.Messaging.Kafka.Acks = "all"
	}
	if cfg.Messaging.Kafka.Retries == 0 {
		cfg.Messaging.Kafka.Retries = 3
	}
	if cfg.Messaging.Kafka.BatchSize == 0 {
		cfg.Messaging.Kafka.BatchSize = 16384
	}
	if cfg.Messaging.Kafka.Linger == 0 {
		cfg.Messaging.Kafka.Linger = 5 * time.Millisecond
	}
	if cfg.Messaging.Kafka.NumPartitions == 0 {
		cfg.Messaging.Kafka.NumPartitions = 3
	}
	if cfg.Messaging.Kafka.ReplicationFactor == 0 {
		cfg.Messaging.Kafka.ReplicationFactor = 1
	}

	// In-memory queue defaults
	if cfg.Messaging.InMemory.MaxSize == 0 {
		cfg.Messaging.InMemory.MaxSize = 10000
	}

	// Validation defaults
	if cfg.Validation.MaxMessageSizeBytes == 0 {
		cfg.Validation.MaxMessageSizeBytes = 1024 * 1024
	}
	if cfg.Validation.MaxDataSizeBytes == 0 {
		cfg.Validation.MaxDataSizeBytes = 512 * 1024
	}
	if cfg.Validation.MaxRetries == 0 {
		cfg.Validation.MaxRetries = 3
	}

	// Redis defaults
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// Postgres defaults
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 25
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 5
	}

	// Logger defaults
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
}

// Address returns the full server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisAddr returns the Redis address in host:port format.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
