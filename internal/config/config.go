package config

import "time"

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Event transports
const (
	TransportDapr   = "dapr"
	TransportMemory = "memory"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Events    EventsConfig    `mapstructure:"events" validate:"required"`
	Processor ProcessorConfig `mapstructure:"processor" validate:"required"`
	Audit     AuditConfig     `mapstructure:"audit" validate:"required"`
	Reminder  ReminderConfig  `mapstructure:"reminder" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// The memory driver keeps tasks in process and needs no URL.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	URL             string        `mapstructure:"url" validate:"required_if=Driver postgres"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// EventsConfig controls how domain events leave the process.
type EventsConfig struct {
	Transport      string        `mapstructure:"transport" validate:"required,oneof=dapr memory"`
	DaprURL        string        `mapstructure:"dapr_url" validate:"required_if=Transport dapr"`
	PubSubName     string        `mapstructure:"pubsub_name" validate:"required"`
	QueueSize      int           `mapstructure:"queue_size" validate:"gt=0"`
	WorkerCount    int           `mapstructure:"worker_count" validate:"gt=0"`
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout" validate:"gt=0"`
	SendTimeout    time.Duration `mapstructure:"send_timeout" validate:"gt=0"`
}

// ProcessorConfig configures the event processor servers.
type ProcessorConfig struct {
	Port           int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" validate:"gt=0"`
}

// AuditConfig configures the audit log database.
type AuditConfig struct {
	DSN string `mapstructure:"dsn" validate:"required"`
}

// ReminderConfig configures the reminder scanner.
type ReminderConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule" validate:"required"`
	Lead     time.Duration `mapstructure:"lead" validate:"gt=0"`
}
