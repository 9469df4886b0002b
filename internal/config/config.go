// Package config provides configuration structures and validation for the reconciler binaries.
// It handles environment-based configuration for the poller, the API gateway and the SMS
// dispatcher, including store connections, message queues, and reconciliation parameters.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during startup.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Kafka        KafkaConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Redis        RedisConfig
	Reconciler   ReconcilerConfig
	WorkerPool   WorkerPoolConfig
	Counterparty CounterpartyConfig
	SMS          SMSConfig
	Metrics      MetricsConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	NotificationTopic string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration for the ledger collections
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the processing lock store configuration
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ReconcilerConfig contains the exchange reconciliation loop parameters
type ReconcilerConfig struct {
	PassBudget       time.Duration // Wall-clock budget of a single invocation
	IdleInterval     time.Duration // Fixed sleep between iterations
	BatchSize        int           // Maximum transactions claimed per iteration
	LockTTL          time.Duration
	LockKeyPrefix    string
	ScheduleInterval time.Duration // Interval between invocations in schedule mode
	FetchTimeout     time.Duration // Timeout of a single counterparty fetch
}

// WorkerPoolConfig contains notification dispatch pool configuration
type WorkerPoolConfig struct {
	Size int
}

// CounterpartyConfig contains the remote exchange client configuration
type CounterpartyConfig struct {
	RequestTimeout time.Duration
	Endpoints      map[string]string // PFI DID -> base URL
}

// SMSConfig contains the SMS gateway configuration
type SMSConfig struct {
	BaseURL   string
	Username  string
	APIKey    string
	Shortcode string
	Timeout   time.Duration
}

// MetricsConfig contains the Prometheus endpoint configuration
type MetricsConfig struct {
	Port int
}

// validate performs validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if c.Kafka.Brokers == "" {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.NotificationTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_NOTIFICATION_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}
	if c.Redis.DB < 0 {
		validationErrors = append(validationErrors, "REDIS_DB must not be negative")
	}

	// Validate Reconciler config
	if c.Reconciler.PassBudget <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_PASS_BUDGET must be greater than 0")
	}
	if c.Reconciler.IdleInterval <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_IDLE_INTERVAL must be greater than 0")
	}
	if c.Reconciler.BatchSize <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_BATCH_SIZE must be greater than 0")
	}
	if c.Reconciler.LockTTL <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_LOCK_TTL must be greater than 0")
	}
	if c.Reconciler.LockTTL <= c.Reconciler.PassBudget {
		validationErrors = append(validationErrors, "RECONCILER_LOCK_TTL must exceed RECONCILER_PASS_BUDGET")
	}
	if c.Reconciler.LockKeyPrefix == "" {
		validationErrors = append(validationErrors, "RECONCILER_LOCK_KEY_PREFIX is required")
	}
	if c.Reconciler.ScheduleInterval <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_SCHEDULE_INTERVAL must be greater than 0")
	}
	if c.Reconciler.FetchTimeout <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_FETCH_TIMEOUT must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if c.Counterparty.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "COUNTERPARTY_REQUEST_TIMEOUT must be greater than 0")
	}

	// Validate SMS config
	if c.SMS.BaseURL == "" {
		validationErrors = append(validationErrors, "SMS_BASE_URL is required")
	}
	if c.SMS.Shortcode == "" {
		validationErrors = append(validationErrors, "SMS_SHORTCODE is required")
	}
	if c.SMS.Timeout <= 0 {
		validationErrors = append(validationErrors, "SMS_TIMEOUT must be greater than 0")
	}

	if c.Metrics.Port <= 0 {
		validationErrors = append(validationErrors, "METRICS_PORT must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

// parseEndpoints reads a "did=url,did=url" list into a map.
func parseEndpoints(raw string) (map[string]string, error) {
	endpoints := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return endpoints, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		// DIDs contain ':' so only '=' separates the key from the URL
		did, url, ok := strings.Cut(pair, "=")
		if !ok || did == "" || url == "" {
			return nil, fmt.Errorf("invalid PFI endpoint entry %q, expected did=url", pair)
		}
		endpoints[strings.TrimSpace(did)] = strings.TrimRight(strings.TrimSpace(url), "/")
	}

	return endpoints, nil
}
