// Package config provides configuration structures and validation for the application.
// It handles environment-based configuration for the gateway, the integrity auditor and
// the operator CLI: HTTP server settings, database connections, message queues, the
// hash-ledger connection and the sync retry policy.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger modes
const (
	LedgerModeRPC    = "rpc"
	LedgerModeMemory = "memory"
)

// maxGasBufferPercent caps the margin on a gas estimate
const maxGasBufferPercent = 200

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during startup.
type Config struct {
	Application    ApplicationConfig
	Logging        LoggingConfig
	Server         ServerConfig
	Kafka          KafkaConfig
	Postgres       PostgresConfig
	MongoDB        MongoDBConfig
	WorkerPool     WorkerPoolConfig
	Ledger         LedgerConfig
	Retry          RetryConfig
	SystemOfRecord SystemOfRecordConfig
	Audit          AuditConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
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
	SyncEventsTopic   string // Topic every sync outcome is published to
	NumPartitions     int    // Number of partitions for topics
	ReplicationFactor int    // Replication factor for topics
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Records saved but not ledgered, and unreadable events
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of concurrent verifications
}

// LedgerConfig describes how the hash-ledger contract is reached
type LedgerConfig struct {
	Mode             string // "rpc" or "memory"
	RPCURL           string
	ChainID          int64
	ContractAddress  string
	PrivateKey       string // hex-encoded signer key for the raw binding transport
	RelayerURL       string // managed transaction API; empty disables the primary SDK path
	RelayerAPIKey    string
	GasBufferPercent int    // margin added on top of the gas estimate
	ReceiptTimeout   time.Duration
	CallTimeout      time.Duration
}

// RelayerEnabled reports whether the managed SDK transport is configured
func (l LedgerConfig) RelayerEnabled() bool {
	return l.RelayerURL != ""
}

// RetryConfig is the ledger write retry policy
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration // fixed delay between attempts
}

// SystemOfRecordConfig points at the REST backend that owns the records
type SystemOfRecordConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// AuditConfig contains integrity auditor settings
type AuditConfig struct {
	SweepInterval time.Duration
	BatchSize     int
	StaleAfter    time.Duration // synced records not verified for this long are re-checked
}

// RateLimitConfig contains per-client request limits for the gateway
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// CORSConfig contains the browser origins allowed to call the gateway
type CORSConfig struct {
	AllowedOrigins []string
}

// validate performs comprehensive validation of all configuration values,
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
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.SyncEventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_SYNC_EVENTS_TOPIC is required")
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
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
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
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	validationErrors = append(validationErrors, c.Ledger.validate()...)

	// Validate Retry config
	if c.Retry.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "RETRY_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Retry.Backoff <= 0 {
		validationErrors = append(validationErrors, "RETRY_BACKOFF must be greater than 0")
	}

	// Validate system of record config
	if c.SystemOfRecord.BaseURL == "" {
		validationErrors = append(validationErrors, "SOR_BASE_URL is required")
	}
	if c.SystemOfRecord.Timeout <= 0 {
		validationErrors = append(validationErrors, "SOR_TIMEOUT must be greater than 0")
	}

	// Validate Audit config
	if c.Audit.SweepInterval <= 0 {
		validationErrors = append(validationErrors, "AUDIT_SWEEP_INTERVAL must be greater than 0")
	}
	if c.Audit.BatchSize <= 0 {
		validationErrors = append(validationErrors, "AUDIT_BATCH_SIZE must be greater than 0")
	}
	if c.Audit.StaleAfter <= 0 {
		validationErrors = append(validationErrors, "AUDIT_STALE_AFTER must be greater than 0")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			validationErrors = append(validationErrors, "RATE_LIMIT_RPS must be greater than 0")
		}
		if c.RateLimit.Burst <= 0 {
			validationErrors = append(validationErrors, "RATE_LIMIT_BURST must be greater than 0")
		}
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

func (l LedgerConfig) validate() []string {
	var validationErrors []string

	if l.GasBufferPercent < 1 || l.GasBufferPercent > maxGasBufferPercent {
		validationErrors = append(validationErrors, fmt.Sprintf("LEDGER_GAS_BUFFER_PERCENT must be between 1 and %d", maxGasBufferPercent))
	}

	switch l.Mode {
	case LedgerModeMemory:
		return validationErrors
	case LedgerModeRPC:
	default:
		return append(validationErrors, fmt.Sprintf("LEDGER_MODE must be %q or %q", LedgerModeRPC, LedgerModeMemory))
	}

	if l.RPCURL == "" {
		validationErrors = append(validationErrors, "LEDGER_RPC_URL is required")
	}
	if l.ChainID <= 0 {
		validationErrors = append(validationErrors, "LEDGER_CHAIN_ID must be greater than 0")
	}
	if !common.IsHexAddress(l.ContractAddress) {
		validationErrors = append(validationErrors, "LEDGER_CONTRACT_ADDRESS must be a hex address")
	}
	if l.PrivateKey == "" {
		validationErrors = append(validationErrors, "LEDGER_PRIVATE_KEY is required")
	}
	if l.ReceiptTimeout <= 0 {
		validationErrors = append(validationErrors, "LEDGER_RECEIPT_TIMEOUT must be greater than 0")
	}
	if l.CallTimeout <= 0 {
		validationErrors = append(validationErrors, "LEDGER_CALL_TIMEOUT must be greater than 0")
	}
	return validationErrors
}
