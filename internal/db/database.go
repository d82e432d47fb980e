// Package db provides PostgreSQL database access for the log intelligence
// backend.
//
// This file implements the core database connection and lifecycle
// management: connection pooling, schema migration, and configuration
// validation. It is component B's row store — the source of truth for
// LogEntry and Prediction rows, and the backing store for users and the
// reindex queue.
package db

import (
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"github.com/logintel/backend/internal/config"
	"github.com/logintel/backend/internal/observability"
)

// Config is the subset of connection parameters needed to open a database,
// validated separately from the rest of the application config so it can be
// constructed directly in tests.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ConfigFromAppConfig adapts the application-wide config into db.Config.
func ConfigFromAppConfig(cfg *config.Config) Config {
	return Config{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		DBName:   cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}
}

var (
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-.]{0,253}[a-zA-Z0-9])?$`)
	identPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func validateConfig(cfg Config) error {
	if cfg.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if net.ParseIP(cfg.Host) == nil && !hostnamePattern.MatchString(cfg.Host) {
		return fmt.Errorf("invalid database host: %s", cfg.Host)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", cfg.Port)
	}
	if !identPattern.MatchString(cfg.User) {
		return fmt.Errorf("invalid database user: %s", cfg.User)
	}
	if !identPattern.MatchString(cfg.DBName) {
		return fmt.Errorf("invalid database name: %s", cfg.DBName)
	}
	switch cfg.SSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("invalid SSL mode: %s", cfg.SSLMode)
	}
	if cfg.SSLMode == "disable" {
		observability.Database().Warn().Msg("database connection running with sslmode=disable")
	}
	return nil
}

// Database wraps a pooled *sql.DB.
type Database struct {
	db *sql.DB
}

// NewDatabase validates cfg, opens a pooled connection, and verifies
// connectivity with a ping.
func NewDatabase(cfg Config) (*Database, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	observability.Database().Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("connected to database")

	return &Database{db: sqlDB}, nil
}

// NewDatabaseForTesting wraps an already-opened *sql.DB (typically a
// sqlmock connection). Test-only: production code always goes through
// NewDatabase so config validation runs.
func NewDatabaseForTesting(sqlDB *sql.DB) *Database {
	return &Database{db: sqlDB}
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// DB exposes the underlying *sql.DB for packages that issue their own
// queries (logs.go, predictions.go, users.go).
func (d *Database) DB() *sql.DB {
	return d.db
}

// Migrate creates the schema if it does not already exist. Every statement
// is idempotent so Migrate can run on every process start.
func (d *Database) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username VARCHAR(64) UNIQUE NOT NULL,
			email VARCHAR(254) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(16) NOT NULL DEFAULT 'viewer',
			permissions TEXT[] NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT true,
			is_verified BOOLEAN NOT NULL DEFAULT false,
			last_login TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,

		`CREATE TABLE IF NOT EXISTS log_entries (
			internal_id BIGSERIAL PRIMARY KEY,
			external_id VARCHAR(128) NOT NULL,
			"timestamp" TIMESTAMPTZ NOT NULL,
			level VARCHAR(8) NOT NULL,
			message TEXT NOT NULL,
			source_type VARCHAR(16) NOT NULL,
			raw_log TEXT NOT NULL,

			host VARCHAR(255),
			service VARCHAR(255),
			category VARCHAR(255),
			tags TEXT[],
			structured_data JSONB,

			request_id VARCHAR(128),
			session_id VARCHAR(128),
			correlation_id VARCHAR(128),
			ip_address VARCHAR(64),

			http_method VARCHAR(16),
			http_status INTEGER,
			endpoint VARCHAR(512),
			response_time_ms DOUBLE PRECISION,
			application_type VARCHAR(64),
			framework VARCHAR(64),

			transaction_code VARCHAR(32),
			sap_system VARCHAR(32),
			sap_client VARCHAR(8),
			sap_message_type VARCHAR(4),
			sap_severity INTEGER,
			business_data JSONB,

			is_anomaly BOOLEAN NOT NULL DEFAULT false,
			anomaly_type VARCHAR(64),
			performance_metrics JSONB,
			error_details TEXT,

			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

			CONSTRAINT chk_http_status CHECK (http_status IS NULL OR (http_status >= 100 AND http_status <= 599)),
			CONSTRAINT chk_response_time CHECK (response_time_ms IS NULL OR response_time_ms >= 0),
			CONSTRAINT chk_timestamp_order CHECK ("timestamp" <= created_at)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_log_entries_external_id ON log_entries(external_id)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp ON log_entries("timestamp" DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_level ON log_entries(level)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_source_type ON log_entries(source_type)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_request_id ON log_entries(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_session_id ON log_entries(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_correlation_id ON log_entries(correlation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_ip_address ON log_entries(ip_address)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_host_service ON log_entries(host, service)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_message_fts ON log_entries USING gin(to_tsvector('english', message))`,

		`CREATE TABLE IF NOT EXISTS ml_predictions (
			log_internal_id BIGINT PRIMARY KEY REFERENCES log_entries(internal_id) ON DELETE CASCADE,
			predicted_level VARCHAR(8) NOT NULL,
			level_confidence DOUBLE PRECISION NOT NULL,
			is_anomaly BOOLEAN NOT NULL DEFAULT false,
			anomaly_score DOUBLE PRECISION NOT NULL,
			anomaly_confidence DOUBLE PRECISION NOT NULL,
			severity VARCHAR(16) NOT NULL,
			model_version VARCHAR(64) NOT NULL,
			predicted_at TIMESTAMPTZ NOT NULL DEFAULT now(),

			CONSTRAINT chk_level_confidence CHECK (level_confidence >= 0 AND level_confidence <= 1),
			CONSTRAINT chk_anomaly_score CHECK (anomaly_score >= 0 AND anomaly_score <= 1),
			CONSTRAINT chk_anomaly_confidence CHECK (anomaly_confidence >= 0 AND anomaly_confidence <= 1)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ml_predictions_predicted_at ON ml_predictions(predicted_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ml_predictions_severity ON ml_predictions(severity)`,

		`CREATE TABLE IF NOT EXISTS reindex_queue (
			id BIGSERIAL PRIMARY KEY,
			external_id VARCHAR(128) NOT NULL,
			log_internal_id BIGINT NOT NULL,
			reason TEXT,
			enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			dequeued_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reindex_queue_pending ON reindex_queue(enqueued_at) WHERE dequeued_at IS NULL`,
	}

	for _, stmt := range statements {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\nstatement: %s", err, stmt)
		}
	}

	observability.Database().Info().Int("statements", len(statements)).Msg("schema migration complete")
	return nil
}
