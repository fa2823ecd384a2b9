// Package postgres provides production store adapters backed by PostgreSQL.
// The quota adapter satisfies the atomic count-then-record contract with a
// per-key advisory lock held for the check-and-insert transaction; the audit
// adapter is append-only.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glazeworks/actiongate/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Wrap adapts an existing sql.DB (used by tests with sqlmock).
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// InitSchema initializes the gate schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Quota call ledger, one row per allowed execution
		CREATE TABLE IF NOT EXISTS quota_calls (
			id BIGSERIAL PRIMARY KEY,
			capability_id VARCHAR(255) NOT NULL,
			actor_id VARCHAR(255) NOT NULL,
			called_at TIMESTAMP NOT NULL
		);

		-- Append-only audit event log; rows are never updated or deleted
		CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			at TIMESTAMP NOT NULL,
			action VARCHAR(255) NOT NULL,
			actor_id VARCHAR(255) NOT NULL,
			owner_uid VARCHAR(255) NOT NULL,
			tenant_id VARCHAR(255),
			capability_id VARCHAR(255) NOT NULL,
			proposal_id UUID,
			input_hash VARCHAR(64),
			output_hash VARCHAR(64),
			decision_reason_code VARCHAR(50),
			approval_state VARCHAR(20)
		);

		-- Exemptions, authored by policy administration tooling
		CREATE TABLE IF NOT EXISTS exemptions (
			id UUID PRIMARY KEY,
			capability_id VARCHAR(255) NOT NULL,
			owner_uid VARCHAR(255) NOT NULL,
			justification TEXT NOT NULL,
			approved_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL,
			status VARCHAR(20) NOT NULL
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_quota_calls_key ON quota_calls(capability_id, actor_id, called_at);
		CREATE INDEX IF NOT EXISTS idx_audit_events_at ON audit_events(at);
		CREATE INDEX IF NOT EXISTS idx_audit_events_capability_id ON audit_events(capability_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_actor_id ON audit_events(actor_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_proposal_id ON audit_events(proposal_id);
		CREATE INDEX IF NOT EXISTS idx_exemptions_owner ON exemptions(capability_id, owner_uid);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// InitAuditSchema initializes the audit_events table only. Use for the
// separate audit database when DATABASE_URL_AUDIT is set.
func (db *DB) InitAuditSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			at TIMESTAMP NOT NULL,
			action VARCHAR(255) NOT NULL,
			actor_id VARCHAR(255) NOT NULL,
			owner_uid VARCHAR(255) NOT NULL,
			tenant_id VARCHAR(255),
			capability_id VARCHAR(255) NOT NULL,
			proposal_id UUID,
			input_hash VARCHAR(64),
			output_hash VARCHAR(64),
			decision_reason_code VARCHAR(50),
			approval_state VARCHAR(20)
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_at ON audit_events(at);
		CREATE INDEX IF NOT EXISTS idx_audit_events_capability_id ON audit_events(capability_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_actor_id ON audit_events(actor_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_proposal_id ON audit_events(proposal_id);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	db.logger.Info("audit database schema initialized successfully")
	return nil
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}
