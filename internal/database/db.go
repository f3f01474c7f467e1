package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// postgres driver
	_ "github.com/lib/pq"
)

// DB wraps the sql database handle
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// EnsureSchema creates missing tables on demand. The store is shared with the
// dashboard, so the pipeline must be able to bootstrap a fresh database.
func (db *DB) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rules (
			sender TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS rule_suggestions (
			id UUID PRIMARY KEY,
			sender TEXT NOT NULL,
			label TEXT NOT NULL,
			evidence TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (sender, label)
		)`,
		`CREATE TABLE IF NOT EXISTS run_logs (
			id BIGSERIAL PRIMARY KEY,
			run_date TEXT NOT NULL,
			stop_reason TEXT NOT NULL,
			total_processed INTEGER NOT NULL,
			batches INTEGER NOT NULL,
			most_frequent_sender TEXT NOT NULL DEFAULT 'N/A',
			average_batch_seconds DOUBLE PRECISION NOT NULL,
			total_runtime_seconds DOUBLE PRECISION NOT NULL,
			final_daily_count INTEGER NOT NULL,
			label_counts JSONB NOT NULL DEFAULT '{}',
			api_call_counts JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS app_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
