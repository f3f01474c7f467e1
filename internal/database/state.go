package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Keys used in the app_state table.
const (
	StateKeyLastRunDate    = "last_run_date"
	StateKeyDailyCallCount = "daily_api_call_count"
	StateKeyLastRunSummary = "last_run_summary"
)

// StateRepository handles the persisted key-value state (daily quota counter,
// last-run date, serialized last-run summary for the dashboard).
type StateRepository struct {
	db *DB
}

// NewStateRepository creates a new state repository
func NewStateRepository(db *DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the value for key. A missing key returns ("", nil).
func (r *StateRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get state %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value
func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO app_state (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to set state %q: %w", key, err)
	}
	return nil
}
