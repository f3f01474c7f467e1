package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailsift/mailsift/internal/models"
)

// RunLogRepository handles the append-only run history
type RunLogRepository struct {
	db *DB
}

// NewRunLogRepository creates a new run log repository
func NewRunLogRepository(db *DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

// Append adds one historical record for a completed run. Label and API-call
// breakdowns are stored as JSONB so new labels or services never require a
// schema change.
func (r *RunLogRepository) Append(ctx context.Context, summary *models.RunSummary) error {
	query := `
		INSERT INTO run_logs (
			run_date, stop_reason, total_processed, batches,
			most_frequent_sender, average_batch_seconds, total_runtime_seconds,
			final_daily_count, label_counts, api_call_counts, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	labelCountsJSON, err := json.Marshal(summary.LabelCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal label_counts: %w", err)
	}
	apiCallCountsJSON, err := json.Marshal(summary.APICallCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal api_call_counts: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		summary.Date,
		summary.StopReason,
		summary.TotalProcessed,
		summary.Batches,
		summary.MostFrequentSender,
		summary.AverageBatchSeconds,
		summary.TotalRuntimeSeconds,
		summary.FinalDailyCount,
		labelCountsJSON,
		apiCallCountsJSON,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent run summaries, newest first
func (r *RunLogRepository) Recent(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	query := `
		SELECT run_date, stop_reason, total_processed, batches,
			most_frequent_sender, average_batch_seconds, total_runtime_seconds,
			final_daily_count, label_counts, api_call_counts
		FROM run_logs
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []*models.RunSummary
	for rows.Next() {
		s := &models.RunSummary{}
		var labelCountsJSON, apiCallCountsJSON []byte
		if err := rows.Scan(
			&s.Date, &s.StopReason, &s.TotalProcessed, &s.Batches,
			&s.MostFrequentSender, &s.AverageBatchSeconds, &s.TotalRuntimeSeconds,
			&s.FinalDailyCount, &labelCountsJSON, &apiCallCountsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		if len(labelCountsJSON) > 0 {
			if err := json.Unmarshal(labelCountsJSON, &s.LabelCounts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal label_counts: %w", err)
			}
		}
		if len(apiCallCountsJSON) > 0 {
			if err := json.Unmarshal(apiCallCountsJSON, &s.APICallCounts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal api_call_counts: %w", err)
			}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run logs: %w", err)
	}

	return summaries, nil
}
