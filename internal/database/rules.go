package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailsift/mailsift/internal/models"
)

// RuleRepository handles rule table database operations
type RuleRepository struct {
	db *DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// GetAll retrieves every rule, ordered by sender
func (r *RuleRepository) GetAll(ctx context.Context) ([]*models.Rule, error) {
	query := `
		SELECT sender, label, created_at, updated_at
		FROM rules
		ORDER BY sender
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []*models.Rule
	for rows.Next() {
		rule := &models.Rule{}
		if err := rows.Scan(&rule.Sender, &rule.Label, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return rules, nil
}

// Upsert creates or replaces the rule for a sender (last write wins)
func (r *RuleRepository) Upsert(ctx context.Context, sender string, label models.Label) error {
	query := `
		INSERT INTO rules (sender, label, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (sender) DO UPDATE
		SET label = EXCLUDED.label, updated_at = EXCLUDED.updated_at
	`

	sender = strings.ToLower(strings.TrimSpace(sender))
	if sender == "" {
		return fmt.Errorf("rule sender must not be empty")
	}

	if _, err := r.db.ExecContext(ctx, query, sender, label, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert rule: %w", err)
	}
	return nil
}

// Count returns the number of rules
func (r *RuleRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return count, nil
}
