package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailsift/mailsift/internal/models"
)

// SuggestionRepository handles rule suggestion database operations
type SuggestionRepository struct {
	db *DB
}

// NewSuggestionRepository creates a new suggestion repository
func NewSuggestionRepository(db *DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// GetAll retrieves all pending suggestions, oldest first
func (r *SuggestionRepository) GetAll(ctx context.Context) ([]*models.Suggestion, error) {
	query := `
		SELECT id, sender, label, evidence, created_at
		FROM rule_suggestions
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var suggestions []*models.Suggestion
	for rows.Next() {
		s := &models.Suggestion{}
		if err := rows.Scan(&s.ID, &s.Sender, &s.Label, &s.Evidence, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate suggestions: %w", err)
	}

	return suggestions, nil
}

// GetByID retrieves a single suggestion
func (r *SuggestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Suggestion, error) {
	s := &models.Suggestion{}
	query := `
		SELECT id, sender, label, evidence, created_at
		FROM rule_suggestions
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Sender, &s.Label, &s.Evidence, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("suggestion not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return s, nil
}

// Exists reports whether a pending suggestion already covers (sender, label)
func (r *SuggestionRepository) Exists(ctx context.Context, sender string, label models.Label) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM rule_suggestions WHERE sender = $1 AND label = $2)`

	if err := r.db.QueryRowContext(ctx, query, sender, label).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check suggestion existence: %w", err)
	}
	return exists, nil
}

// Create persists a new suggestion. A concurrent duplicate for the same
// (sender, label) pair is swallowed by the unique constraint.
func (r *SuggestionRepository) Create(ctx context.Context, s *models.Suggestion) error {
	query := `
		INSERT INTO rule_suggestions (id, sender, label, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sender, label) DO NOTHING
	`

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	if _, err := r.db.ExecContext(ctx, query, s.ID, s.Sender, s.Label, s.Evidence, s.CreatedAt); err != nil {
		return fmt.Errorf("failed to create suggestion: %w", err)
	}
	return nil
}

// Delete removes a suggestion
func (r *SuggestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rule_suggestions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete suggestion: %w", err)
	}
	return nil
}
