package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/mailsift/mailsift/internal/models"
)

// RuleRepositoryInterface defines the interface for rule repository operations
// This interface enables better testability by allowing mock implementations
type RuleRepositoryInterface interface {
	GetAll(ctx context.Context) ([]*models.Rule, error)
	Upsert(ctx context.Context, sender string, label models.Label) error
	Count(ctx context.Context) (int, error)
}

// SuggestionRepositoryInterface defines the interface for suggestion repository operations
type SuggestionRepositoryInterface interface {
	GetAll(ctx context.Context) ([]*models.Suggestion, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Suggestion, error)
	Exists(ctx context.Context, sender string, label models.Label) (bool, error)
	Create(ctx context.Context, s *models.Suggestion) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunLogRepositoryInterface defines the interface for run log repository operations
type RunLogRepositoryInterface interface {
	Append(ctx context.Context, summary *models.RunSummary) error
	Recent(ctx context.Context, limit int) ([]*models.RunSummary, error)
}

// StateRepositoryInterface defines the interface for key-value state operations
type StateRepositoryInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Ensure concrete types implement the interfaces
var (
	_ RuleRepositoryInterface       = (*RuleRepository)(nil)
	_ SuggestionRepositoryInterface = (*SuggestionRepository)(nil)
	_ RunLogRepositoryInterface     = (*RunLogRepository)(nil)
	_ StateRepositoryInterface      = (*StateRepository)(nil)
)
