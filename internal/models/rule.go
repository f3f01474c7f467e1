package models

import (
	"time"

	"github.com/google/uuid"
)

// Rule maps a sender address to a label, bypassing the classifier entirely.
// Rules are unique per sender; updating a sender's rule replaces the old one.
type Rule struct {
	Sender    string    `json:"sender"`
	Label     Label     `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Suggestion is a proposed rule mined from repeated human corrections.
// It persists until approved (promoted into the rule table) or rejected.
type Suggestion struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Label     Label     `json:"label"`
	Evidence  string    `json:"evidence"`
	CreatedAt time.Time `json:"created_at"`
}
