// Package classifier wraps the external text-classification service behind a
// narrow interface. The pipeline treats it as a black box: one request per
// item, a structured result back, and any failure is soft (the item is simply
// skipped this run).
package classifier

import (
	"context"

	"github.com/go-playground/validator/v10"
)

// Request carries everything the classification service sees about one item.
type Request struct {
	AllowedLabels []string
	Sender        string
	Subject       string
	BodyPreview   string
}

// Result is the structured classification outcome. The schema is strict:
// responses that fail validation are soft failures, never partial results.
// SuggestedLabel and the boolean flags are informational only; the pipeline
// acts solely on PrimaryLabel.
type Result struct {
	PrimaryLabel           string `json:"primaryLabel" validate:"required"`
	SuggestedLabel         string `json:"suggestedLabel,omitempty"`
	Reasoning              string `json:"reasoning" validate:"required"`
	HasImportantAttachment bool   `json:"hasImportantAttachment,omitempty"`
	CanUnsubscribe         bool   `json:"canUnsubscribe,omitempty"`
}

// Classifier is the interface for classification providers
type Classifier interface {
	// Classify issues one classification call for a single item.
	Classify(ctx context.Context, req Request) (*Result, error)
}

var validate = validator.New()

// validateResult enforces the response schema. Shapes the service is not
// contracted to produce map to a soft failure rather than leaking through.
func validateResult(res *Result) error {
	if err := validate.Struct(res); err != nil {
		return &SoftFailureError{Reason: "response failed schema validation", Err: err}
	}
	return nil
}
