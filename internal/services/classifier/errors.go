package classifier

import (
	"errors"
	"fmt"
	"strings"
)

// SoftFailureError marks a classification failure that affects only the
// current item: non-success status, malformed JSON, or a schema violation.
// The run continues and the item is retried naturally on a later invocation.
type SoftFailureError struct {
	Reason string
	Err    error
}

func (e *SoftFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification soft failure: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classification soft failure: %s", e.Reason)
}

func (e *SoftFailureError) Unwrap() error {
	return e.Err
}

// IsSoftFailure reports whether err is a per-item classification failure.
func IsSoftFailure(err error) bool {
	var soft *SoftFailureError
	return errors.As(err, &soft)
}

// IsQuotaError checks if an error indicates provider quota exhaustion, used
// only to make log lines actionable. Quota enforcement itself lives in the
// pipeline's own ledger.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "insufficient_quota") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "billing")
}

// IsRateLimitError checks if an error is a provider rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}
