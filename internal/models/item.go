package models

import (
	"regexp"
	"strings"
)

// Item is one unit of triage work: an inbox thread as seen by the pipeline.
type Item struct {
	ID       string  `json:"id"`
	Sender   string  `json:"sender"` // normalized address, not the display form
	Subject  string  `json:"subject"`
	Preview  string  `json:"preview"`
	Labels   []Label `json:"labels"`
	Archived bool    `json:"archived"`
}

var angleAddr = regexp.MustCompile(`<([^<>]+)>`)

// NormalizeSender extracts the bare address from a From header value such as
// `"Acme Billing" <billing@acme.com>` and lowercases it. A value with no
// angle-bracketed address is returned lowercased as-is.
func NormalizeSender(from string) string {
	if m := angleAddr.FindStringSubmatch(from); m != nil {
		from = m[1]
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// HasVocabularyLabel reports whether the item already carries any label from
// the fixed vocabulary. Such items are never re-triaged.
func (i *Item) HasVocabularyLabel() bool {
	for _, l := range i.Labels {
		if IsVocabulary(string(l)) {
			return true
		}
	}
	return false
}

// CorrectedLabel returns the first non-sentinel vocabulary label on an item
// that also bears the review sentinel, meaning a human re-labeled it.
// The second return is false when no correction is present.
func (i *Item) CorrectedLabel() (Label, bool) {
	hasSentinel := false
	var corrected Label
	for _, l := range i.Labels {
		if l == LabelNeedsReview {
			hasSentinel = true
			continue
		}
		if corrected == "" && IsVocabulary(string(l)) {
			corrected = l
		}
	}
	if !hasSentinel || corrected == "" {
		return "", false
	}
	return corrected, true
}
