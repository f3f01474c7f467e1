package models

// Label is one category from the fixed vocabulary applied to inbox items.
type Label string

const (
	LabelActionRequired Label = "[Action Required]"
	LabelFinance        Label = "Finance"
	LabelPurchases      Label = "Purchases"
	LabelSubscriptions  Label = "Subscriptions"
	LabelPromotions     Label = "Promotions"
	LabelSocial         Label = "Social"
	LabelPersonal       Label = "Personal"
	// LabelNeedsReview is the catch-all sentinel for items the classifier
	// could not place with confidence. Human re-labeling of these items
	// feeds the suggestion engine.
	LabelNeedsReview Label = "Needs Review"
)

// Tally keys tracked alongside the label vocabulary in run statistics.
const (
	TallyViaRule  = "Via Rule"
	TallyViaCache = "Via Cache"
)

var vocabulary = []Label{
	LabelActionRequired,
	LabelFinance,
	LabelPurchases,
	LabelSubscriptions,
	LabelPromotions,
	LabelSocial,
	LabelPersonal,
	LabelNeedsReview,
}

// Vocabulary returns the fixed label vocabulary in display order.
func Vocabulary() []Label {
	out := make([]Label, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// VocabularyNames returns the vocabulary as plain strings, for prompts and queries.
func VocabularyNames() []string {
	out := make([]string, len(vocabulary))
	for i, l := range vocabulary {
		out[i] = string(l)
	}
	return out
}

// IsVocabulary reports whether name is one of the allowed labels.
func IsVocabulary(name string) bool {
	for _, l := range vocabulary {
		if string(l) == name {
			return true
		}
	}
	return false
}
