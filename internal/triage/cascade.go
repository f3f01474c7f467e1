package triage

import (
	"context"
	"fmt"

	"github.com/mailsift/mailsift/internal/logger"
	"github.com/mailsift/mailsift/internal/mailstore"
	"github.com/mailsift/mailsift/internal/models"
	"github.com/mailsift/mailsift/internal/services/classifier"
	"go.uber.org/zap"
)

// Cascade resolves one item through the three classification tiers in cost
// order: sender rule, cached decision, external classifier. The first tier
// that produces a label wins and the rest are skipped.
type Cascade struct {
	mail       mailstore.Store
	rules      *RuleTable
	decisions  *DecisionCache
	classifier classifier.Classifier
	logger     *zap.Logger
}

// NewCascade creates a new classification cascade
func NewCascade(mail mailstore.Store, rules *RuleTable, decisions *DecisionCache, clf classifier.Classifier, log *zap.Logger) *Cascade {
	return &Cascade{
		mail:       mail,
		rules:      rules,
		decisions:  decisions,
		classifier: clf,
		logger:     log,
	}
}

// Process triages one item end to end: classify, label, archive, tally.
// It returns whether the item was fully processed. Classification failures
// are soft (false, nil): the item stays in the inbox unlabeled and is picked
// up by a later run. Mail store failures are hard errors that end the run.
func (c *Cascade) Process(ctx context.Context, state *RunState, meta *mailstore.Metadata) (bool, error) {
	sender := models.NormalizeSender(meta.Sender)
	state.CountSender(sender)

	// Tier 1: sender rule.
	if label, ok := c.rules.Lookup(sender); ok {
		if err := c.applyAndArchive(ctx, state, meta.ID, label); err != nil {
			return false, err
		}
		state.CountLabel(models.TallyViaRule)
		c.logger.Debug("item_labeled_via_rule",
			zap.String("sender", logger.SanitizeSender(sender)),
			zap.String("label", string(label)),
		)
		return true, nil
	}

	// Tier 2: cached decision.
	if d, ok := c.decisions.Get(ctx, sender, meta.Subject); ok {
		if err := c.applyAndArchive(ctx, state, meta.ID, d.Label); err != nil {
			return false, err
		}
		state.CountLabel(models.TallyViaCache)
		c.logger.Debug("item_labeled_via_cache",
			zap.String("sender", logger.SanitizeSender(sender)),
			zap.String("label", string(d.Label)),
		)
		return true, nil
	}

	// Tier 3: external classifier. The call is counted even when it fails,
	// since the quota is spent either way.
	state.CountCall(ServiceClassifier)
	result, err := c.classifier.Classify(ctx, classifier.Request{
		AllowedLabels: models.VocabularyNames(),
		Sender:        sender,
		Subject:       meta.Subject,
		BodyPreview:   meta.Preview,
	})
	if err != nil {
		if classifier.IsSoftFailure(err) {
			c.logger.Warn("classification_soft_failure",
				zap.String("sender", logger.SanitizeSender(sender)),
				zap.Error(err),
			)
			return false, nil
		}
		return false, fmt.Errorf("classifier call failed: %w", err)
	}

	if !models.IsVocabulary(result.PrimaryLabel) {
		c.logger.Warn("classification_label_out_of_vocabulary",
			zap.String("sender", logger.SanitizeSender(sender)),
			zap.String("primary_label", result.PrimaryLabel),
		)
		return false, nil
	}

	label := models.Label(result.PrimaryLabel)
	if err := c.applyAndArchive(ctx, state, meta.ID, label); err != nil {
		return false, err
	}

	c.decisions.Put(ctx, sender, meta.Subject, &Decision{
		Label:     label,
		Reasoning: result.Reasoning,
	})

	if result.SuggestedLabel != "" {
		c.logger.Debug("classifier_suggested_new_label",
			zap.String("sender", logger.SanitizeSender(sender)),
			zap.String("suggested_label", result.SuggestedLabel),
		)
	}

	return true, nil
}

// applyAndArchive labels the item, removes it from the inbox, and tallies.
// Both calls hit the mail store so each counts against the call budget.
func (c *Cascade) applyAndArchive(ctx context.Context, state *RunState, id string, label models.Label) error {
	state.CountCall(ServiceMailStore)
	if err := c.mail.AddLabel(ctx, id, string(label)); err != nil {
		return fmt.Errorf("failed to label item: %w", err)
	}

	state.CountCall(ServiceMailStore)
	if err := c.mail.Archive(ctx, id); err != nil {
		return fmt.Errorf("failed to archive item: %w", err)
	}

	state.CountLabel(string(label))
	return nil
}
