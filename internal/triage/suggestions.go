package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailsift/mailsift/internal/cache"
	"github.com/mailsift/mailsift/internal/database"
	"github.com/mailsift/mailsift/internal/logger"
	"github.com/mailsift/mailsift/internal/mailstore"
	"github.com/mailsift/mailsift/internal/models"
	"go.uber.org/zap"
)

// RejectionCache suppresses re-proposing a sender/label pair the user has
// already turned down. Entries age out so a pattern that persists for weeks
// eventually resurfaces.
type RejectionCache struct {
	store cache.Store
	ttl   time.Duration
}

// NewRejectionCache creates a new rejection cache
func NewRejectionCache(store cache.Store, ttl time.Duration) *RejectionCache {
	return &RejectionCache{store: store, ttl: ttl}
}

func rejectionKey(sender string, label models.Label) string {
	return "rejected:" + strings.ToLower(sender) + ":" + string(label)
}

// IsRejected reports whether the pair was rejected within the TTL window.
// Cache errors degrade to "not rejected".
func (c *RejectionCache) IsRejected(ctx context.Context, sender string, label models.Label) bool {
	_, ok, err := c.store.Get(ctx, rejectionKey(sender, label))
	return err == nil && ok
}

// Reject records a rejection for the pair.
func (c *RejectionCache) Reject(ctx context.Context, sender string, label models.Label) error {
	return c.store.Put(ctx, rejectionKey(sender, label), "1", c.ttl)
}

// SuggestionEngine mines human corrections into rule proposals. An item that
// still carries the review sentinel plus exactly one other vocabulary label
// was corrected by hand; enough corrections of the same sender to the same
// label become a suggestion.
type SuggestionEngine struct {
	mail       mailstore.Store
	rules      *RuleTable
	repo       database.SuggestionRepositoryInterface
	rejections *RejectionCache
	logger     *zap.Logger

	threshold int
	scanLimit int
}

// NewSuggestionEngine creates a new suggestion engine
func NewSuggestionEngine(mail mailstore.Store, rules *RuleTable, repo database.SuggestionRepositoryInterface, rejections *RejectionCache, threshold, scanLimit int, log *zap.Logger) *SuggestionEngine {
	return &SuggestionEngine{
		mail:       mail,
		rules:      rules,
		repo:       repo,
		rejections: rejections,
		logger:     log,
		threshold:  threshold,
		scanLimit:  scanLimit,
	}
}

// Run scans recent review-sentinel items, tallies corrections, and persists
// one suggestion per sender/label pair that meets the threshold. Pairs
// already covered by a rule, an existing suggestion, or a recent rejection
// are skipped.
func (e *SuggestionEngine) Run(ctx context.Context, state *RunState) error {
	state.CountCall(ServiceMailStore)
	metas, err := e.mail.SearchByLabel(ctx, string(models.LabelNeedsReview), e.scanLimit)
	if err != nil {
		return fmt.Errorf("failed to scan review items: %w", err)
	}

	type pair struct {
		sender string
		label  models.Label
	}
	tallies := make(map[pair]int)

	for _, meta := range metas {
		item := models.Item{
			Sender: models.NormalizeSender(meta.Sender),
			Labels: toLabels(meta.Labels),
		}
		corrected, ok := item.CorrectedLabel()
		if !ok || item.Sender == "" {
			continue
		}
		tallies[pair{item.Sender, corrected}]++
	}

	created := 0
	for p, count := range tallies {
		if count < e.threshold {
			continue
		}
		if _, ok := e.rules.Lookup(p.sender); ok {
			continue
		}
		if e.rejections.IsRejected(ctx, p.sender, p.label) {
			continue
		}
		state.CountCall(ServiceLedgerStore)
		exists, err := e.repo.Exists(ctx, p.sender, p.label)
		if err != nil {
			return fmt.Errorf("failed to check existing suggestion: %w", err)
		}
		if exists {
			continue
		}

		suggestion := &models.Suggestion{
			Sender:   p.sender,
			Label:    p.label,
			Evidence: fmt.Sprintf("You've made this correction %d times.", count),
		}
		state.CountCall(ServiceLedgerStore)
		if err := e.repo.Create(ctx, suggestion); err != nil {
			return fmt.Errorf("failed to create suggestion: %w", err)
		}
		created++

		e.logger.Info("rule_suggestion_created",
			zap.String("sender", logger.SanitizeSender(p.sender)),
			zap.String("label", string(p.label)),
			zap.Int("corrections", count),
		)
	}

	if created > 0 || len(tallies) > 0 {
		e.logger.Info("suggestion_scan_finished",
			zap.Int("scanned", len(metas)),
			zap.Int("created", created),
		)
	}
	return nil
}

func toLabels(names []string) []models.Label {
	out := make([]models.Label, len(names))
	for i, n := range names {
		out[i] = models.Label(n)
	}
	return out
}
