package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mailsift/mailsift/internal/cache"
	"github.com/mailsift/mailsift/internal/database"
	"github.com/mailsift/mailsift/internal/models"
	"go.uber.org/zap"
)

const rulesCacheKey = "rules_cache"

// RuleTable is the sender-to-label rule map, loaded once per run through a
// TTL cache so repeated runs within the window skip the database read.
type RuleTable struct {
	repo   database.RuleRepositoryInterface
	cache  cache.Store
	ttl    time.Duration
	logger *zap.Logger

	rules map[string]models.Label
}

// NewRuleTable creates a new rule table
func NewRuleTable(repo database.RuleRepositoryInterface, store cache.Store, ttl time.Duration, logger *zap.Logger) *RuleTable {
	return &RuleTable{
		repo:   repo,
		cache:  store,
		ttl:    ttl,
		logger: logger,
		rules:  make(map[string]models.Label),
	}
}

// Load populates the in-memory rule map, preferring the cached snapshot and
// falling back to the database. The fallback read costs one ledger-store
// call, tallied against state when one is provided. A load failure leaves
// the table empty; the pipeline degrades to cache and classifier tiers
// rather than aborting.
func (t *RuleTable) Load(ctx context.Context, state *RunState) error {
	if cached, ok, err := t.cache.Get(ctx, rulesCacheKey); err == nil && ok {
		var rules map[string]models.Label
		if err := json.Unmarshal([]byte(cached), &rules); err == nil {
			t.rules = rules
			return nil
		}
		t.logger.Warn("rules_cache_corrupt_reloading")
	}

	if state != nil {
		state.CountCall(ServiceLedgerStore)
	}
	stored, err := t.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	rules := make(map[string]models.Label, len(stored))
	for _, r := range stored {
		rules[strings.ToLower(r.Sender)] = r.Label
	}
	t.rules = rules

	if encoded, err := json.Marshal(rules); err == nil {
		if err := t.cache.Put(ctx, rulesCacheKey, string(encoded), t.ttl); err != nil {
			t.logger.Warn("rules_cache_write_failed", zap.Error(err))
		}
	}

	t.logger.Info("rules_loaded", zap.Int("count", len(rules)))
	return nil
}

// Lookup returns the rule label for a sender, case-insensitively.
func (t *RuleTable) Lookup(sender string) (models.Label, bool) {
	label, ok := t.rules[strings.ToLower(sender)]
	return label, ok
}

// Len returns the number of loaded rules.
func (t *RuleTable) Len() int {
	return len(t.rules)
}

// Add persists a new rule and invalidates the cached snapshot so the next
// load sees it.
func (t *RuleTable) Add(ctx context.Context, sender string, label models.Label) error {
	if err := t.repo.Upsert(ctx, sender, label); err != nil {
		return err
	}
	if err := t.cache.Remove(ctx, rulesCacheKey); err != nil {
		t.logger.Warn("rules_cache_invalidate_failed", zap.Error(err))
	}
	t.rules[strings.ToLower(sender)] = label
	return nil
}
