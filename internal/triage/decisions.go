package triage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mailsift/mailsift/internal/cache"
	"github.com/mailsift/mailsift/internal/models"
	"go.uber.org/zap"
)

// Decision is one cached classification outcome, reusable for items with the
// same sender and near-identical subject.
type Decision struct {
	Label     models.Label `json:"label"`
	Reasoning string       `json:"reasoning"`
}

// DecisionCache short-circuits classifier calls for repeated sender/subject
// shapes within the TTL window.
type DecisionCache struct {
	store  cache.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewDecisionCache creates a new decision cache
func NewDecisionCache(store cache.Store, ttl time.Duration, logger *zap.Logger) *DecisionCache {
	return &DecisionCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// DecisionKey builds the cache key: lowercased sender joined with the first
// 20 characters of the lowercased subject. The truncation makes serial mail
// whose subjects differ only past that prefix ("Weekly digest for week 32",
// "Weekly digest for week 33") share one entry.
func DecisionKey(sender, subject string) string {
	subject = strings.ToLower(subject)
	if runes := []rune(subject); len(runes) > 20 {
		subject = string(runes[:20])
	}
	return strings.ToLower(sender) + "|" + subject
}

// Get returns the cached decision for a sender/subject pair, if present.
// Cache errors degrade to a miss.
func (c *DecisionCache) Get(ctx context.Context, sender, subject string) (*Decision, bool) {
	value, ok, err := c.store.Get(ctx, DecisionKey(sender, subject))
	if err != nil {
		c.logger.Warn("decision_cache_read_failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var d Decision
	if err := json.Unmarshal([]byte(value), &d); err != nil {
		c.logger.Warn("decision_cache_entry_corrupt", zap.Error(err))
		return nil, false
	}
	return &d, true
}

// Put caches a fresh classification decision. Write failures are logged and
// ignored; the cache is an optimization, not a dependency.
func (c *DecisionCache) Put(ctx context.Context, sender, subject string, d *Decision) {
	encoded, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := c.store.Put(ctx, DecisionKey(sender, subject), string(encoded), c.ttl); err != nil {
		c.logger.Warn("decision_cache_write_failed", zap.Error(err))
	}
}
