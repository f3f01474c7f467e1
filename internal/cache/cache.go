// Package cache provides the TTL key-value store the triage pipeline uses for
// rule caching, classification decisions and rejection suppression.
package cache

import (
	"context"
	"time"
)

// Store is a TTL-bounded key-value store. Implementations are best-effort:
// a miss (expired, evicted, or never written) is not an error.
type Store interface {
	// Get returns the value for key and whether it was present and unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores value under key for at most ttl. A ttl of zero or less
	// stores the value without expiry.
	Put(ctx context.Context, key string, value string, ttl time.Duration) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Clock returns the current time. Injectable so TTL expiry is deterministic
// under test.
type Clock func() time.Time
