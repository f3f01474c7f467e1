// Package mailstore abstracts the mail store's search/label/archive
// primitives. The triage pipeline consumes this interface; the production
// implementation speaks IMAP.
package mailstore

import (
	"context"
	"time"
)

// Metadata is the resolved view of one inbox item.
type Metadata struct {
	ID      string
	Sender  string // raw From header value
	Subject string
	Preview string
	Labels  []string
	Date    time.Time
}

// Query bounds an unlabeled-items search.
type Query struct {
	// Limit is the maximum number of item IDs to return.
	Limit int
	// MinAge excludes items newer than this when positive. Used when
	// recent-mail processing is disabled, so fresh mail gets a grace
	// period before triage.
	MinAge time.Duration
}

// Store is the mail store collaborator.
type Store interface {
	// SearchUnlabeled returns IDs of inbox items carrying no vocabulary
	// label, up to q.Limit.
	SearchUnlabeled(ctx context.Context, q Query) ([]string, error)

	// FetchMetadata resolves full metadata for a batch of IDs in a single
	// bulk call.
	FetchMetadata(ctx context.Context, ids []string) ([]*Metadata, error)

	// AddLabel applies one label to an item.
	AddLabel(ctx context.Context, id string, label string) error

	// Archive removes an item from the inbox.
	Archive(ctx context.Context, id string) error

	// EnsureLabels makes sure every label in names can be applied.
	EnsureLabels(ctx context.Context, names []string) error

	// SearchByLabel returns metadata for inbox-or-archived items carrying
	// the given label, up to limit.
	SearchByLabel(ctx context.Context, label string, limit int) ([]*Metadata, error)

	// Close releases the underlying connection.
	Close() error
}
