package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/mailsift/mailsift/internal/mailstore"
	"github.com/mailsift/mailsift/internal/models"
	"go.uber.org/zap"
)

// BatchDriver runs the batch loop: admit a batch through the limiter, search
// for unlabeled items, fetch their metadata in bulk, and push each through
// the cascade. It stops when the inbox drains or a safety limit trips.
type BatchDriver struct {
	mail    mailstore.Store
	cascade *Cascade
	limiter *SafetyLimiter
	logger  *zap.Logger

	batchSize int
	minAge    time.Duration
	now       func() time.Time
}

// NewBatchDriver creates a new batch driver. minAge excludes recent mail
// from triage when positive.
func NewBatchDriver(mail mailstore.Store, cascade *Cascade, limiter *SafetyLimiter, batchSize int, minAge time.Duration, log *zap.Logger) *BatchDriver {
	return &BatchDriver{
		mail:      mail,
		cascade:   cascade,
		limiter:   limiter,
		logger:    log,
		batchSize: batchSize,
		minAge:    minAge,
		now:       time.Now,
	}
}

// Run executes batches until a stop condition is reached, recording the stop
// reason in state. Items whose classification soft-failed this run are
// remembered and skipped on refetch so the loop cannot spin on them.
func (d *BatchDriver) Run(ctx context.Context, state *RunState) error {
	failed := make(map[string]struct{})
	var lastBatchStart time.Time

	for {
		if !d.limiter.Check(state, lastBatchStart) {
			return nil
		}
		lastBatchStart = d.now()

		state.CountCall(ServiceMailStore)
		ids, err := d.mail.SearchUnlabeled(ctx, mailstore.Query{
			Limit:  d.batchSize + len(failed),
			MinAge: d.minAge,
		})
		if err != nil {
			return fmt.Errorf("failed to search for unlabeled items: %w", err)
		}

		fresh := ids[:0:0]
		for _, id := range ids {
			if _, skip := failed[id]; skip {
				continue
			}
			fresh = append(fresh, id)
		}
		if len(fresh) > d.batchSize {
			fresh = fresh[:d.batchSize]
		}

		if len(fresh) == 0 {
			// Nothing admitted to this batch slot; hand it back so the
			// summary reports batches that actually ran.
			state.BatchNumber--
			state.SetStop(StopDrained)
			d.logger.Info("inbox_drained", zap.Int("total_processed", state.TotalProcessed))
			return nil
		}

		state.CountCall(ServiceMailStore)
		metas, err := d.mail.FetchMetadata(ctx, fresh)
		if err != nil {
			return fmt.Errorf("failed to fetch batch metadata: %w", err)
		}

		d.logger.Info("batch_started",
			zap.Int("batch", state.BatchNumber),
			zap.Int("size", len(metas)),
		)

		for _, meta := range metas {
			// The search can race a concurrent label write; never re-triage.
			item := models.Item{Labels: toLabels(meta.Labels)}
			if item.HasVocabularyLabel() {
				failed[meta.ID] = struct{}{}
				continue
			}

			processed, err := d.cascade.Process(ctx, state, meta)
			if err != nil {
				return err
			}
			if processed {
				state.TotalProcessed++
			} else {
				failed[meta.ID] = struct{}{}
			}
		}

		// A short batch is the last one available; nothing unprocessed
		// remains beyond items that already failed this run.
		if len(metas) < d.batchSize {
			state.SetStop(StopDrained)
			d.logger.Info("inbox_drained", zap.Int("total_processed", state.TotalProcessed))
			return nil
		}
	}
}
