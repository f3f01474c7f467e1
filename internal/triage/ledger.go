package triage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mailsift/mailsift/internal/database"
	"go.uber.org/zap"
)

// QuotaLedger tracks the cumulative API call count for the current calendar
// day in the configured timezone. The counter survives process restarts; it
// resets the first time it is read on a new day.
//
// Commit writes happen once per run, after the run finishes. A crash between
// finishing and committing under-counts that run's calls; the safety limit is
// generous enough that this is acceptable.
type QuotaLedger struct {
	state  database.StateRepositoryInterface
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewQuotaLedger creates a new quota ledger pinned to loc.
func NewQuotaLedger(state database.StateRepositoryInterface, loc *time.Location, logger *zap.Logger) *QuotaLedger {
	return &QuotaLedger{
		state:  state,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

func (l *QuotaLedger) today() string {
	return l.now().In(l.loc).Format("2006-01-02")
}

// DailyCount returns the call count for today, resetting the ledger when the
// stored date is not today. A corrupt counter value resets to zero rather
// than blocking runs.
func (l *QuotaLedger) DailyCount(ctx context.Context) (int, error) {
	today := l.today()

	storedDate, err := l.state.Get(ctx, database.StateKeyLastRunDate)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger date: %w", err)
	}

	if storedDate != today {
		if err := l.state.Set(ctx, database.StateKeyLastRunDate, today); err != nil {
			return 0, fmt.Errorf("failed to roll ledger date: %w", err)
		}
		if err := l.state.Set(ctx, database.StateKeyDailyCallCount, "0"); err != nil {
			return 0, fmt.Errorf("failed to reset ledger count: %w", err)
		}
		if storedDate != "" {
			l.logger.Info("quota_ledger_rolled_over",
				zap.String("previous_date", storedDate),
				zap.String("date", today),
			)
		}
		return 0, nil
	}

	stored, err := l.state.Get(ctx, database.StateKeyDailyCallCount)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger count: %w", err)
	}
	if stored == "" {
		return 0, nil
	}

	count, err := strconv.Atoi(stored)
	if err != nil {
		l.logger.Warn("quota_ledger_count_corrupt", zap.String("value", stored))
		return 0, nil
	}
	return count, nil
}

// Commit adds calls to today's count. The read-modify-write goes through
// DailyCount so a rollover between run start and commit attributes the calls
// to the new day instead of inflating yesterday's.
func (l *QuotaLedger) Commit(ctx context.Context, calls int) error {
	if calls <= 0 {
		return nil
	}

	current, err := l.DailyCount(ctx)
	if err != nil {
		return err
	}

	total := current + calls
	if err := l.state.Set(ctx, database.StateKeyDailyCallCount, strconv.Itoa(total)); err != nil {
		return fmt.Errorf("failed to commit ledger count: %w", err)
	}

	l.logger.Info("quota_ledger_committed",
		zap.Int("calls", calls),
		zap.Int("daily_total", total),
	)
	return nil
}
