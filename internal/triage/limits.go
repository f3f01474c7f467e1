package triage

import (
	"time"

	"go.uber.org/zap"
)

// Limits are the per-run safety ceilings. All three are enforced before every
// batch; whichever trips first ends the run.
type Limits struct {
	// MaxRuntime is the wall-clock ceiling for one run.
	MaxRuntime time.Duration
	// MaxItems is the ceiling on items processed in one run.
	MaxItems int
	// APICallSafetyLimit is the ceiling on total API calls per day, counting
	// calls made before this run started.
	APICallSafetyLimit int
}

// SafetyLimiter gates batch admission. Check is called once before each
// batch; when it passes, the limiter also closes out the previous batch's
// timing and advances the batch counter, so BatchNumber counts admitted
// batches.
type SafetyLimiter struct {
	limits Limits
	logger *zap.Logger
	now    func() time.Time
}

// NewSafetyLimiter creates a new safety limiter
func NewSafetyLimiter(limits Limits, logger *zap.Logger) *SafetyLimiter {
	return &SafetyLimiter{
		limits: limits,
		logger: logger,
		now:    time.Now,
	}
}

// Check evaluates all limits in order: time, items, daily API calls. It
// returns false and records the stop reason when any limit is reached.
// lastBatchStart is the start time of the batch just completed; zero for the
// first check of a run.
func (l *SafetyLimiter) Check(state *RunState, lastBatchStart time.Time) bool {
	now := l.now()

	if !lastBatchStart.IsZero() {
		state.RecordBatchTiming(now.Sub(lastBatchStart))
	}

	elapsed := now.Sub(state.StartTime)
	if elapsed >= l.limits.MaxRuntime {
		state.SetStop(StopTimeLimit)
		l.logger.Info("run_time_limit_reached",
			zap.Duration("elapsed", elapsed),
			zap.Duration("max_runtime", l.limits.MaxRuntime),
		)
		return false
	}

	if state.TotalProcessed >= l.limits.MaxItems {
		state.SetStop(StopItemLimit)
		l.logger.Info("run_item_limit_reached",
			zap.Int("processed", state.TotalProcessed),
			zap.Int("max_items", l.limits.MaxItems),
		)
		return false
	}

	dailyTotal := state.DailyCountAtStart + state.TotalCallsThisRun()
	if dailyTotal >= l.limits.APICallSafetyLimit {
		state.SetStop(StopQuotaLimit)
		l.logger.Warn("daily_quota_limit_reached",
			zap.Int("daily_total", dailyTotal),
			zap.Int("safety_limit", l.limits.APICallSafetyLimit),
		)
		return false
	}

	state.BatchNumber++
	return true
}
