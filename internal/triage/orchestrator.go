package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailsift/mailsift/internal/database"
	"github.com/mailsift/mailsift/internal/mailstore"
	"github.com/mailsift/mailsift/internal/models"
	"github.com/mailsift/mailsift/internal/queue"
	"go.uber.org/zap"
)

// Orchestrator ties one triage run together: quota ledger read, label setup,
// rule load, the batch loop, and the finalize sequence that always runs no
// matter how the batch loop ended.
type Orchestrator struct {
	mail        mailstore.Store
	rules       *RuleTable
	driver      *BatchDriver
	suggestions *SuggestionEngine
	ledger      *QuotaLedger
	scheduler   queue.Scheduler
	state       database.StateRepositoryInterface
	runLogs     database.RunLogRepositoryInterface
	logger      *zap.Logger

	loc           *time.Location
	followUpDelay time.Duration
	now           func() time.Time
}

// NewOrchestrator creates a new run orchestrator
func NewOrchestrator(
	mail mailstore.Store,
	rules *RuleTable,
	driver *BatchDriver,
	suggestions *SuggestionEngine,
	ledger *QuotaLedger,
	scheduler queue.Scheduler,
	state database.StateRepositoryInterface,
	runLogs database.RunLogRepositoryInterface,
	loc *time.Location,
	followUpDelay time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		mail:          mail,
		rules:         rules,
		driver:        driver,
		suggestions:   suggestions,
		ledger:        ledger,
		scheduler:     scheduler,
		state:         state,
		runLogs:       runLogs,
		logger:        logger,
		loc:           loc,
		followUpDelay: followUpDelay,
		now:           time.Now,
	}
}

// Run executes one complete triage run and returns its summary. The finalize
// sequence (ledger commit, summary persistence, suggestion scan, follow-up
// scheduling) runs even when the batch loop failed, so quota accounting never
// loses a run's calls.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	// A fresh run supersedes any pending continuation; clearing the
	// registry first guarantees at most one trigger chain exists.
	if err := o.scheduler.CancelPending(ctx); err != nil {
		o.logger.Warn("cancel_pending_trigger_failed", zap.Error(err))
	}

	dailyCount, err := o.ledger.DailyCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read quota ledger: %w", err)
	}

	state := NewRunState(o.now(), dailyCount)
	// The ledger read above is the run's first tallied call.
	state.CountCall(ServiceLedgerStore)
	o.logger.Info("triage_run_started", zap.Int("daily_count_at_start", dailyCount))

	o.runGuarded(ctx, state)

	summary := o.finalize(ctx, state)

	o.logger.Info("triage_run_finished",
		zap.String("stop_reason", summary.StopReason),
		zap.Int("total_processed", summary.TotalProcessed),
		zap.Int("batches", summary.Batches),
		zap.Int("final_daily_count", summary.FinalDailyCount),
	)
	return summary, nil
}

// runGuarded wraps the fallible portion of a run so that neither an error
// nor a panic can skip finalization.
func (o *Orchestrator) runGuarded(ctx context.Context, state *RunState) {
	defer func() {
		if r := recover(); r != nil {
			state.SetError(fmt.Sprintf("panic: %v", r))
			o.logger.Error("triage_run_panicked", zap.Any("panic", r))
		}
	}()

	// Label setup costs one mail-store call per vocabulary label.
	names := models.VocabularyNames()
	state.CountCalls(ServiceMailStore, len(names))
	if err := o.mail.EnsureLabels(ctx, names); err != nil {
		state.SetError(err.Error())
		o.logger.Error("label_setup_failed", zap.Error(err))
		return
	}

	// A rule load failure degrades the cascade to its cache and classifier
	// tiers; the run proceeds.
	if err := o.rules.Load(ctx, state); err != nil {
		o.logger.Warn("rule_load_failed_continuing_without_rules", zap.Error(err))
	}

	if err := o.driver.Run(ctx, state); err != nil {
		state.SetError(err.Error())
		o.logger.Error("batch_loop_failed", zap.Error(err))
	}
}

// finalize commits quota, persists the compact last-run record and the full
// history row, schedules a follow-up when the run stopped on the time limit,
// and runs the suggestion scan. Each step is independent: a failure is
// logged and the rest still run.
func (o *Orchestrator) finalize(ctx context.Context, state *RunState) *models.RunSummary {
	// The commit itself costs a ledger-store call; tally it before reading
	// the total so the committed count includes it.
	state.CountCall(ServiceLedgerStore)
	if err := o.ledger.Commit(ctx, state.TotalCallsThisRun()); err != nil {
		o.logger.Error("quota_commit_failed", zap.Error(err))
	}

	summary := state.Summary(o.now(), o.loc)

	last := models.LastRun{
		Status:    summary.StopReason,
		Processed: summary.TotalProcessed,
		Timestamp: o.now(),
	}
	if encoded, err := json.Marshal(last); err == nil {
		if err := o.state.Set(ctx, database.StateKeyLastRunSummary, string(encoded)); err != nil {
			o.logger.Error("summary_persist_failed", zap.Error(err))
		}
	}

	if err := o.runLogs.Append(ctx, summary); err != nil {
		o.logger.Error("run_log_append_failed", zap.Error(err))
	}

	if state.StopReason == StopTimeLimit {
		if err := o.scheduler.ScheduleOnce(ctx, o.followUpDelay); err != nil {
			o.logger.Error("follow_up_schedule_failed", zap.Error(err))
		}
	}

	// The suggestion scan runs after the summary is sealed; its single
	// mail-store call is not ledgered.
	if err := o.suggestions.Run(ctx, state); err != nil {
		o.logger.Error("suggestion_scan_failed", zap.Error(err))
	}

	return summary
}
