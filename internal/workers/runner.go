// Package workers consumes triage jobs from the queue and drives the run
// orchestrator. Runs are strictly serial: one job at a time, and stale
// continuation jobs are dropped without running.
package workers

import (
	"context"
	"fmt"

	"github.com/mailsift/mailsift/internal/models"
	"github.com/mailsift/mailsift/internal/queue"
	"go.uber.org/zap"
)

// RunExecutor is the run entry point the runner drives. Satisfied by
// triage.Orchestrator; an interface so tests can substitute a fake.
type RunExecutor interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// TriageRunner processes triage run jobs from the queue.
type TriageRunner struct {
	orchestrator RunExecutor
	scheduler    queue.Scheduler
	logger       *zap.Logger
}

// NewTriageRunner creates a new triage runner
func NewTriageRunner(orchestrator RunExecutor, scheduler queue.Scheduler, logger *zap.Logger) *TriageRunner {
	return &TriageRunner{
		orchestrator: orchestrator,
		scheduler:    scheduler,
		logger:       logger,
	}
}

// ProcessJob processes one queue message. Continuation jobs whose pending
// trigger was cancelled or replaced are acked and dropped without running.
func (r *TriageRunner) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.Type != queue.JobTypeTriageRun {
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			r.logger.Error("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if job.Reason == "continuation" {
		claimed, err := r.scheduler.Claim(ctx, job.ID)
		if err != nil {
			// Can't tell whether the trigger is live; requeue and retry.
			if nackErr := msg.Nack(true); nackErr != nil {
				r.logger.Error("failed_to_nack_job", zap.Error(nackErr))
			}
			return fmt.Errorf("failed to claim continuation job: %w", err)
		}
		if !claimed {
			r.logger.Info("stale_continuation_job_dropped",
				zap.String("job_id", job.ID.String()),
			)
			if ackErr := msg.Ack(); ackErr != nil {
				return fmt.Errorf("failed to ack stale job: %w", ackErr)
			}
			return nil
		}
	}

	summary, err := r.orchestrator.Run(ctx)
	if err != nil {
		return r.handleJobError(msg, err)
	}

	r.logger.Info("triage_job_completed",
		zap.String("job_id", job.ID.String()),
		zap.String("stop_reason", summary.StopReason),
		zap.Int("total_processed", summary.TotalProcessed),
	)

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

// handleJobError retries the job if its retry budget allows, otherwise sends
// it to the DLQ.
func (r *TriageRunner) handleJobError(msg queue.MessageInterface, err error) error {
	job := msg.GetJob()

	if job.CanRetry() {
		job.IncrementRetry()
		r.logger.Warn("triage_job_failed_requeueing",
			zap.String("job_id", job.ID.String()),
			zap.Int("retry_count", job.RetryCount),
			zap.Error(err),
		)
		if nackErr := msg.Nack(true); nackErr != nil {
			return fmt.Errorf("failed to requeue job: %w", nackErr)
		}
		return err
	}

	r.logger.Error("triage_job_failed_permanently",
		zap.String("job_id", job.ID.String()),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		return fmt.Errorf("failed to dead-letter job: %w", nackErr)
	}
	return err
}
