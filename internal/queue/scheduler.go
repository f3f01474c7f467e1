package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailsift/mailsift/internal/cache"
	"go.uber.org/zap"
)

// pendingTriggerKey is the single-slot registry for the one allowed pending
// continuation. RabbitMQ cannot list or cancel published messages, so the
// registry is the source of truth: a delivered job whose ID no longer matches
// the registry entry is stale and must be skipped.
const pendingTriggerKey = "triage:pending_trigger"

// registryGrace keeps the registry entry alive slightly past the delivery
// time so a just-fired trigger can still be claimed.
const registryGrace = 10 * time.Minute

// PendingTrigger describes a scheduled follow-up invocation.
type PendingTrigger struct {
	JobID  uuid.UUID `json:"job_id"`
	FireAt time.Time `json:"fire_at"`
}

// Scheduler schedules and cancels follow-up triage invocations.
type Scheduler interface {
	// ScheduleOnce enqueues exactly one continuation job after delay,
	// replacing any previously pending trigger.
	ScheduleOnce(ctx context.Context, delay time.Duration) error

	// CancelPending clears the pending-trigger registry so any in-flight
	// continuation job is treated as stale on delivery.
	CancelPending(ctx context.Context) error

	// ListPending returns the pending trigger, if any.
	ListPending(ctx context.Context) ([]PendingTrigger, error)

	// Claim reports whether jobID is the current pending trigger and, if
	// so, consumes it. Stale jobs return false.
	Claim(ctx context.Context, jobID uuid.UUID) (bool, error)
}

// QueueScheduler implements Scheduler over a JobQueue and a cache-backed
// pending-trigger registry.
type QueueScheduler struct {
	queue    JobQueue
	registry cache.Store
	logger   *zap.Logger
}

// NewQueueScheduler creates a new scheduler
func NewQueueScheduler(jobQueue JobQueue, registry cache.Store, logger *zap.Logger) *QueueScheduler {
	return &QueueScheduler{
		queue:    jobQueue,
		registry: registry,
		logger:   logger,
	}
}

// ScheduleOnce enqueues one continuation job after delay.
func (s *QueueScheduler) ScheduleOnce(ctx context.Context, delay time.Duration) error {
	fireAt := time.Now().Add(delay)
	job := NewJob(JobTypeTriageRun, "continuation")
	job.NotBefore = &fireAt

	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue continuation job: %w", err)
	}

	trigger := PendingTrigger{JobID: job.ID, FireAt: fireAt}
	value, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal pending trigger: %w", err)
	}
	if err := s.registry.Put(ctx, pendingTriggerKey, string(value), delay+registryGrace); err != nil {
		return fmt.Errorf("failed to register pending trigger: %w", err)
	}

	s.logger.Info("scheduled_follow_up_run",
		zap.String("job_id", job.ID.String()),
		zap.Time("fire_at", fireAt),
	)
	return nil
}

// CancelPending clears the pending-trigger registry.
func (s *QueueScheduler) CancelPending(ctx context.Context) error {
	if err := s.registry.Remove(ctx, pendingTriggerKey); err != nil {
		return fmt.Errorf("failed to clear pending trigger: %w", err)
	}
	return nil
}

// ListPending returns the pending trigger, if any.
func (s *QueueScheduler) ListPending(ctx context.Context) ([]PendingTrigger, error) {
	value, ok, err := s.registry.Get(ctx, pendingTriggerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending trigger: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var trigger PendingTrigger
	if err := json.Unmarshal([]byte(value), &trigger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending trigger: %w", err)
	}
	return []PendingTrigger{trigger}, nil
}

// Claim consumes the pending trigger if jobID matches it.
func (s *QueueScheduler) Claim(ctx context.Context, jobID uuid.UUID) (bool, error) {
	triggers, err := s.ListPending(ctx)
	if err != nil {
		return false, err
	}
	if len(triggers) == 0 || triggers[0].JobID != jobID {
		return false, nil
	}
	if err := s.registry.Remove(ctx, pendingTriggerKey); err != nil {
		return false, fmt.Errorf("failed to consume pending trigger: %w", err)
	}
	return true, nil
}

// Ensure QueueScheduler implements the interface
var _ Scheduler = (*QueueScheduler)(nil)
