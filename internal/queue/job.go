package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeTriageRun is a job that executes one triage run slice.
	// There is exactly one job type: follow-up invocations after a time
	// limit stop are just delayed jobs of this type.
	JobTypeTriageRun JobType = "triage_run"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	Reason     string     `json:"reason,omitempty"`     // why this run was scheduled (manual, continuation)
	NotBefore  *time.Time `json:"not_before,omitempty"` // earliest time to process job (nil = immediate)
	NotAfter   *time.Time `json:"not_after,omitempty"`  // latest time to process job (nil = no expiration)
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, reason string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Reason:     reason,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}

	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
