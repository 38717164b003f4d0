package domain

import (
	"encoding/json"
	"time"
)

// JobType identifies the handler a job is routed to.
type JobType string

const (
	JobCreatePost JobType = "create-post"
	JobNewComment JobType = "new-comment"
	JobNewPost    JobType = "new-post"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobCreatePost, JobNewComment, JobNewPost:
		return true
	}
	return false
}

// JobState tracks a job through the queue.
//
//	waiting -> active -> completed
//	active  -> waiting (failed, attempts++, eligible after backoff)
//	active  -> dead_lettered (attempts exhausted or permanent failure)
//
// An active job whose lease expires is moved back to waiting by the reaper;
// that is the at-least-once redelivery path after a crash.
type JobState string

const (
	JobWaiting      JobState = "waiting"
	JobActive       JobState = "active"
	JobCompleted    JobState = "completed"
	JobDeadLettered JobState = "dead_lettered"
)

// Job is a unit of deferred work.
type Job struct {
	ID             string          `json:"id"`
	Type           JobType         `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	State          JobState        `json:"state"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"max_attempts"`
	LastError      *string         `json:"last_error,omitempty"`
	EligibleAt     time.Time       `json:"eligible_at"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Exhausted reports whether the next failure would exceed the retry budget.
func (j *Job) Exhausted() bool {
	return j.Attempts+1 > j.MaxAttempts
}

// JobFailure describes how a failed attempt is recorded.
type JobFailure struct {
	Error      string
	DeadLetter bool
	// RetryAt is the next eligibility time; ignored when DeadLetter is set.
	RetryAt time.Time
}
