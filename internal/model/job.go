// Package model defines the core data types for automation job tracking.
package model

import "time"

// JobStatus represents the status of an automation job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status ends further meaningful mutation of a job.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents a server-executed automation job as seen by the local tracker.
// Jobs are created implicitly when the first progress event for an unseen id
// arrives and live until the session is torn down.
type Job struct {
	ID           string          `json:"id"`
	Status       JobStatus       `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Progress     []ProgressEvent `json:"progress"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

// LatestProgress returns the most recently received progress event, or nil if
// none has arrived. Arrival order, not event timestamp order, decides "latest".
func (j *Job) LatestProgress() *ProgressEvent {
	if len(j.Progress) == 0 {
		return nil
	}
	return &j.Progress[len(j.Progress)-1]
}

// Clone returns a deep copy of the job, safe to hand to readers outside the
// store's lock.
func (j *Job) Clone() *Job {
	c := *j
	if j.Progress != nil {
		c.Progress = make([]ProgressEvent, len(j.Progress))
		copy(c.Progress, j.Progress)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Duration returns how long the job has been known locally.
func (j *Job) Duration() time.Duration {
	return time.Since(j.CreatedAt)
}

// ProgressEvent is one incremental progress report for a job. Phase names are
// display-only and pass through verbatim, including names this client has
// never seen. Percentage is expected to be in [0,100] but is not guaranteed
// monotonic across a job's sequence.
type ProgressEvent struct {
	JobID          string    `json:"job_id"`
	Phase          string    `json:"phase"`
	Percentage     float64   `json:"percentage"`
	Message        string    `json:"message"`
	DispenserID    string    `json:"dispenser_id,omitempty"`
	DispenserTitle string    `json:"dispenser_title,omitempty"`
	FuelGrades     []string  `json:"fuel_grades,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConnectRequest represents a request to open the tracking channel for a user.
type ConnectRequest struct {
	UserID string `json:"user_id" binding:"required"`
}
