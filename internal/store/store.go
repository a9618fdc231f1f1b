// Package store holds the in-memory job state for the current session.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/form-automation/tracker/internal/model"
)

// Store is the single source of truth for job progress state. Only the
// tracker's dispatch loop mutates it; other components read snapshots.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*model.Job),
	}
}

// ApplyProgress appends a progress event to the event's job, creating the job
// with status running if the id has not been seen before. It returns a
// snapshot of the job after the event is applied.
//
// A late event for a job that already reached a terminal status still appends
// and does not revert the status.
func (s *Store) ApplyProgress(ev model.ProgressEvent) *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[ev.JobID]
	if !ok {
		started := ev.Timestamp
		job = &model.Job{
			ID:        ev.JobID,
			Status:    model.JobStatusRunning,
			CreatedAt: ev.Timestamp,
			StartedAt: &started,
		}
		s.jobs[ev.JobID] = job
	}

	job.Progress = append(job.Progress, ev)
	return job.Clone()
}

// Complete marks the job completed and records the completion time. It
// reports whether the job was known. Re-applying the same terminal status is
// harmless.
func (s *Store) Complete(jobID string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false
	}

	job.Status = model.JobStatusCompleted
	job.CompletedAt = &at
	return true
}

// Fail marks the job failed with the given message and records the completion
// time. It reports whether the job was known.
func (s *Store) Fail(jobID, errMsg string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false
	}

	job.Status = model.JobStatusFailed
	job.ErrorMessage = errMsg
	job.CompletedAt = &at
	return true
}

// Get returns a snapshot of the job with the given id.
func (s *Store) Get(jobID string) (*model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// List returns snapshots of all known jobs, newest first.
func (s *Store) List() []*model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Len returns the number of known jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Reset removes all jobs. Called on session teardown; there is no per-job
// deletion.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*model.Job)
}
