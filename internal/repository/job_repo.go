// Package repository provides data access for the session-scoped job history.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/form-automation/tracker/internal/model"
)

// JobRepository provides data access for jobs and their progress events.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// RecordProgress inserts a progress event, creating the job row on first
// sight of the job id.
func (r *JobRepository) RecordProgress(ctx context.Context, ev model.ProgressEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO jobs (id, status, created_at, started_at)
		VALUES (?, ?, ?, ?)
	`, ev.JobID, model.JobStatusRunning, ev.Timestamp, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}

	gradesJSON, err := gradesToJSON(ev.FuelGrades)
	if err != nil {
		return fmt.Errorf("failed to serialize fuel grades: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO progress_events (job_id, phase, percentage, message, dispenser_id, dispenser_title, fuel_grades, event_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.JobID,
		ev.Phase,
		ev.Percentage,
		ev.Message,
		ev.DispenserID,
		ev.DispenserTitle,
		gradesJSON,
		ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record progress event: %w", err)
	}

	return nil
}

// MarkCompleted sets the job's status to completed. Unknown ids are a no-op,
// matching the in-memory store.
func (r *JobRepository) MarkCompleted(ctx context.Context, jobID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, completed_at = ? WHERE id = ?
	`, model.JobStatusCompleted, at, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

// MarkFailed sets the job's status to failed with the given error message.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID, errMsg string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?
	`, model.JobStatusFailed, errMsg, at, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// GetJob retrieves a job with its full progress history.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job := &model.Job{}
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, error_message, created_at, started_at, completed_at
		FROM jobs
		WHERE id = ?
	`, id).Scan(
		&job.ID,
		&job.Status,
		&errMsg,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.ErrorMessage = errMsg.String
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	events, err := r.ListProgress(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Progress = events

	return job, nil
}

// ListJobs retrieves all jobs without their progress histories, newest first.
func (r *JobRepository) ListJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, error_message, created_at, started_at, completed_at
		FROM jobs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job := &model.Job{}
		var errMsg sql.NullString
		var startedAt, completedAt sql.NullTime

		if err := rows.Scan(
			&job.ID,
			&job.Status,
			&errMsg,
			&job.CreatedAt,
			&startedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		job.ErrorMessage = errMsg.String
		if startedAt.Valid {
			job.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			job.CompletedAt = &completedAt.Time
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// ListProgress retrieves a job's progress events in receipt order.
func (r *JobRepository) ListProgress(ctx context.Context, jobID string) ([]model.ProgressEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, phase, percentage, message, dispenser_id, dispenser_title, fuel_grades, event_time
		FROM progress_events
		WHERE job_id = ?
		ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress events: %w", err)
	}
	defer rows.Close()

	var events []model.ProgressEvent
	for rows.Next() {
		var ev model.ProgressEvent
		var message, dispenserID, dispenserTitle, gradesJSON sql.NullString

		if err := rows.Scan(
			&ev.JobID,
			&ev.Phase,
			&ev.Percentage,
			&message,
			&dispenserID,
			&dispenserTitle,
			&gradesJSON,
			&ev.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan progress event: %w", err)
		}

		ev.Message = message.String
		ev.DispenserID = dispenserID.String
		ev.DispenserTitle = dispenserTitle.String

		grades, err := gradesFromJSON(gradesJSON.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fuel grades: %w", err)
		}
		ev.FuelGrades = grades

		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountByStatus returns the number of jobs with the given status.
func (r *JobRepository) CountByStatus(ctx context.Context, status model.JobStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM jobs WHERE status = ?
	`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// gradesToJSON converts a fuel grade list to a JSON string for storage.
func gradesToJSON(grades []string) (string, error) {
	if grades == nil {
		return "", nil
	}
	data, err := json.Marshal(grades)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// gradesFromJSON parses a stored JSON string back into a fuel grade list.
func gradesFromJSON(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var grades []string
	if err := json.Unmarshal([]byte(data), &grades); err != nil {
		return nil, err
	}
	return grades, nil
}
