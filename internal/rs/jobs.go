package rs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// CreateJob inserts a new index job row in the queued state.
func (s *Store) CreateJob(ctx context.Context, j *Job) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_jobs (id, project_id, ref, status, mode, files_total, files_processed, progress_token, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectID, j.Ref, string(j.Status), j.Mode, j.FilesTotal, j.FilesProcessed, j.ProgressToken, j.ErrorMessage, now, now)
	if err != nil {
		return ccerrors.SqliteError("failed to create job", err)
	}
	return nil
}

// UpdateJobStatus transitions a job's status and progress counters.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, filesProcessed int, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		UPDATE index_jobs SET status = ?, files_processed = ?, error_message = ?, updated_at = ?
		WHERE id = ?`, string(status), filesProcessed, errMsg, now, jobID)
	if err != nil {
		return ccerrors.SqliteError("failed to update job status", err)
	}
	return nil
}

// GetJob returns a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, ref, status, mode, files_total, files_processed, progress_token, error_message, created_at, updated_at
		FROM index_jobs WHERE id = ?`, jobID)
	return scanJobRow(row)
}

// GetActiveJob returns the job for (project, ref) currently in a
// non-terminal state, enforcing the single-active-job-per-(project,ref)
// invariant. Returns nil if none is active.
func (s *Store) GetActiveJob(ctx context.Context, projectID, ref string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, ref, status, mode, files_total, files_processed, progress_token, error_message, created_at, updated_at
		FROM index_jobs
		WHERE project_id = ? AND ref = ? AND status IN ('queued', 'running', 'validating')
		ORDER BY created_at DESC LIMIT 1`, projectID, ref)
	j, err := scanJobRow(row)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func scanJobRow(row *sql.Row) (*Job, error) {
	var j Job
	var status, created, updated string
	err := row.Scan(&j.ID, &j.ProjectID, &j.Ref, &status, &j.Mode, &j.FilesTotal, &j.FilesProcessed, &j.ProgressToken, &j.ErrorMessage, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ccerrors.SqliteError("failed to scan job row", err)
	}
	j.Status = JobStatus(status)
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &j, nil
}

// ReconcileInterruptedJobs marks every job still in a running/validating
// state as interrupted. Called once at process startup: a job left
// running/validating means the prior process died mid-write, and RS/LI
// may be partially updated.
func (s *Store) ReconcileInterruptedJobs(ctx context.Context) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		UPDATE index_jobs SET status = 'interrupted', updated_at = ?
		WHERE status IN ('running', 'validating')`, now)
	if err != nil {
		return 0, ccerrors.SqliteError("failed to reconcile interrupted jobs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ccerrors.SqliteError("failed to count reconciled jobs", err)
	}
	return int(n), nil
}
