package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/nexgsol/hmva/internal/models"
)

// GetOrCreateJob inserts the job row or, when it already exists, backfills
// only the fields that are non-empty in the provided defaults. Repeated calls
// with identical arguments leave the record unchanged. The loaded record is
// scanned back into job.
func (db *DB) GetOrCreateJob(ctx context.Context, job *models.JobRun) error {
	if job.State == "" {
		job.State = models.JobStatePending
	}

	query := `
		INSERT INTO paragraph_jobs (
			job_id, state, mode, source_path, sheet_url, sheet_id, sheet_name,
			batch_size, output_path, download_url, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (job_id) DO UPDATE SET
			mode         = COALESCE(NULLIF(EXCLUDED.mode, ''), paragraph_jobs.mode),
			source_path  = COALESCE(NULLIF(EXCLUDED.source_path, ''), paragraph_jobs.source_path),
			sheet_url    = COALESCE(NULLIF(EXCLUDED.sheet_url, ''), paragraph_jobs.sheet_url),
			sheet_id     = COALESCE(NULLIF(EXCLUDED.sheet_id, ''), paragraph_jobs.sheet_id),
			sheet_name   = COALESCE(NULLIF(EXCLUDED.sheet_name, ''), paragraph_jobs.sheet_name),
			batch_size   = CASE WHEN EXCLUDED.batch_size > 0 THEN EXCLUDED.batch_size ELSE paragraph_jobs.batch_size END,
			output_path  = COALESCE(NULLIF(EXCLUDED.output_path, ''), paragraph_jobs.output_path),
			download_url = COALESCE(NULLIF(EXCLUDED.download_url, ''), paragraph_jobs.download_url),
			updated_at   = now()
		RETURNING job_id, state, mode, source_path, sheet_url, sheet_id, sheet_name,
			batch_size, output_path, download_url, batch_count, rows_written, error,
			created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.JobID, job.State, job.Mode, job.SourcePath, job.SheetURL, job.SheetID,
		job.SheetName, job.BatchSize, job.OutputPath, job.DownloadURL, job.Error,
	).Scan(
		&job.JobID, &job.State, &job.Mode, &job.SourcePath, &job.SheetURL,
		&job.SheetID, &job.SheetName, &job.BatchSize, &job.OutputPath,
		&job.DownloadURL, &job.BatchCount, &job.RowsWritten, &job.Error,
		&job.CreatedAt, &job.UpdatedAt,
	)
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.JobRun, error) {
	query := `
		SELECT job_id, state, mode, source_path, sheet_url, sheet_id, sheet_name,
			batch_size, output_path, download_url, batch_count, rows_written, error,
			created_at, updated_at
		FROM paragraph_jobs
		WHERE job_id = $1
	`

	job := &models.JobRun{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.JobID, &job.State, &job.Mode, &job.SourcePath, &job.SheetURL,
		&job.SheetID, &job.SheetName, &job.BatchSize, &job.OutputPath,
		&job.DownloadURL, &job.BatchCount, &job.RowsWritten, &job.Error,
		&job.CreatedAt, &job.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

func (db *DB) ListJobs(ctx context.Context, limit int) ([]models.JobRun, error) {
	if limit < 1 {
		limit = 25
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT job_id, state, mode, source_path, sheet_url, sheet_id, sheet_name,
			batch_size, output_path, download_url, batch_count, rows_written, error,
			created_at, updated_at
		FROM paragraph_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.JobRun
	for rows.Next() {
		var job models.JobRun
		err := rows.Scan(
			&job.JobID, &job.State, &job.Mode, &job.SourcePath, &job.SheetURL,
			&job.SheetID, &job.SheetName, &job.BatchSize, &job.OutputPath,
			&job.DownloadURL, &job.BatchCount, &job.RowsWritten, &job.Error,
			&job.CreatedAt, &job.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// SetJobState writes a state transition. Terminal states are sticky: once a
// job is SUCCESS or FAILURE the row no longer changes (repeating the same
// terminal state is a no-op, not an error). Empty errMsg/outputPath/
// downloadURL leave the existing values in place.
func (db *DB) SetJobState(ctx context.Context, id uuid.UUID, state models.JobState, errMsg, outputPath, downloadURL string) error {
	query := `
		UPDATE paragraph_jobs
		SET state = $2,
			error        = CASE WHEN $3 <> '' THEN $3 ELSE error END,
			output_path  = CASE WHEN $4 <> '' THEN $4 ELSE output_path END,
			download_url = CASE WHEN $5 <> '' THEN $5 ELSE download_url END,
			updated_at   = now()
		WHERE job_id = $1
		  AND (state NOT IN ('SUCCESS', 'FAILURE') OR state = $2)
	`

	_, err := db.ExecContext(ctx, query, id, state, errMsg, outputPath, downloadURL)
	if err != nil {
		return fmt.Errorf("failed to set job state: %w", err)
	}
	return nil
}

// UpdateJobProgress records the number of batches dispatched so far. The
// monotonic guard means two concurrent writers cannot move the counter
// backwards.
func (db *DB) UpdateJobProgress(ctx context.Context, id uuid.UUID, batches int) error {
	query := `
		UPDATE paragraph_jobs
		SET batch_count = $2, updated_at = now()
		WHERE job_id = $1 AND batch_count < $2
	`
	_, err := db.ExecContext(ctx, query, id, batches)
	return err
}

// AddRowsWritten bumps the cumulative written-row counter with a field-level
// atomic increment so concurrently finishing batches cannot lose updates.
func (db *DB) AddRowsWritten(ctx context.Context, id uuid.UUID, n int) error {
	query := `
		UPDATE paragraph_jobs
		SET rows_written = rows_written + $2, updated_at = now()
		WHERE job_id = $1
	`
	_, err := db.ExecContext(ctx, query, id, n)
	return err
}
