package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobRepository handles CRUD for the conversion_jobs table.
type JobRepository struct {
	db DB
}

// NewJobRepository creates a new conversion-job repository.
func NewJobRepository(db DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a job row in the pending state.
func (r *JobRepository) Create(ctx context.Context, job *ConversionJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = ConversionPending
	}
	job.CreatedAt = time.Now()

	query := `
		INSERT INTO conversion_jobs (id, page_id, input_path, output_path,
			status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.PageID, job.InputPath, job.OutputPath, job.Status, job.CreatedAt,
	)
	return err
}

// ListPending returns up to limit pending jobs, oldest first. Jobs already
// handed to the conversion service sit in processing and are not returned,
// so re-running the dispatcher while they are in flight is safe.
func (r *JobRepository) ListPending(ctx context.Context, limit int) ([]ConversionJob, error) {
	query := `
		SELECT id, page_id, input_path, output_path, status, attempts,
			error_message, created_at
		FROM conversion_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, ConversionPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []ConversionJob
	for rows.Next() {
		var job ConversionJob
		if err := rows.Scan(
			&job.ID, &job.PageID, &job.InputPath, &job.OutputPath,
			&job.Status, &job.Attempts, &job.ErrorMessage, &job.CreatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkDispatched records a successful hand-off to the conversion service.
// The service itself is responsible for eventually marking the job completed.
func (r *JobRepository) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE conversion_jobs
		SET status = $2, attempts = attempts + 1
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, ConversionProcessing)
	return err
}

// MarkError records a failed dispatch or conversion. The message is appended
// so earlier attempts stay visible to operators.
func (r *JobRepository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE conversion_jobs
		SET status = $2, attempts = attempts + 1,
			error_message = CASE
				WHEN error_message IS NULL OR error_message = '' THEN $3
				ELSE error_message || '; ' || $3
			END
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, ConversionError, message)
	return err
}

// Complete records a finished conversion and its output blob key.
func (r *JobRepository) Complete(ctx context.Context, id uuid.UUID, outputPath string) error {
	query := `
		UPDATE conversion_jobs
		SET status = $2, output_path = $3
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, ConversionCompleted, outputPath)
	return err
}
