package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carecast/internal/domain"
)

const uniqueViolationCode = "23505"

const jobColumns = `id, owner_id, correlation_id, status, script, video_url, thumbnail_url, duration_seconds, error_detail, progress, created_at, updated_at`

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. The
// generation_jobs table carries a unique index on correlation_id so a
// provider identifier can never map to two local jobs.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new pending job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	if strings.TrimSpace(job.Script) == "" {
		return fmt.Errorf("%w: script is required", domain.ErrValidation)
	}
	query := `
INSERT INTO generation_jobs (id, owner_id, status, script, progress)
VALUES ($1, $2, $3, $4, 0)
RETURNING created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, query, job.ID, job.OwnerID, domain.JobStatusPending, job.Script)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	job.Status = domain.JobStatusPending
	job.Progress = 0
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1;`
	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// FindByCorrelationID resolves a provider identifier to a local job.
// Absence is not an error: orphaned events are a caller-level concern.
func (r *JobRepositoryPG) FindByCorrelationID(ctx context.Context, correlationID string) (*domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE correlation_id = $1;`
	job, err := scanJob(r.pool.QueryRow(ctx, query, correlationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// AssignCorrelationID binds the provider identifier and advances the job to
// processing. The WHERE clause only matches a pending job without a foreign
// correlation ID, so re-delivery of the same assignment falls through to the
// idempotency check below instead of overwriting anything.
func (r *JobRepositoryPG) AssignCorrelationID(ctx context.Context, jobID, correlationID string) error {
	query := `
UPDATE generation_jobs
SET correlation_id = $2,
    status = $3,
    updated_at = NOW()
WHERE id = $1
  AND status = $4
  AND (correlation_id IS NULL OR correlation_id = $2);
`
	tag, err := r.pool.Exec(ctx, query, jobID, correlationID, domain.JobStatusProcessing, domain.JobStatusPending)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: correlation id %q already bound to another job", domain.ErrConflict, correlationID)
		}
		return fmt.Errorf("assign correlation id: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.CorrelationID == correlationID {
		// Same assignment replayed after the job moved on. No-op success.
		return nil
	}
	return fmt.Errorf("%w: job %s already has correlation id %q", domain.ErrConflict, jobID, job.CorrelationID)
}

// ApplyTerminal flips a live job to a terminal state. The status guard in
// the WHERE clause is the compare-and-set: with concurrent writers exactly
// one UPDATE matches and every later attempt reports applied=false.
func (r *JobRepositoryPG) ApplyTerminal(ctx context.Context, jobID string, status domain.JobStatus, result *domain.GenerationResult, errorDetail string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("%w: %q is not a terminal status", domain.ErrValidation, status)
	}
	var videoURL, thumbnailURL *string
	var duration *int
	if result != nil {
		videoURL = &result.VideoURL
		thumbnailURL = &result.ThumbnailURL
		duration = &result.DurationSeconds
	}
	query := `
UPDATE generation_jobs
SET status = $2,
    video_url = $3,
    thumbnail_url = $4,
    duration_seconds = $5,
    error_detail = $6,
    progress = CASE WHEN $2 = 'completed' THEN 100 ELSE progress END,
    updated_at = NOW()
WHERE id = $1
  AND status IN ($7, $8);
`
	tag, err := r.pool.Exec(ctx, query,
		jobID, status, videoURL, thumbnailURL, duration, nullableString(errorDetail),
		domain.JobStatusPending, domain.JobStatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("apply terminal status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, jobID); err != nil {
		return false, err
	}
	// The job exists but is already terminal; the redundant signal is absorbed.
	return false, nil
}

// UpdateProgress raises the progress of a live job. The guard makes
// decreases and writes to terminal jobs match zero rows.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", domain.ErrValidation, progress)
	}
	query := `
UPDATE generation_jobs
SET progress = $2,
    updated_at = NOW()
WHERE id = $1
  AND status IN ($3, $4)
  AND progress < $2;
`
	if _, err := r.pool.Exec(ctx, query, jobID, progress, domain.JobStatusPending, domain.JobStatusProcessing); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// ListStale returns live jobs untouched since the cutoff, oldest first.
func (r *JobRepositoryPG) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.GenerationJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM generation_jobs
WHERE status IN ($1, $2)
  AND updated_at < $3
ORDER BY updated_at
LIMIT $4;
`
	rows, err := r.pool.Query(ctx, query, domain.JobStatusPending, domain.JobStatusProcessing, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var correlationID, videoURL, thumbnailURL, errorDetail *string
	var duration *int
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&correlationID,
		&job.Status,
		&job.Script,
		&videoURL,
		&thumbnailURL,
		&duration,
		&errorDetail,
		&job.Progress,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if correlationID != nil {
		job.CorrelationID = *correlationID
	}
	if errorDetail != nil {
		job.ErrorDetail = *errorDetail
	}
	if videoURL != nil {
		job.Result = &domain.GenerationResult{VideoURL: *videoURL}
		if thumbnailURL != nil {
			job.Result.ThumbnailURL = *thumbnailURL
		}
		if duration != nil {
			job.Result.DurationSeconds = *duration
		}
	}
	return &job, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
