package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, type, status, payload_json, result_json, progress_json, provider, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	progress, err := json.Marshal(job.Progress)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.Type,
		job.Status,
		job.PayloadJSON,
		job.ResultJSON,
		progress,
		job.Provider,
		job.ErrorMessage,
	)
	return err
}

// UpdateStatus updates job status and optionally error/result payloads.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultJSON []byte) error {
	query := `
UPDATE jobs
SET status = $2,
    updated_at = NOW(),
    error_message = COALESCE($3, error_message),
    result_json = COALESCE($4, result_json)
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, status, errMsg, nullableBytes(resultJSON))
	return err
}

// UpdateProgress overwrites the job's progress document.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress domain.JobProgress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	query := `
UPDATE jobs
SET progress_json = $2,
    updated_at = NOW()
WHERE id = $1;
`
	_, err = r.pool.Exec(ctx, query, jobID, raw)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, type, status, payload_json, result_json, progress_json, provider, error_message, created_at, updated_at
FROM jobs
WHERE id = $1;
`
	return r.scanJob(r.pool.QueryRow(ctx, query, jobID))
}

// ClaimNext atomically flips the oldest queued job to running and returns it.
// SKIP LOCKED keeps concurrent workers from claiming the same row.
func (r *JobRepositoryPG) ClaimNext(ctx context.Context) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = 'running',
    updated_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'queued'
    ORDER BY created_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING id, type, status, payload_json, result_json, progress_json, provider, error_message, created_at, updated_at;
`
	return r.scanJob(r.pool.QueryRow(ctx, query))
}

func (r *JobRepositoryPG) scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job      domain.Job
		progress []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&job.PayloadJSON,
		&job.ResultJSON,
		&progress,
		&job.Provider,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &job.Progress); err != nil {
			return nil, err
		}
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
