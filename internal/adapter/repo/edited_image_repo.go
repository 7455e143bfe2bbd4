package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// EditedImageRepositoryPG implements domain.EditedImageRepository.
type EditedImageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewEditedImageRepository creates a new edited-image repository backed by PostgreSQL.
func NewEditedImageRepository(pool *pgxpool.Pool) *EditedImageRepositoryPG {
	return &EditedImageRepositoryPG{pool: pool}
}

// Append inserts a new record. Records are never updated; a re-edit appends a
// new row with a higher version for the same source image.
func (r *EditedImageRepositoryPG) Append(ctx context.Context, record *domain.EditedImage) error {
	params, err := json.Marshal(record.Parameters)
	if err != nil {
		return err
	}
	query := `
INSERT INTO edited_images (id, name, source_image_id, job_id, url, source_key, edited_key, parameters_json, version, logo_applied, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err = r.pool.Exec(ctx, query,
		record.ID,
		record.Name,
		record.SourceImageID,
		record.JobID,
		record.URL,
		record.SourceKey,
		record.EditedKey,
		params,
		record.Version,
		record.LogoApplied,
		record.CreatedAt,
	)
	return err
}

// GetByID fetches one record by its identifier.
func (r *EditedImageRepositoryPG) GetByID(ctx context.Context, id string) (*domain.EditedImage, error) {
	query := selectColumns + `
WHERE id = $1;
`
	return scanEditedImage(r.pool.QueryRow(ctx, query, id))
}

// LatestBySourceImage fetches the highest-version record for a source image.
func (r *EditedImageRepositoryPG) LatestBySourceImage(ctx context.Context, sourceImageID string) (*domain.EditedImage, error) {
	query := selectColumns + `
WHERE source_image_id = $1
ORDER BY version DESC
LIMIT 1;
`
	return scanEditedImage(r.pool.QueryRow(ctx, query, sourceImageID))
}

// ListByJobID returns every record created by one job, oldest first.
func (r *EditedImageRepositoryPG) ListByJobID(ctx context.Context, jobID string) ([]domain.EditedImage, error) {
	query := selectColumns + `
WHERE job_id = $1
ORDER BY created_at;
`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.EditedImage
	for rows.Next() {
		record, err := scanEditedImage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

const selectColumns = `
SELECT id, name, source_image_id, job_id, url, source_key, edited_key, parameters_json, version, logo_applied, created_at
FROM edited_images`

func scanEditedImage(row pgx.Row) (*domain.EditedImage, error) {
	var (
		record domain.EditedImage
		params []byte
	)
	if err := row.Scan(
		&record.ID,
		&record.Name,
		&record.SourceImageID,
		&record.JobID,
		&record.URL,
		&record.SourceKey,
		&record.EditedKey,
		&params,
		&record.Version,
		&record.LogoApplied,
		&record.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &record.Parameters); err != nil {
			return nil, err
		}
	}
	return &record, nil
}
