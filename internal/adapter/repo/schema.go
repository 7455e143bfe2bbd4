package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables this service owns. Idempotent; both
// binaries call it on boot so either can be started first.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id            TEXT PRIMARY KEY,
    type          TEXT NOT NULL,
    status        TEXT NOT NULL,
    payload_json  JSONB,
    result_json   JSONB,
    progress_json JSONB,
    provider      TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at);

CREATE TABLE IF NOT EXISTS edited_images (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    source_image_id TEXT NOT NULL,
    job_id          TEXT NOT NULL,
    url             TEXT NOT NULL,
    source_key      TEXT NOT NULL,
    edited_key      TEXT NOT NULL,
    parameters_json JSONB NOT NULL,
    version         INT NOT NULL,
    logo_applied    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_edited_images_source_version ON edited_images (source_image_id, version DESC);
CREATE INDEX IF NOT EXISTS idx_edited_images_job ON edited_images (job_id);
`
	_, err := pool.Exec(ctx, schema)
	return err
}
