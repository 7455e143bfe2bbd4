package domain

import "context"

// JobRepository defines persistence for job entities.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg *string, resultJSON []byte) error
	UpdateProgress(ctx context.Context, jobID string, progress JobProgress) error
	ClaimNext(ctx context.Context) (*Job, error)
}

// EditedImageRepository handles persistence for edited image records.
type EditedImageRepository interface {
	Append(ctx context.Context, record *EditedImage) error
	GetByID(ctx context.Context, id string) (*EditedImage, error)
	LatestBySourceImage(ctx context.Context, sourceImageID string) (*EditedImage, error)
	ListByJobID(ctx context.Context, jobID string) ([]EditedImage, error)
}
