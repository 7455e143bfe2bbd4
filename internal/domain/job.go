package domain

import "time"

// JobType enumerates supported edit job categories.
type JobType string

const (
	JobTypeBatchEdit JobType = "batch_edit"
	JobTypeReEdit    JobType = "re_edit"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusPartial   JobStatus = "partial"
	JobStatusFailed    JobStatus = "failed"
)

// JobProgress mirrors the orchestrator's per-item notifications so clients
// can poll completion without waiting for the whole batch.
type JobProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	LastIndex int `json:"last_index"`
}

// Job encapsulates the lifecycle of one batch edit or re-edit.
type Job struct {
	ID           string
	Type         JobType
	Status       JobStatus
	PayloadJSON  []byte
	ResultJSON   []byte
	Progress     JobProgress
	Provider     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
