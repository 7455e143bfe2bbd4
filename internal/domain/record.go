package domain

import (
	"time"

	"server/internal/overlay"
)

// EditedImage is the persisted outcome of one successful batch item.
// Later re-edits append a new record with a bumped version instead of
// mutating this one.
type EditedImage struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	SourceImageID string             `json:"source_image_id"`
	JobID         string             `json:"job_id"`
	URL           string             `json:"url"`
	SourceKey     string             `json:"source_key"`
	EditedKey     string             `json:"edited_key"`
	Parameters    overlay.Parameters `json:"parameters"`
	Version       int                `json:"version"`
	LogoApplied   bool               `json:"logo_applied"`
	CreatedAt     time.Time          `json:"created_at"`
}
