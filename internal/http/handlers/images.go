package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/overlay"
	"server/internal/pipeline"
)

// reEditRequest mirrors overlay.Update with bounds enforced at the API edge;
// the merge itself applies values as given.
type reEditRequest struct {
	Title *struct {
		Text       *string `json:"text,omitempty"`
		FontSizePx *int    `json:"font_size_px,omitempty" validate:"omitempty,min=12,max=200"`
		Color      *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
		Alignment  *string `json:"alignment,omitempty" validate:"omitempty,oneof=left center right"`
	} `json:"title,omitempty"`
	Subtitle *struct {
		Text  *string `json:"text,omitempty"`
		Color *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	} `json:"subtitle,omitempty"`
	Gradient *struct {
		Enabled       *bool    `json:"enabled,omitempty"`
		HeightPercent *int     `json:"height_percent,omitempty" validate:"omitempty,min=5,max=60"`
		Opacity       *float64 `json:"opacity,omitempty" validate:"omitempty,min=0.1,max=0.6"`
		Position      *string  `json:"position,omitempty" validate:"omitempty,oneof=top bottom"`
	} `json:"gradient,omitempty"`
	Logo *struct {
		Enabled       *bool    `json:"enabled,omitempty"`
		Position      *string  `json:"position,omitempty" validate:"omitempty,oneof=top-left top-right bottom-left bottom-right"`
		SizePercent   *float64 `json:"size_percent,omitempty" validate:"omitempty,min=4,max=25"`
		MarginPercent *float64 `json:"margin_percent,omitempty" validate:"omitempty,min=1,max=10"`
	} `json:"logo,omitempty"`
	Margins *struct {
		TopPercent  *float64 `json:"top_percent,omitempty" validate:"omitempty,min=0,max=40"`
		LeftPercent *float64 `json:"left_percent,omitempty" validate:"omitempty,min=0,max=40"`
	} `json:"margins,omitempty"`
}

func (req reEditRequest) toUpdate() overlay.Update {
	var u overlay.Update
	if req.Title != nil {
		u.Title = &overlay.TitleUpdate{
			Text:       req.Title.Text,
			FontSizePx: req.Title.FontSizePx,
			Color:      req.Title.Color,
			Alignment:  req.Title.Alignment,
		}
	}
	if req.Subtitle != nil {
		u.Subtitle = &overlay.SubtitleUpdate{Text: req.Subtitle.Text, Color: req.Subtitle.Color}
	}
	if req.Gradient != nil {
		u.Gradient = &overlay.GradientUpdate{
			Enabled:       req.Gradient.Enabled,
			HeightPercent: req.Gradient.HeightPercent,
			Opacity:       req.Gradient.Opacity,
			Position:      req.Gradient.Position,
		}
	}
	if req.Logo != nil {
		u.Logo = &overlay.LogoUpdate{
			Enabled:       req.Logo.Enabled,
			Position:      req.Logo.Position,
			SizePercent:   req.Logo.SizePercent,
			MarginPercent: req.Logo.MarginPercent,
		}
	}
	if req.Margins != nil {
		u.Margins = &overlay.MarginsUpdate{TopPercent: req.Margins.TopPercent, LeftPercent: req.Margins.LeftPercent}
	}
	return u
}

// ImageGet returns one edited-image record.
func (a *App) ImageGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := a.Images.GetByID(r.Context(), id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "image not found")
		return
	}
	a.json(w, http.StatusOK, record)
}

// ImageReEdit queues a re-edit job that merges the partial update onto the
// image's stored parameters and renders a new version.
func (a *App) ImageReEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.Images.GetByID(r.Context(), id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "image not found")
		return
	}

	var req reEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "validation", validationMessage(err))
		return
	}

	raw, err := json.Marshal(pipeline.ReEditPayload{ImageID: id, Updates: req.toUpdate()})
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to encode payload")
		return
	}
	job := &domain.Job{
		ID:          uuid.NewString(),
		Type:        domain.JobTypeReEdit,
		Status:      domain.JobStatusQueued,
		PayloadJSON: raw,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("image_id", id).Msg("handlers: queue re-edit job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{JobID: job.ID, Status: string(job.Status)})
}

// ImageLayered serves the two-layer PSD export for an edited image.
func (a *App) ImageLayered(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	buf, filename, err := a.Pipeline.LayeredExport(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "image not found")
			return
		}
		a.Logger.Error().Err(err).Str("image_id", id).Msg("handlers: layered export")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build layered file")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(buf)
}
