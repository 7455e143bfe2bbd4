package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/pipeline"
	"server/pkg/zip"
)

type editImageInput struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	URL      string `json:"url,omitempty" validate:"omitempty,url"`
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

type editSpecInput struct {
	Title         string   `json:"title" validate:"required"`
	Subtitle      string   `json:"subtitle"`
	AssetID       string   `json:"asset_id,omitempty"`
	LogoRequested bool     `json:"logo_requested"`
	LogoNames     []string `json:"logo_names,omitempty"`
	BasePrompt    string   `json:"base_prompt"`
	Language      string   `json:"language,omitempty" validate:"omitempty,oneof=en id"`
}

type editCreateRequest struct {
	Images []editImageInput `json:"images" validate:"required,min=1,dive"`
	Specs  []editSpecInput  `json:"specs" validate:"required,min=1,dive"`
}

type jobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// EditsCreate queues a batch edit job. The worker picks it up; clients poll
// EditStatus for progress.
func (a *App) EditsCreate(w http.ResponseWriter, r *http.Request) {
	var req editCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "validation", validationMessage(err))
		return
	}
	for i, img := range req.Images {
		if img.URL == "" && len(img.Data) == 0 {
			a.error(w, http.StatusBadRequest, "validation", fmt.Sprintf("images[%d] needs url or data", i))
			return
		}
	}

	payload := pipeline.BatchPayload{
		Images: make([]domain.SourceImage, len(req.Images)),
		Specs:  make([]domain.ImageSpec, len(req.Specs)),
		Locale: middleware.LocaleFromContext(r.Context()),
	}
	for i, img := range req.Images {
		id := img.ID
		if id == "" {
			id = uuid.NewString()
		}
		payload.Images[i] = domain.SourceImage{ID: id, Name: img.Name, URL: img.URL, Data: img.Data, MIMEType: img.MIMEType}
	}
	for i, spec := range req.Specs {
		payload.Specs[i] = domain.ImageSpec{
			Title:         spec.Title,
			Subtitle:      spec.Subtitle,
			AssetID:       spec.AssetID,
			LogoRequested: spec.LogoRequested,
			LogoNames:     spec.LogoNames,
			BasePrompt:    spec.BasePrompt,
			Language:      spec.Language,
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to encode payload")
		return
	}
	job := &domain.Job{
		ID:          uuid.NewString(),
		Type:        domain.JobTypeBatchEdit,
		Status:      domain.JobStatusQueued,
		PayloadJSON: raw,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: queue batch job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{JobID: job.ID, Status: string(job.Status)})
}

// EditStatus reports job state, progress, and the per-item outcomes once the
// job finishes.
func (a *App) EditStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	var outcomes []pipeline.ItemOutcome
	if len(job.ResultJSON) > 0 {
		_ = json.Unmarshal(job.ResultJSON, &outcomes)
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":         job.ID,
		"type":       job.Type,
		"status":     job.Status,
		"progress":   job.Progress,
		"error":      job.ErrorMessage,
		"items":      outcomes,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	})
}

// EditImages lists the edited-image records a job produced.
func (a *App) EditImages(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Jobs.GetByID(r.Context(), jobID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	records, err := a.Images.ListByJobID(r.Context(), jobID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: list job images")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list images")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"images": records})
}

// EditArchive streams every edited raster of a job as one zip download.
func (a *App) EditArchive(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	records, err := a.Images.ListByJobID(r.Context(), jobID)
	if err != nil || len(records) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no images for job")
		return
	}

	assets := make([]zip.Asset, 0, len(records))
	for _, rec := range records {
		data, err := a.Store.Download(r.Context(), rec.EditedKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", rec.EditedKey).Msg("handlers: archive skipping blob")
			continue
		}
		assets = append(assets, zip.Asset{Filename: rec.Name, MIME: "image/png", Data: data})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no stored rasters for job")
		return
	}

	buf, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: build archive")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".zip"))
	_, _ = w.Write(buf)
}

func validationMessage(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return fmt.Sprintf("invalid field %s (%s)", verrs[0].Namespace(), verrs[0].Tag())
	}
	return "invalid payload"
}
