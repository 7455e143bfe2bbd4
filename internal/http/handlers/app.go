package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/pipeline"
	"server/internal/storage"
)

type App struct {
	Jobs     domain.JobRepository
	Images   domain.EditedImageRepository
	Store    storage.Store
	Pipeline *pipeline.Pipeline
	Logger   zerolog.Logger

	validate *validator.Validate
}

func NewApp(jobs domain.JobRepository, images domain.EditedImageRepository, store storage.Store, pl *pipeline.Pipeline, logger zerolog.Logger) *App {
	return &App{
		Jobs:     jobs,
		Images:   images,
		Store:    store,
		Pipeline: pl,
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}
