package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// Options carries the router's cross-cutting settings.
type Options struct {
	Config        *infra.Config
	Logger        infra.Logger
	CountryLookup middleware.CountryLookup
	// AssetDir serves stored rasters directly when the fs backend is active.
	// Empty when an object store handles delivery.
	AssetDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	corsOrigins := []string{"http://localhost:3000"}
	if opts.Config != nil && len(opts.Config.CORSAllowedOrigins) > 0 {
		corsOrigins = opts.Config.CORSAllowedOrigins
	}

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(corsOrigins),
		middleware.I18N("en", opts.CountryLookup),
	)
	if opts.Config != nil && opts.Config.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.Config.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/edits", func(r chi.Router) {
		r.Post("/", app.EditsCreate)
		r.Get("/{job_id}", app.EditStatus)
		r.Get("/{job_id}/images", app.EditImages)
		r.Get("/{job_id}/archive", app.EditArchive)
	})

	r.Route("/v1/images", func(r chi.Router) {
		r.Get("/{id}", app.ImageGet)
		r.Post("/{id}/reedit", app.ImageReEdit)
		r.Get("/{id}/layered", app.ImageLayered)
	})

	if opts.AssetDir != "" {
		fs := http.StripPrefix("/assets/", http.FileServer(http.Dir(opts.AssetDir)))
		r.Get("/assets/*", fs.ServeHTTP)
	}

	return r
}
