package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/overlay"
	"server/internal/pipeline"
)

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newFakeJobs() *fakeJobs { return &fakeJobs{jobs: map[string]*domain.Job{}} }

func (f *fakeJobs) Create(ctx context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobs) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[jobID]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultJSON []byte) error {
	return nil
}

func (f *fakeJobs) UpdateProgress(ctx context.Context, jobID string, progress domain.JobProgress) error {
	return nil
}

func (f *fakeJobs) ClaimNext(ctx context.Context) (*domain.Job, error) {
	return nil, domain.ErrNotFound
}

type fakeImages struct {
	records map[string]*domain.EditedImage
	byJob   map[string][]domain.EditedImage
}

func newFakeImages() *fakeImages {
	return &fakeImages{records: map[string]*domain.EditedImage{}, byJob: map[string][]domain.EditedImage{}}
}

func (f *fakeImages) Append(ctx context.Context, record *domain.EditedImage) error {
	cp := *record
	f.records[record.ID] = &cp
	f.byJob[record.JobID] = append(f.byJob[record.JobID], cp)
	return nil
}

func (f *fakeImages) GetByID(ctx context.Context, id string) (*domain.EditedImage, error) {
	if rec, ok := f.records[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeImages) LatestBySourceImage(ctx context.Context, sourceImageID string) (*domain.EditedImage, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeImages) ListByJobID(ctx context.Context, jobID string) ([]domain.EditedImage, error) {
	return f.byJob[jobID], nil
}

type fakeStore struct {
	blobs map[string][]byte
}

func (f *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.blobs[key] = data
	return key, nil
}

func (f *fakeStore) Download(ctx context.Context, key string) ([]byte, error) {
	if data, ok := f.blobs[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
}

func (f *fakeStore) PublicURL(key string) string { return "http://assets.test/" + key }

func newTestApp() (*App, *fakeJobs, *fakeImages, *fakeStore) {
	jobs := newFakeJobs()
	images := newFakeImages()
	store := &fakeStore{blobs: map[string][]byte{}}
	pl := pipeline.New(pipeline.Options{
		Store:  store,
		Jobs:   jobs,
		Images: images,
		Logger: zerolog.Nop(),
	})
	app := NewApp(jobs, images, store, pl, zerolog.Nop())
	return app, jobs, images, store
}

func doRequest(app *App, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	r.Post("/v1/edits", app.EditsCreate)
	r.Get("/v1/edits/{job_id}", app.EditStatus)
	r.Get("/v1/edits/{job_id}/images", app.EditImages)
	r.Get("/v1/edits/{job_id}/archive", app.EditArchive)
	r.Get("/v1/images/{id}", app.ImageGet)
	r.Post("/v1/images/{id}/reedit", app.ImageReEdit)
	r.Get("/v1/images/{id}/layered", app.ImageLayered)
	r.ServeHTTP(rec, req)
	return rec
}

func TestEditsCreateQueuesJob(t *testing.T) {
	app, jobs, _, _ := newTestApp()

	rec := doRequest(app, http.MethodPost, "/v1/edits", map[string]any{
		"images": []map[string]any{{"name": "promo.png", "url": "http://img.test/promo.png"}},
		"specs":  []map[string]any{{"title": "GRAND OPENING", "subtitle": "This weekend"}},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "queued" || resp.JobID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	job, err := jobs.GetByID(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	var payload pipeline.BatchPayload
	if err := json.Unmarshal(job.PayloadJSON, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Images) != 1 || payload.Images[0].ID == "" {
		t.Fatalf("payload images: %+v", payload.Images)
	}
}

func TestEditsCreateCarriesLocale(t *testing.T) {
	app, jobs, _, _ := newTestApp()

	raw, _ := json.Marshal(map[string]any{
		"images": []map[string]any{{"name": "promo.png", "url": "http://img.test/promo.png"}},
		"specs": []map[string]any{
			{"title": "DISKON BESAR"},
			{"title": "BIG SALE", "language": "en"},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/edits", bytes.NewReader(raw))
	req.Header.Set("X-Locale", "id")
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	r.Use(middleware.I18N("en", nil))
	r.Post("/v1/edits", app.EditsCreate)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp jobResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	job, err := jobs.GetByID(context.Background(), resp.JobID)
	if err != nil {
		t.Fatal(err)
	}
	var payload pipeline.BatchPayload
	if err := json.Unmarshal(job.PayloadJSON, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Locale != "id" {
		t.Fatalf("payload locale = %q, want id", payload.Locale)
	}
	if payload.Specs[0].Language != "" || payload.Specs[1].Language != "en" {
		t.Fatalf("spec languages wrong: %+v", payload.Specs)
	}
}

func TestEditsCreateValidation(t *testing.T) {
	app, _, _, _ := newTestApp()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"no images", map[string]any{"specs": []map[string]any{{"title": "X"}}}},
		{"no specs", map[string]any{"images": []map[string]any{{"name": "a.png", "url": "http://x/a.png"}}}},
		{"spec without title", map[string]any{
			"images": []map[string]any{{"name": "a.png", "url": "http://x/a.png"}},
			"specs":  []map[string]any{{"subtitle": "only"}},
		}},
		{"image without source", map[string]any{
			"images": []map[string]any{{"name": "a.png"}},
			"specs":  []map[string]any{{"title": "X"}},
		}},
	}
	for _, tc := range cases {
		rec := doRequest(app, http.MethodPost, "/v1/edits", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestEditStatusNotFound(t *testing.T) {
	app, _, _, _ := newTestApp()
	rec := doRequest(app, http.MethodGet, "/v1/edits/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestEditStatusReportsProgress(t *testing.T) {
	app, jobs, _, _ := newTestApp()
	job := &domain.Job{
		ID:       "job-7",
		Type:     domain.JobTypeBatchEdit,
		Status:   domain.JobStatusRunning,
		Progress: domain.JobProgress{Completed: 3, Total: 10, LastIndex: 4},
	}
	_ = jobs.Create(context.Background(), job)

	rec := doRequest(app, http.MethodGet, "/v1/edits/job-7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status   string             `json:"status"`
		Progress domain.JobProgress `json:"progress"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "running" || body.Progress.Completed != 3 || body.Progress.Total != 10 {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestImageReEditValidatesBounds(t *testing.T) {
	app, jobs, images, _ := newTestApp()
	_ = images.Append(context.Background(), &domain.EditedImage{ID: "img-1", Name: "a.png"})

	rec := doRequest(app, http.MethodPost, "/v1/images/img-1/reedit", map[string]any{
		"gradient": map[string]any{"opacity": 0.9},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range opacity accepted: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(app, http.MethodPost, "/v1/images/img-1/reedit", map[string]any{
		"gradient": map[string]any{"opacity": 0.45},
		"title":    map[string]any{"alignment": "center"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp jobResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	job, err := jobs.GetByID(context.Background(), resp.JobID)
	if err != nil {
		t.Fatal(err)
	}
	var payload pipeline.ReEditPayload
	if err := json.Unmarshal(job.PayloadJSON, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.ImageID != "img-1" || payload.Updates.Gradient == nil || *payload.Updates.Gradient.Opacity != 0.45 {
		t.Fatalf("payload mismatch: %+v", payload)
	}
	if payload.Updates.Title == nil || *payload.Updates.Title.Alignment != overlay.AlignCenter {
		t.Fatalf("title update missing: %+v", payload.Updates.Title)
	}
}

func TestImageReEditUnknownImage(t *testing.T) {
	app, _, _, _ := newTestApp()
	rec := doRequest(app, http.MethodPost, "/v1/images/nope/reedit", map[string]any{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestImageLayeredDownload(t *testing.T) {
	app, _, images, store := newTestApp()

	raster := encodePNG(t, 20, 10)
	store.blobs["s.png"] = raster
	store.blobs["e.png"] = raster
	_ = images.Append(context.Background(), &domain.EditedImage{
		ID: "img-2", Name: "summer-sale.jpg", SourceKey: "s.png", EditedKey: "e.png",
	})

	rec := doRequest(app, http.MethodGet, "/v1/images/img-2/layered", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "summer-sale.psd") {
		t.Fatalf("content disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("8BPS")) {
		t.Fatal("body is not a PSD buffer")
	}
}

func TestEditArchive(t *testing.T) {
	app, _, images, store := newTestApp()
	store.blobs["k1"] = []byte("raster-1")
	store.blobs["k2"] = []byte("raster-2")
	_ = images.Append(context.Background(), &domain.EditedImage{ID: "a", Name: "a.png", JobID: "job-z", EditedKey: "k1"})
	_ = images.Append(context.Background(), &domain.EditedImage{ID: "b", Name: "b.png", JobID: "job-z", EditedKey: "k2"})

	rec := doRequest(app, http.MethodGet, "/v1/edits/job-z/archive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}
	// Zip local file header magic.
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte{'P', 'K', 3, 4}) {
		t.Fatal("body is not a zip archive")
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{50, 60, 70, 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
