// Package pipeline runs edit jobs end to end: match images to specs, compile
// prompts, fan edits out to the provider, composite logos, and persist the
// resulting records.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/batch"
	"server/internal/domain"
	"server/internal/layered"
	"server/internal/logo"
	"server/internal/overlay"
	"server/internal/providers/detector"
	provider "server/internal/providers/image"
	"server/internal/storage"
)

// Analyzer runs a vision prompt against a raster and returns prose. Used for
// the detached post-edit quality review.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, instruction string, imageData []byte, imageMIME string) (string, error)
}

// BatchPayload is the queued input of a batch edit job. Locale is the
// caller's detected locale and supplies the caption language for any spec
// that does not name its own.
type BatchPayload struct {
	Images []domain.SourceImage `json:"images"`
	Specs  []domain.ImageSpec   `json:"specs"`
	Locale string               `json:"locale,omitempty"`
}

// ReEditPayload is the queued input of a re-edit job.
type ReEditPayload struct {
	ImageID string         `json:"image_id"`
	Updates overlay.Update `json:"updates"`
}

// ItemOutcome summarizes one batch item for the job result document.
type ItemOutcome struct {
	Index   int    `json:"index"`
	ImageID string `json:"image_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Options wires the pipeline's collaborators. Editor, Store, Jobs and Images
// are required; Detector and Analyzer degrade gracefully when absent.
type Options struct {
	Editor   provider.Editor
	Detector detector.Detector
	Analyzer Analyzer
	Store    storage.Store
	Jobs     domain.JobRepository
	Images   domain.EditedImageRepository
	Fetch    *http.Client
	Batch    batch.Options
	Logger   zerolog.Logger
}

// Pipeline executes queued jobs.
type Pipeline struct {
	editor   provider.Editor
	detector detector.Detector
	analyzer Analyzer
	store    storage.Store
	jobs     domain.JobRepository
	images   domain.EditedImageRepository
	fetch    *http.Client
	batch    batch.Options
	logger   zerolog.Logger
}

func New(opts Options) *Pipeline {
	fetch := opts.Fetch
	if fetch == nil {
		fetch = &http.Client{Timeout: 60 * time.Second}
	}
	return &Pipeline{
		editor:   opts.Editor,
		detector: opts.Detector,
		analyzer: opts.Analyzer,
		store:    opts.Store,
		jobs:     opts.Jobs,
		images:   opts.Images,
		fetch:    fetch,
		batch:    opts.Batch,
		logger:   opts.Logger,
	}
}

// Run executes one claimed job to completion and persists the outcome. The
// returned error mirrors what was written to the job row.
func (p *Pipeline) Run(ctx context.Context, job *domain.Job) error {
	var err error
	switch job.Type {
	case domain.JobTypeBatchEdit:
		err = p.runBatch(ctx, job)
	case domain.JobTypeReEdit:
		err = p.runReEdit(ctx, job)
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
	}
	if err != nil {
		msg := err.Error()
		if uerr := p.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, &msg, nil); uerr != nil {
			p.logger.Error().Err(uerr).Str("job_id", job.ID).Msg("pipeline: mark job failed")
		}
	}
	return err
}

func (p *Pipeline) runBatch(ctx context.Context, job *domain.Job) error {
	var payload BatchPayload
	if err := json.Unmarshal(job.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode batch payload: %w", err)
	}
	if len(payload.Images) == 0 {
		return domain.ErrNoImages
	}
	if len(payload.Specs) == 0 {
		return domain.ErrNoSpecs
	}
	if p.editor == nil {
		return domain.ErrNoEditor
	}

	pairs := domain.MatchImagesToSpecs(payload.Images, payload.Specs)

	type prepared struct {
		pair   domain.ImageSpecPair
		source []byte
		mime   string
		params overlay.Parameters
	}
	items := make([]batch.Item, 0, len(pairs))
	preparedByIndex := make(map[int]prepared, len(pairs))
	outcomes := make([]ItemOutcome, len(pairs))

	for i, pair := range pairs {
		outcomes[i] = ItemOutcome{Index: i}
		data, mime, err := p.resolveSource(ctx, pair.Image)
		if err != nil {
			outcomes[i].Error = err.Error()
			p.logger.Warn().Err(err).Int("index", i).Msg("pipeline: source unavailable")
			continue
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			outcomes[i].Error = fmt.Sprintf("decode source image: %v", err)
			p.logger.Warn().Err(err).Int("index", i).Msg("pipeline: undecodable source")
			continue
		}

		params := overlay.CalculateDefaultParameters(cfg.Width, cfg.Height, pair.Spec.Title, pair.Spec.Subtitle)
		params.Language = captionLanguage(pair.Spec, payload.Locale)
		preparedByIndex[i] = prepared{pair: pair, source: data, mime: mime, params: params}
		items = append(items, batch.Item{
			Index:  i,
			Source: provider.SourceImage{Data: data, MIMEType: mime, Name: pair.Image.Name},
			Prompt: compilePrompt(pair.Spec.BasePrompt, params),
		})
	}

	if err := p.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusRunning, nil, nil); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	opts := p.batch
	opts.OnProgress = func(pr batch.Progress) {
		progress := domain.JobProgress{Completed: pr.Completed, Total: pr.Total, LastIndex: pr.LastIndex}
		if err := p.jobs.UpdateProgress(ctx, job.ID, progress); err != nil {
			p.logger.Warn().Err(err).Str("job_id", job.ID).Msg("pipeline: persist progress")
		}
	}
	orch := batch.NewOrchestrator(p.editor, p.logger, opts)
	results := orch.EditBatch(ctx, items)

	succeeded := 0
	for _, res := range results {
		prep := preparedByIndex[res.Index]
		if res.Failed() {
			outcomes[res.Index].Error = res.Err.Error()
			continue
		}
		record, err := p.finalizeItem(ctx, job.ID, res.Index, prep.pair, prep.source, prep.params, res.Raster)
		if err != nil {
			outcomes[res.Index].Error = err.Error()
			p.logger.Error().Err(err).Int("index", res.Index).Msg("pipeline: finalize item")
			continue
		}
		succeeded++
		outcomes[res.Index].ImageID = record.ID
		outcomes[res.Index].URL = record.URL
	}

	resultJSON, _ := json.Marshal(outcomes)
	status := domain.JobStatusSucceeded
	switch {
	case succeeded == 0:
		msg := "every batch item failed"
		if uerr := p.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, &msg, resultJSON); uerr != nil {
			return uerr
		}
		return fmt.Errorf("batch job %s: %s", job.ID, msg)
	case succeeded < len(pairs):
		status = domain.JobStatusPartial
	}
	return p.jobs.UpdateStatus(ctx, job.ID, status, nil, resultJSON)
}

// finalizeItem turns one successful provider result into a stored record:
// resolve the raster, composite requested logos, upload both rasters, and
// append the edited-image row.
func (p *Pipeline) finalizeItem(ctx context.Context, jobID string, index int, pair domain.ImageSpecPair, source []byte, params overlay.Parameters, raster provider.RasterRef) (*domain.EditedImage, error) {
	edited, err := p.resolveRaster(ctx, raster)
	if err != nil {
		return nil, fmt.Errorf("resolve edited raster: %w", err)
	}

	logoApplied := false
	if pair.Spec.LogoRequested && len(pair.Spec.LogoNames) > 0 {
		composited, applied := p.applyLogos(ctx, pair.Spec, edited)
		edited = composited
		logoApplied = applied
	}

	sourceKey, err := p.store.Upload(ctx, fmt.Sprintf("jobs/%s/source-%d.png", jobID, index), source, "image/png")
	if err != nil {
		return nil, fmt.Errorf("upload source raster: %w", err)
	}
	editedKey, err := p.store.Upload(ctx, fmt.Sprintf("jobs/%s/edited-%d-v%d.png", jobID, index, params.Version), edited, "image/png")
	if err != nil {
		return nil, fmt.Errorf("upload edited raster: %w", err)
	}

	record := &domain.EditedImage{
		ID:            uuid.NewString(),
		Name:          pair.Image.Name,
		SourceImageID: pair.Image.ID,
		JobID:         jobID,
		URL:           p.store.PublicURL(editedKey),
		SourceKey:     sourceKey,
		EditedKey:     editedKey,
		Parameters:    params,
		Version:       params.Version,
		LogoApplied:   logoApplied,
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.images.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("append edited image: %w", err)
	}

	p.reviewQuality(record.ID, edited)
	return record, nil
}

func (p *Pipeline) runReEdit(ctx context.Context, job *domain.Job) error {
	var payload ReEditPayload
	if err := json.Unmarshal(job.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode re-edit payload: %w", err)
	}
	if p.editor == nil {
		return domain.ErrNoEditor
	}

	prev, err := p.images.GetByID(ctx, payload.ImageID)
	if err != nil {
		return fmt.Errorf("load image %s: %w", payload.ImageID, err)
	}
	source, err := p.store.Download(ctx, prev.SourceKey)
	if err != nil {
		return fmt.Errorf("download source raster: %w", err)
	}

	merged := overlay.MergeParameterUpdates(prev.Parameters, payload.Updates)
	prompt := compilePrompt("", merged)

	if err := p.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusRunning, nil, nil); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	orch := batch.NewOrchestrator(p.editor, p.logger, p.batch)
	results := orch.EditBatch(ctx, []batch.Item{{
		Index:  0,
		Source: provider.SourceImage{Data: source, MIMEType: "image/png", Name: prev.Name},
		Prompt: prompt,
	}})
	if results[0].Failed() {
		return fmt.Errorf("re-edit image %s: %w", payload.ImageID, results[0].Err)
	}

	edited, err := p.resolveRaster(ctx, results[0].Raster)
	if err != nil {
		return fmt.Errorf("resolve edited raster: %w", err)
	}
	editedKey, err := p.store.Upload(ctx, fmt.Sprintf("jobs/%s/edited-0-v%d.png", job.ID, merged.Version), edited, "image/png")
	if err != nil {
		return fmt.Errorf("upload edited raster: %w", err)
	}

	record := &domain.EditedImage{
		ID:            uuid.NewString(),
		Name:          prev.Name,
		SourceImageID: prev.SourceImageID,
		JobID:         job.ID,
		URL:           p.store.PublicURL(editedKey),
		SourceKey:     prev.SourceKey,
		EditedKey:     editedKey,
		Parameters:    merged,
		Version:       merged.Version,
		LogoApplied:   prev.LogoApplied,
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.images.Append(ctx, record); err != nil {
		return fmt.Errorf("append edited image: %w", err)
	}

	resultJSON, _ := json.Marshal([]ItemOutcome{{Index: 0, ImageID: record.ID, URL: record.URL}})
	p.reviewQuality(record.ID, edited)
	return p.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusSucceeded, nil, resultJSON)
}

// LayeredExport builds the two-layer PSD for an edited image and returns the
// buffer plus the download filename (source name with a .psd extension).
func (p *Pipeline) LayeredExport(ctx context.Context, imageID string) ([]byte, string, error) {
	record, err := p.images.GetByID(ctx, imageID)
	if err != nil {
		return nil, "", err
	}
	source, err := p.store.Download(ctx, record.SourceKey)
	if err != nil {
		return nil, "", fmt.Errorf("download source raster: %w", err)
	}
	edited, err := p.store.Download(ctx, record.EditedKey)
	if err != nil {
		return nil, "", fmt.Errorf("download edited raster: %w", err)
	}
	buf, err := layered.BuildTwoLayerDocument(source, edited)
	if err != nil {
		return nil, "", err
	}
	return buf, psdFilename(record.Name), nil
}

// applyLogos loads the requested logo rasters, removes brands already present
// in the edited raster, and composites the remainder. A failed detection or a
// missing logo asset degrades to fewer logos, never to a failed item.
func (p *Pipeline) applyLogos(ctx context.Context, spec domain.ImageSpec, edited []byte) ([]byte, bool) {
	existing := map[string]struct{}{}
	if p.detector != nil {
		detected, err := p.detector.DetectBrands(ctx, edited, "image/png")
		if err != nil {
			p.logger.Warn().Err(err).Msg("pipeline: brand detection failed, compositing all requested logos")
		} else {
			existing = detected
		}
	}

	var candidates []logo.Candidate
	for _, name := range spec.LogoNames {
		key := canonicalLogoKey(name)
		data, err := p.store.Download(ctx, "logos/"+key+".png")
		if err != nil {
			p.logger.Warn().Err(err).Str("logo", key).Msg("pipeline: logo asset missing")
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			p.logger.Warn().Err(err).Str("logo", key).Msg("pipeline: logo asset undecodable")
			continue
		}
		candidates = append(candidates, logo.Candidate{CanonicalKey: key, Source: img})
	}
	if len(candidates) == 0 {
		return edited, false
	}

	base, _, err := image.Decode(bytes.NewReader(edited))
	if err != nil {
		p.logger.Warn().Err(err).Msg("pipeline: edited raster undecodable, skipping logos")
		return edited, false
	}

	plan := logo.PlanPlacement(candidates, existing, nil)
	if len(plan.Entries) == 0 {
		return edited, false
	}
	out := logo.CompositeLogos(base, plan, p.logger)
	if out == base {
		return edited, false
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, out, imaging.PNG); err != nil {
		p.logger.Error().Err(err).Msg("pipeline: encode composited raster")
		return edited, false
	}
	return buf.Bytes(), true
}

const qualityPrompt = `Review this AI-edited marketing image. In two sentences, note any text rendering defects, halos around the overlay, or color banding in the gradient. Answer "ok" if none.`

// reviewQuality kicks off a detached post-edit review. Failures are logged
// and never affect the job outcome.
func (p *Pipeline) reviewQuality(imageID string, raster []byte) {
	if p.analyzer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		verdict, err := p.analyzer.AnalyzeImage(ctx, qualityPrompt, raster, "image/png")
		if err != nil {
			p.logger.Warn().Err(err).Str("image_id", imageID).Msg("pipeline: quality review failed")
			return
		}
		p.logger.Info().Str("image_id", imageID).Str("verdict", strings.TrimSpace(verdict)).Msg("pipeline: quality review")
	}()
}

func (p *Pipeline) resolveSource(ctx context.Context, img domain.SourceImage) ([]byte, string, error) {
	if len(img.Data) > 0 {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return img.Data, mime, nil
	}
	if img.URL != "" {
		return p.fetchURL(ctx, img.URL)
	}
	return nil, "", fmt.Errorf("image %s has neither data nor url", img.ID)
}

func (p *Pipeline) resolveRaster(ctx context.Context, ref provider.RasterRef) ([]byte, error) {
	switch ref.Kind {
	case provider.RasterInline:
		return ref.Data, nil
	case provider.RasterURL:
		data, _, err := p.fetchURL(ctx, ref.URL)
		return data, err
	default:
		return nil, provider.ErrUnrecognizedPayload
	}
}

func (p *Pipeline) fetchURL(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := p.fetch.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read fetch body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// compilePrompt joins the brief's base prompt with the generated overlay
// instructions.
func compilePrompt(basePrompt string, params overlay.Parameters) string {
	overlayPrompt := overlay.GeneratePrompt(params)
	base := strings.TrimSpace(basePrompt)
	if base == "" {
		return overlayPrompt
	}
	return base + "\n\n" + overlayPrompt
}

// captionLanguage resolves the language the overlay text is written in: the
// spec's own language wins, the request locale is the fallback.
func captionLanguage(spec domain.ImageSpec, locale string) string {
	if spec.Language != "" {
		return spec.Language
	}
	return locale
}

func canonicalLogoKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.Join(strings.Fields(key), "-")
	return key
}

func psdFilename(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "" {
		base = "layered"
	}
	return base + ".psd"
}
