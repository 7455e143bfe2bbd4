package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"server/internal/adapter/repo"
	"server/internal/batch"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/providers/detector"
	"server/internal/providers/genai"
	provider "server/internal/providers/image"
	"server/internal/storage"
)

type jobWorker struct {
	ctx      context.Context
	jobs     domain.JobRepository
	pipeline *pipeline.Pipeline
	poll     time.Duration
	logger   infra.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to ensure schema")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}

	editor, err := buildEditor(cfg, geminiClient, httpClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure edit provider")
	}

	var brandDetector detector.Detector
	var analyzer pipeline.Analyzer
	if geminiClient.HasCredentials() {
		brandDetector = detector.NewGeminiDetector(geminiClient, cfg.DetectorCacheTTL, logger)
		analyzer = geminiClient
	} else {
		logger.Warn().Msg("worker: gemini api key missing, brand detection and quality review disabled")
	}

	var limiter *rate.Limiter
	if cfg.EditRatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.EditRatePerMin)), cfg.BatchChunkSize)
	}

	pl := pipeline.New(pipeline.Options{
		Editor:   editor,
		Detector: brandDetector,
		Analyzer: analyzer,
		Store:    store,
		Jobs:     repo.NewJobRepository(pool),
		Images:   repo.NewEditedImageRepository(pool),
		Fetch:    httpClient,
		Batch: batch.Options{
			ChunkSize:   cfg.BatchChunkSize,
			MaxAttempts: cfg.BatchMaxAttempts,
			Limiter:     limiter,
		},
		Logger: logger,
	})

	worker := &jobWorker{
		ctx:      ctx,
		jobs:     repo.NewJobRepository(pool),
		pipeline: pl,
		poll:     cfg.WorkerPollEvery,
		logger:   logger,
	}
	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *jobWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		job, err := w.jobs.ClaimNext(w.ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.logger.Error().Err(err).Msg("worker: failed to claim job")
			}
			if serr := sleepCtx(w.ctx, w.poll); serr != nil {
				return serr
			}
			continue
		}

		w.logger.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("worker: picked job")
		if err := w.pipeline.Run(w.ctx, job); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: job failed")
		}
	}
}

func buildEditor(cfg *infra.Config, geminiClient *genai.Client, httpClient *http.Client, logger infra.Logger) (provider.Editor, error) {
	switch strings.ToLower(cfg.EditProvider) {
	case "qwen":
		if cfg.QwenAPIKey == "" {
			logger.Warn().Msg("worker: qwen api key missing, edits will fail until it is set")
		}
		return provider.NewQwenEditor(provider.QwenOptions{
			APIKey:     cfg.QwenAPIKey,
			Model:      cfg.QwenModel,
			BaseURL:    cfg.QwenBaseURL,
			HTTPClient: httpClient,
		}), nil
	default:
		if !geminiClient.HasCredentials() {
			logger.Warn().Msg("worker: gemini api key missing, edits will fail until it is set")
		}
		return provider.NewGeminiEditor(geminiClient), nil
	}
}

func buildStore(ctx context.Context, cfg *infra.Config) (storage.Store, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.StorageBaseURL,
		})
	}
	return storage.NewFileStore(cfg.StorageBasePath, cfg.StorageBaseURL)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
