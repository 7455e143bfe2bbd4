package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	provider "server/internal/providers/image"
)

const (
	// DefaultChunkSize bounds how many edits are in flight at once.
	DefaultChunkSize = 15
	// DefaultMaxAttempts is the per-item retry budget.
	DefaultMaxAttempts = 3
)

// Item is one (image, compiled prompt) unit submitted to the provider.
type Item struct {
	Index  int
	Source provider.SourceImage
	Prompt string
}

// Result is the per-item outcome. Failed items are flagged, never omitted,
// so the result slice always aligns 1:1 with the submitted items.
type Result struct {
	Index  int
	Raster provider.RasterRef
	Err    error
}

// Failed reports whether the item exhausted its retries.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Progress is emitted after every item resolves, success or failure.
type Progress struct {
	Completed int
	Total     int
	LastIndex int
}

// Options tunes orchestration. The zero value picks sensible defaults.
type Options struct {
	ChunkSize   int
	MaxAttempts int
	// Limiter throttles provider calls across the whole batch. Optional.
	Limiter *rate.Limiter
	// OnProgress receives one event per resolved item. Optional.
	OnProgress func(Progress)
	// Sleep is the backoff wait; overridable so tests run instantly.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator fans batches of edit items out to a provider in bounded
// chunks. Chunks run strictly sequentially; items within a chunk run
// concurrently. A failed item never aborts the batch.
type Orchestrator struct {
	editor provider.Editor
	logger zerolog.Logger
	opts   Options
}

func NewOrchestrator(editor provider.Editor, logger zerolog.Logger, opts Options) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Orchestrator{editor: editor, logger: logger, opts: opts}
}

// EditBatch processes all items and returns one result per item, index
// aligned with the input. Chunk N+1 does not start until chunk N fully
// resolves; ordering within a chunk is unspecified and results are
// correlated by explicit index only.
func (o *Orchestrator) EditBatch(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))
	if len(items) == 0 {
		return results
	}

	var (
		mu        sync.Mutex
		completed int
	)
	resolve := func(idx int, res Result) {
		mu.Lock()
		results[idx] = res
		completed++
		done := completed
		mu.Unlock()
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(Progress{Completed: done, Total: len(items), LastIndex: res.Index})
		}
	}

	for start := 0; start < len(items); start += o.opts.ChunkSize {
		end := start + o.opts.ChunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		o.logger.Info().
			Int("chunk_start", start).
			Int("chunk_size", len(chunk)).
			Int("total", len(items)).
			Msg("batch: dispatching chunk")

		eg := &errgroup.Group{}
		for i := range chunk {
			pos := start + i
			item := chunk[i]
			eg.Go(func() error {
				res := o.editOne(ctx, item)
				resolve(pos, res)
				return nil
			})
		}
		// Workers never return errors; failures are carried in the results.
		_ = eg.Wait()
	}

	return results
}

// editOne runs one item to success or exhausted retries. Once dispatched the
// item is not cancellable below the attempt boundary; a caller that stops
// waiting simply abandons the result.
func (o *Orchestrator) editOne(ctx context.Context, item Item) Result {
	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		if o.opts.Limiter != nil {
			if err := o.opts.Limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		ref, err := o.editor.Edit(ctx, provider.EditRequest{
			Source:      item.Source,
			Instruction: item.Prompt,
			RequestID:   fmt.Sprintf("item-%d-attempt-%d", item.Index, attempt),
		})
		if err == nil && !ref.IsZero() {
			return Result{Index: item.Index, Raster: ref}
		}
		if err == nil {
			err = provider.ErrUnrecognizedPayload
		}
		lastErr = err

		o.logger.Warn().
			Err(err).
			Int("index", item.Index).
			Int("attempt", attempt).
			Msg("batch: edit attempt failed")

		if attempt < o.opts.MaxAttempts {
			backoff := time.Duration(1<<attempt) * time.Second
			if serr := o.opts.Sleep(ctx, backoff); serr != nil {
				lastErr = serr
				break
			}
		}
	}
	return Result{Index: item.Index, Err: fmt.Errorf("item %d: %w", item.Index, lastErr)}
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
