package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	provider "server/internal/providers/image"
)

type scriptedEditor struct {
	mu sync.Mutex
	// failures maps item index to how many times it should fail first.
	failures map[int]int
	// alwaysFail lists indexes that never succeed.
	alwaysFail map[int]bool
	calls       []int
	inFlight    int
	maxInFlight int
}

func (s *scriptedEditor) Edit(ctx context.Context, req provider.EditRequest) (provider.RasterRef, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()
	time.Sleep(time.Millisecond)

	var idx int
	fmt.Sscanf(req.RequestID, "item-%d", &idx)

	s.mu.Lock()
	defer func() {
		s.inFlight--
		s.mu.Unlock()
	}()
	s.calls = append(s.calls, idx)

	if s.alwaysFail[idx] {
		return provider.RasterRef{}, errors.New("provider exploded")
	}
	if s.failures[idx] > 0 {
		s.failures[idx]--
		return provider.RasterRef{}, errors.New("transient error")
	}
	return provider.RasterRef{Kind: provider.RasterURL, URL: fmt.Sprintf("https://cdn.example.com/%d.png", idx)}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func testOrchestrator(editor provider.Editor, opts Options) *Orchestrator {
	opts.Sleep = noSleep
	return NewOrchestrator(editor, zerolog.Nop(), opts)
}

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			Index:  i,
			Source: provider.SourceImage{URL: fmt.Sprintf("https://example.com/in/%d.png", i)},
			Prompt: "edit",
		}
	}
	return items
}

func TestEditBatchAlignmentWithFailures(t *testing.T) {
	editor := &scriptedEditor{alwaysFail: map[int]bool{5: true}}
	o := testOrchestrator(editor, Options{ChunkSize: 15})

	results := o.EditBatch(context.Background(), makeItems(17))

	if len(results) != 17 {
		t.Fatalf("len(results) = %d, want 17", len(results))
	}
	for i, res := range results {
		if res.Index != i {
			t.Fatalf("result %d has index %d", i, res.Index)
		}
		if i == 5 {
			if !res.Failed() {
				t.Fatal("index 5 should have failed")
			}
			continue
		}
		if res.Failed() {
			t.Fatalf("index %d unexpectedly failed: %v", i, res.Err)
		}
		if res.Raster.URL != fmt.Sprintf("https://cdn.example.com/%d.png", i) {
			t.Fatalf("index %d raster = %+v", i, res.Raster)
		}
	}
}

func TestEditBatchRetriesThreeTimes(t *testing.T) {
	editor := &scriptedEditor{alwaysFail: map[int]bool{0: true}}
	o := testOrchestrator(editor, Options{})

	results := o.EditBatch(context.Background(), makeItems(1))
	if !results[0].Failed() {
		t.Fatal("expected failure after exhausted retries")
	}
	if got := len(editor.calls); got != 3 {
		t.Fatalf("provider called %d times, want 3", got)
	}
}

func TestEditBatchRecoversOnRetry(t *testing.T) {
	editor := &scriptedEditor{failures: map[int]int{0: 2}}
	o := testOrchestrator(editor, Options{})

	results := o.EditBatch(context.Background(), makeItems(1))
	if results[0].Failed() {
		t.Fatalf("expected success after retries, got %v", results[0].Err)
	}
	if got := len(editor.calls); got != 3 {
		t.Fatalf("provider called %d times, want 3", got)
	}
}

func TestEditBatchChunksAreSequential(t *testing.T) {
	editor := &scriptedEditor{}
	o := testOrchestrator(editor, Options{ChunkSize: 2})

	o.EditBatch(context.Background(), makeItems(6))

	if editor.maxInFlight > 2 {
		t.Fatalf("max in flight = %d, chunk size 2 exceeded", editor.maxInFlight)
	}
	// Every call from chunk k must happen before any call from chunk k+1.
	seenChunk := 0
	for _, idx := range editor.calls {
		chunk := idx / 2
		if chunk < seenChunk {
			t.Fatalf("chunk %d item ran after chunk %d started: order %v", chunk, seenChunk, editor.calls)
		}
		if chunk > seenChunk {
			seenChunk = chunk
		}
	}
}

func TestEditBatchProgressEvents(t *testing.T) {
	editor := &scriptedEditor{alwaysFail: map[int]bool{1: true}}
	var mu sync.Mutex
	var events []Progress
	o := testOrchestrator(editor, Options{
		ChunkSize: 3,
		OnProgress: func(p Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	})

	o.EditBatch(context.Background(), makeItems(3))

	if len(events) != 3 {
		t.Fatalf("got %d progress events, want 3", len(events))
	}
	last := events[len(events)-1]
	if last.Completed != 3 || last.Total != 3 {
		t.Fatalf("final progress = %+v", last)
	}
	for i, ev := range events {
		if ev.Completed != i+1 {
			t.Fatalf("event %d completed = %d", i, ev.Completed)
		}
	}
}

func TestEditBatchEmptyInput(t *testing.T) {
	o := testOrchestrator(&scriptedEditor{}, Options{})
	if got := o.EditBatch(context.Background(), nil); len(got) != 0 {
		t.Fatalf("expected empty results, got %d", len(got))
	}
}
