package detector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/providers/genai"
)

func geminiTextServer(t *testing.T, calls *atomic.Int64, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": answer}}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestDetector(t *testing.T, baseURL string) *GeminiDetector {
	t.Helper()
	client, err := genai.NewClient(genai.Options{APIKey: "test-key", BaseURL: baseURL})
	if err != nil {
		t.Fatal(err)
	}
	return NewGeminiDetector(client, time.Minute, zerolog.Nop())
}

func TestDetectBrandsParsesKeys(t *testing.T) {
	var calls atomic.Int64
	srv := geminiTextServer(t, &calls, `["Coca-Cola", "bank-mandiri", ""]`)
	defer srv.Close()

	d := newTestDetector(t, srv.URL)
	brands, err := d.DetectBrands(context.Background(), []byte("raster-bytes"), "image/png")
	if err != nil {
		t.Fatalf("DetectBrands error: %v", err)
	}
	if len(brands) != 2 {
		t.Fatalf("got %d brands, want 2: %v", len(brands), brands)
	}
	if _, ok := brands["coca-cola"]; !ok {
		t.Fatal("keys should be lowercased")
	}
	if _, ok := brands["bank-mandiri"]; !ok {
		t.Fatal("bank-mandiri missing")
	}
}

func TestDetectBrandsCachesByContent(t *testing.T) {
	var calls atomic.Int64
	srv := geminiTextServer(t, &calls, `["acme"]`)
	defer srv.Close()

	d := newTestDetector(t, srv.URL)
	raster := []byte("same-raster")
	if _, err := d.DetectBrands(context.Background(), raster, "image/png"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.DetectBrands(context.Background(), raster, "image/png"); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single upstream call, got %d", got)
	}

	if _, err := d.DetectBrands(context.Background(), []byte("different"), "image/png"); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("different raster must miss the cache, calls = %d", got)
	}
}

func TestDetectBrandsToleratesFencedAnswer(t *testing.T) {
	var calls atomic.Int64
	srv := geminiTextServer(t, &calls, "Here you go:\n```json\n[\"globex\"]\n```")
	defer srv.Close()

	d := newTestDetector(t, srv.URL)
	brands, err := d.DetectBrands(context.Background(), []byte("x"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := brands["globex"]; !ok || len(brands) != 1 {
		t.Fatalf("unexpected brands: %v", brands)
	}
}

func TestDetectBrandsEmptyRaster(t *testing.T) {
	var calls atomic.Int64
	srv := geminiTextServer(t, &calls, `["never"]`)
	defer srv.Close()

	d := newTestDetector(t, srv.URL)
	brands, err := d.DetectBrands(context.Background(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(brands) != 0 || calls.Load() != 0 {
		t.Fatalf("empty raster must short-circuit, brands=%v calls=%d", brands, calls.Load())
	}
}

func TestParseBrandListGarbage(t *testing.T) {
	if got := parseBrandList("no json here"); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
	if got := parseBrandList("[1, 2]"); len(got) != 0 {
		t.Fatalf("non-string entries should be discarded wholesale, got %v", got)
	}
}
