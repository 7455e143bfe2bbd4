// Package detector identifies partner brand marks already visible in a
// raster, so the compositor can skip logos the image carries natively.
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"server/internal/providers/genai"
)

// Detector reports the canonical brand keys already present in a raster.
type Detector interface {
	DetectBrands(ctx context.Context, raster []byte, mimeType string) (map[string]struct{}, error)
}

const detectPrompt = `Look at this image and list every company or brand logo that is clearly visible in it.
Answer with a JSON array of lowercase kebab-case brand identifiers, for example ["coca-cola","bank-mandiri"].
If no logo is visible, answer with [].
Answer with the JSON array only, no prose.`

// GeminiDetector asks a vision model which brands appear in a raster and
// caches the answer keyed by content hash, since the same source image is
// analyzed again on every re-edit.
type GeminiDetector struct {
	client *genai.Client
	cache  *gocache.Cache
	logger zerolog.Logger
}

// NewGeminiDetector wraps the given client with a TTL result cache.
func NewGeminiDetector(client *genai.Client, ttl time.Duration, logger zerolog.Logger) *GeminiDetector {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &GeminiDetector{
		client: client,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// DetectBrands returns the set of canonical brand keys visible in the raster.
func (d *GeminiDetector) DetectBrands(ctx context.Context, raster []byte, mimeType string) (map[string]struct{}, error) {
	if len(raster) == 0 {
		return map[string]struct{}{}, nil
	}

	sum := sha256.Sum256(raster)
	key := hex.EncodeToString(sum[:])
	if cached, ok := d.cache.Get(key); ok {
		return cached.(map[string]struct{}), nil
	}

	answer, err := d.client.AnalyzeImage(ctx, detectPrompt, raster, mimeType)
	if err != nil {
		return nil, err
	}

	brands := parseBrandList(answer)
	d.cache.Set(key, brands, gocache.DefaultExpiration)
	d.logger.Debug().
		Int("brands", len(brands)).
		Str("raster_hash", key[:12]).
		Msg("brand detection completed")
	return brands, nil
}

// parseBrandList tolerates markdown fences and stray prose around the JSON
// array the model was asked for.
func parseBrandList(answer string) map[string]struct{} {
	brands := map[string]struct{}{}

	start := strings.Index(answer, "[")
	end := strings.LastIndex(answer, "]")
	if start < 0 || end <= start {
		return brands
	}

	var keys []string
	if err := json.Unmarshal([]byte(answer[start:end+1]), &keys); err != nil {
		return brands
	}
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			brands[k] = struct{}{}
		}
	}
	return brands
}

var _ Detector = (*GeminiDetector)(nil)
