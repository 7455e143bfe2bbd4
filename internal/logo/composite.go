package logo

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// marginFactor is the corner inset as a share of the base image width.
const marginFactor = 0.03

// CompositeLogos overlays every planned logo onto the base raster in a single
// pass. A bad individual logo (nil source, empty bounds) is skipped and
// logged; the composite never aborts. If every logo fails the base image is
// returned unchanged.
func CompositeLogos(base image.Image, plan Plan, logger zerolog.Logger) image.Image {
	if base == nil || len(plan.Entries) == 0 {
		return base
	}

	bounds := base.Bounds()
	imageW := bounds.Dx()
	imageH := bounds.Dy()
	margin := int(math.Round(float64(imageW) * marginFactor))

	canvas := imaging.Clone(base)
	applied := 0

	for _, entry := range plan.Entries {
		if entry.Source == nil {
			logger.Warn().Str("logo", entry.CanonicalKey).Msg("logo: missing source raster, skipping")
			continue
		}
		src := entry.Source.Bounds()
		if src.Dx() <= 0 || src.Dy() <= 0 {
			logger.Warn().Str("logo", entry.CanonicalKey).Msg("logo: empty source raster, skipping")
			continue
		}

		targetW := placementWidth(imageW, entry, src)
		if targetW <= 0 {
			logger.Warn().Str("logo", entry.CanonicalKey).Msg("logo: zero target width, skipping")
			continue
		}
		// Never upscale past the native resolution.
		if targetW > src.Dx() {
			targetW = src.Dx()
		}

		resized := imaging.Resize(entry.Source, targetW, 0, imaging.Lanczos)
		w, h := resized.Bounds().Dx(), resized.Bounds().Dy()

		var left, top int
		switch entry.Position {
		case CornerTopLeft:
			left, top = margin, margin
		case CornerTopRight:
			left, top = imageW-w-margin, margin
		case CornerBottomLeft:
			left, top = margin, imageH-h-margin
		default: // bottom-right
			left, top = imageW-w-margin, imageH-h-margin
		}

		canvas = imaging.Overlay(canvas, resized, image.Pt(left, top), 1.0)
		applied++

		logger.Debug().
			Str("logo", entry.CanonicalKey).
			Str("position", string(entry.Position)).
			Int("width", w).
			Msg("logo: composited")
	}

	if applied == 0 {
		return base
	}
	return canvas
}

func placementWidth(imageW int, entry Placement, src image.Rectangle) int {
	if entry.SizePercent > 0 {
		return int(math.Round(float64(imageW) * entry.SizePercent / 100))
	}
	return CalculateAdaptiveLogoSize(imageW, src.Dx(), src.Dy())
}
