package logo

import (
	"image"
	"image/color"
	"testing"

	"github.com/rs/zerolog"
)

func filled(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestCompositeLogosPlacesBottomLeft(t *testing.T) {
	base := filled(1000, 500, color.RGBA{255, 255, 255, 255})
	red := filled(100, 100, color.RGBA{255, 0, 0, 255})

	plan := Plan{Entries: []Placement{{CanonicalKey: "acme", Position: CornerBottomLeft, Source: red}}}
	out := CompositeLogos(base, plan, zerolog.Nop())

	// margin = 3% of 1000 = 30; logo target width = 10% = 100 at native size.
	r, g, b, _ := out.At(35, 500-35).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Fatalf("expected red logo pixel at bottom-left, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
	// Opposite corner stays untouched.
	r, g, b, _ = out.At(995, 5).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Fatalf("expected untouched white pixel at top-right, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCompositeLogosNeverUpscales(t *testing.T) {
	base := filled(2000, 1000, color.RGBA{255, 255, 255, 255})
	tiny := filled(40, 40, color.RGBA{0, 0, 255, 255})

	plan := Plan{Entries: []Placement{{CanonicalKey: "tiny", Position: CornerTopLeft, Source: tiny}}}
	out := CompositeLogos(base, plan, zerolog.Nop())

	// Adaptive width would be 200, but the native 40px must be the ceiling:
	// a pixel beyond margin+40 stays white.
	margin := 60
	r, g, b, _ := out.At(margin+45, margin+5).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Fatalf("logo was upscaled past native size, pixel (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = out.At(margin+5, margin+5).RGBA()
	if b>>8 != 255 || r>>8 != 0 {
		t.Fatalf("logo missing at native size, pixel (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCompositeLogosSkipsBadEntries(t *testing.T) {
	base := filled(100, 100, color.RGBA{255, 255, 255, 255})
	plan := Plan{Entries: []Placement{
		{CanonicalKey: "nil-source", Position: CornerTopLeft},
		{CanonicalKey: "empty", Position: CornerTopRight, Source: image.NewRGBA(image.Rect(0, 0, 0, 0))},
	}}

	out := CompositeLogos(base, plan, zerolog.Nop())
	if out != base {
		t.Fatal("expected the untouched base image when every logo fails")
	}
}

func TestCompositeLogosPartialFailureStillApplied(t *testing.T) {
	base := filled(1000, 1000, color.RGBA{255, 255, 255, 255})
	green := filled(80, 80, color.RGBA{0, 255, 0, 255})
	plan := Plan{Entries: []Placement{
		{CanonicalKey: "broken", Position: CornerTopLeft},
		{CanonicalKey: "ok", Position: CornerBottomRight, Source: green},
	}}

	out := CompositeLogos(base, plan, zerolog.Nop())
	r, g, _, _ := out.At(1000-35, 1000-35).RGBA()
	if g>>8 != 255 || r>>8 != 0 {
		t.Fatalf("surviving logo not composited, pixel green=%d", g>>8)
	}
}
