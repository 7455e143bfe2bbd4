package logo

import (
	"image"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Corner is a logo anchor position.
type Corner string

const (
	CornerTopLeft     Corner = "top-left"
	CornerTopRight    Corner = "top-right"
	CornerBottomLeft  Corner = "bottom-left"
	CornerBottomRight Corner = "bottom-right"
)

// MaxLogosPerImage caps how many logos one image may carry; past that the
// composition loses all clarity.
const MaxLogosPerImage = 8

// fallbackCycle is the deterministic corner order used when no AI plan is
// available. With five or more logos the corners repeat without offset, which
// can overlap; the cap above keeps the damage bounded.
var fallbackCycle = []Corner{CornerBottomLeft, CornerBottomRight, CornerTopLeft, CornerTopRight}

// Candidate is one logo considered for compositing.
type Candidate struct {
	CanonicalKey string
	DisplayName  string
	Source       image.Image
}

// Placement is one resolved slot in a plan.
type Placement struct {
	CanonicalKey string
	DisplayName  string
	Position     Corner
	SizePercent  float64
	Source       image.Image
}

// Plan is an ordered set of logo placements for one image.
type Plan struct {
	Entries      []Placement
	AnalyzedByAI bool
}

var titleCaser = cases.Title(language.English)

// PlanPlacement assigns a corner and size to each candidate logo. Candidates
// whose canonical key is already visible in the target image (per the brand
// detector) are dropped to avoid duplicate branding. When an AI-derived plan
// exists its position/size mapping is honored by key; remaining candidates
// cycle deterministically through the fallback corners.
func PlanPlacement(candidates []Candidate, existing map[string]struct{}, aiPlan *Plan) Plan {
	plan := Plan{AnalyzedByAI: aiPlan != nil}

	var aiByKey map[string]Placement
	if aiPlan != nil {
		aiByKey = make(map[string]Placement, len(aiPlan.Entries))
		for _, entry := range aiPlan.Entries {
			aiByKey[entry.CanonicalKey] = entry
		}
	}

	slot := 0
	for _, cand := range candidates {
		if len(plan.Entries) >= MaxLogosPerImage {
			break
		}
		if _, present := existing[cand.CanonicalKey]; present {
			continue
		}

		placement := Placement{
			CanonicalKey: cand.CanonicalKey,
			DisplayName:  displayName(cand),
			Source:       cand.Source,
		}
		if ai, ok := aiByKey[cand.CanonicalKey]; ok {
			placement.Position = ai.Position
			placement.SizePercent = ai.SizePercent
		} else {
			placement.Position = fallbackCycle[slot%len(fallbackCycle)]
			slot++
		}
		plan.Entries = append(plan.Entries, placement)
	}
	return plan
}

func displayName(cand Candidate) string {
	if cand.DisplayName != "" {
		return cand.DisplayName
	}
	return titleCaser.String(strings.ReplaceAll(cand.CanonicalKey, "-", " "))
}

// CalculateAdaptiveLogoSize returns the target pixel width for a logo. The
// base target is 10% of the image width; banner-shaped logos shrink so a wide
// wordmark never dominates the frame.
func CalculateAdaptiveLogoSize(imageWidth, logoWidth, logoHeight int) int {
	percent := 10.0
	if logoWidth > 0 && logoHeight > 0 {
		long := float64(logoWidth)
		short := float64(logoHeight)
		if short > long {
			long, short = short, long
		}
		ratio := long / short
		switch {
		case ratio > 3:
			percent = 6
		case ratio > 2:
			percent = 8
		}
	}
	return int(math.Round(float64(imageWidth) * percent / 100))
}
