package overlay

import "math"

// Sizing constants tuned against the marketing templates we ship. Title size
// tracks image width so captions stay legible on both story and banner crops.
const (
	titleWidthFactor = 0.045
	minTitleFontPx   = 36
	maxTitleFontPx   = 72

	subtitleRatio      = 0.35
	titleGapFactor     = 0.6
	topMarginFactor    = 0.08
	leftMarginFactor   = 0.05
	defaultTopPercent  = 8.0
	defaultLeftPercent = 5.0

	defaultGradientHeightPct = 22
	defaultGradientOpacity   = 0.35
)

// Alignment values accepted for text blocks.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Position anchors a text block inside the image. X/Y are derived from the
// margins and font sizes; they are never stored independently.
type Position struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Alignment string `json:"alignment"`
}

// Shadow describes the drop shadow behind a text block.
type Shadow struct {
	Enabled bool `json:"enabled"`
	OffsetX int  `json:"offset_x"`
	OffsetY int  `json:"offset_y"`
	Blur    int  `json:"blur"`
}

// TextBlock holds the render parameters for one caption line.
type TextBlock struct {
	Text             string   `json:"text"`
	FontSizePx       int      `json:"font_size_px"`
	Color            string   `json:"color"`
	Position         Position `json:"position"`
	Shadow           Shadow   `json:"shadow"`
	LineHeightFactor float64  `json:"line_height_factor"`
	MaxWidthPercent  int      `json:"max_width_percent"`
}

// Gradient darkens one edge of the image so the caption stays readable.
// OpacityStops holds [peak, tail]; the fade between them is linear.
type Gradient struct {
	Enabled       bool       `json:"enabled"`
	HeightPercent int        `json:"height_percent"`
	OpacityStops  [2]float64 `json:"opacity_stops"`
	Position      string     `json:"position"`
}

// Logo captures the logo block defaults carried alongside the text overlay.
type Logo struct {
	Enabled       bool    `json:"enabled"`
	Position      string  `json:"position"`
	SizePercent   float64 `json:"size_percent"`
	MarginPercent float64 `json:"margin_percent"`
}

// Margins stores both the percent inputs and the pixel values derived from
// them for the image this parameter set is scoped to.
type Margins struct {
	TopPx       int     `json:"top_px"`
	LeftPx      int     `json:"left_px"`
	TopPercent  float64 `json:"top_percent"`
	LeftPercent float64 `json:"left_percent"`
}

// Parameters is the versioned overlay description for one edited image. It is
// scoped to a single image's pixel dimensions and mutated only through
// MergeParameterUpdates, which always works on a deep copy.
type Parameters struct {
	Version  int `json:"version"`
	WidthPx  int `json:"width_px"`
	HeightPx int `json:"height_px"`
	// Language is the caption language tag ("en", "id"). Empty means the
	// prompt carries no typography-language clause.
	Language string    `json:"language,omitempty"`
	Title    TextBlock `json:"title"`
	Subtitle TextBlock `json:"subtitle"`
	Gradient Gradient  `json:"gradient"`
	Logo     Logo      `json:"logo"`
	Margins  Margins   `json:"margins"`
}

// CalculateDefaultParameters derives the initial overlay parameters from the
// image geometry and caption text. It is a pure function: identical inputs
// always produce an identical result, which keeps compiled prompts
// reproducible for identical briefs.
func CalculateDefaultParameters(width, height int, title, subtitle string) Parameters {
	titleFont := int(math.Round(clamp(float64(width)*titleWidthFactor, minTitleFontPx, maxTitleFontPx)))
	subtitleFont := int(math.Round(float64(titleFont) * subtitleRatio))

	p := Parameters{
		Version:  1,
		WidthPx:  width,
		HeightPx: height,
		Title: TextBlock{
			Text:             title,
			FontSizePx:       titleFont,
			Color:            "#FFFFFF",
			Shadow:           Shadow{Enabled: true, OffsetX: 2, OffsetY: 2, Blur: 4},
			LineHeightFactor: 1.2,
			MaxWidthPercent:  80,
		},
		Subtitle: TextBlock{
			Text:             subtitle,
			FontSizePx:       subtitleFont,
			Color:            "#FFFFFF",
			Shadow:           Shadow{Enabled: true, OffsetX: 1, OffsetY: 1, Blur: 3},
			LineHeightFactor: 1.2,
			MaxWidthPercent:  80,
		},
		Gradient: Gradient{
			Enabled:       true,
			HeightPercent: defaultGradientHeightPct,
			OpacityStops:  [2]float64{defaultGradientOpacity, 0},
			Position:      "bottom",
		},
		Logo: Logo{
			Enabled:       false,
			Position:      "bottom-right",
			SizePercent:   10,
			MarginPercent: 3,
		},
		Margins: Margins{
			TopPx:       int(math.Round(float64(height) * topMarginFactor)),
			LeftPx:      int(math.Round(float64(width) * leftMarginFactor)),
			TopPercent:  defaultTopPercent,
			LeftPercent: defaultLeftPercent,
		},
	}
	p.Title.Position.Alignment = AlignLeft
	p.Subtitle.Position.Alignment = AlignLeft
	p.reflowText()
	return p
}

// reflowText recomputes both text block positions from the margins and font
// sizes. Every mutation that touches margins or the title size must call this;
// a stale position is a correctness bug.
func (p *Parameters) reflowText() {
	p.Title.Position.X = p.Margins.LeftPx
	p.Title.Position.Y = p.Margins.TopPx + p.Title.FontSizePx
	p.Subtitle.Position.X = p.Margins.LeftPx
	p.Subtitle.Position.Y = p.Title.Position.Y +
		int(math.Floor(float64(p.Title.FontSizePx)*titleGapFactor)) +
		p.Subtitle.FontSizePx
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
