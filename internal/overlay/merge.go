package overlay

import "math"

// TitleUpdate carries the title fields a caller may change. Nil fields are
// left untouched.
type TitleUpdate struct {
	Text       *string `json:"text,omitempty"`
	FontSizePx *int    `json:"font_size_px,omitempty"`
	Color      *string `json:"color,omitempty"`
	Alignment  *string `json:"alignment,omitempty"`
}

// SubtitleUpdate carries the subtitle fields a caller may change directly.
// Font size and alignment always follow the title and cannot be set here.
type SubtitleUpdate struct {
	Text  *string `json:"text,omitempty"`
	Color *string `json:"color,omitempty"`
}

// GradientUpdate adjusts the gradient block. Opacity sets the peak stop.
type GradientUpdate struct {
	Enabled       *bool    `json:"enabled,omitempty"`
	HeightPercent *int     `json:"height_percent,omitempty"`
	Opacity       *float64 `json:"opacity,omitempty"`
	Position      *string  `json:"position,omitempty"`
}

// LogoUpdate adjusts the logo block defaults.
type LogoUpdate struct {
	Enabled       *bool    `json:"enabled,omitempty"`
	Position      *string  `json:"position,omitempty"`
	SizePercent   *float64 `json:"size_percent,omitempty"`
	MarginPercent *float64 `json:"margin_percent,omitempty"`
}

// MarginsUpdate adjusts the percent margins; pixel margins and text positions
// are recomputed, never set directly.
type MarginsUpdate struct {
	TopPercent  *float64 `json:"top_percent,omitempty"`
	LeftPercent *float64 `json:"left_percent,omitempty"`
}

// Update is a partial overlay-parameter change request.
type Update struct {
	Title    *TitleUpdate    `json:"title,omitempty"`
	Subtitle *SubtitleUpdate `json:"subtitle,omitempty"`
	Gradient *GradientUpdate `json:"gradient,omitempty"`
	Logo     *LogoUpdate     `json:"logo,omitempty"`
	Margins  *MarginsUpdate  `json:"margins,omitempty"`
}

// MergeParameterUpdates applies a partial update onto existing parameters and
// returns the result. The input is never mutated: the merge works on a copy,
// so concurrent readers of the prior version stay valid. The version counter
// increments on every merge.
//
// Three cascades always hold after a merge:
//   - a title font change rescales the subtitle font to keep the 0.35 ratio;
//   - a title alignment change sets the subtitle alignment identically;
//   - a percent margin change recomputes the pixel margins and both text
//     block positions from scratch.
//
// Values are applied as given; bounding (for example clamping gradient
// opacity) is the caller's responsibility.
func MergeParameterUpdates(existing Parameters, updates Update) Parameters {
	p := existing // Parameters contains no reference types, so this copies deeply.
	p.Version = existing.Version + 1

	reflow := false

	if t := updates.Title; t != nil {
		if t.Text != nil {
			p.Title.Text = *t.Text
		}
		if t.Color != nil {
			p.Title.Color = *t.Color
		}
		if t.FontSizePx != nil {
			p.Title.FontSizePx = *t.FontSizePx
			p.Subtitle.FontSizePx = int(math.Round(float64(*t.FontSizePx) * subtitleRatio))
			reflow = true
		}
		if t.Alignment != nil {
			p.Title.Position.Alignment = *t.Alignment
			p.Subtitle.Position.Alignment = *t.Alignment
		}
	}

	if s := updates.Subtitle; s != nil {
		if s.Text != nil {
			p.Subtitle.Text = *s.Text
		}
		if s.Color != nil {
			p.Subtitle.Color = *s.Color
		}
	}

	if g := updates.Gradient; g != nil {
		if g.Enabled != nil {
			p.Gradient.Enabled = *g.Enabled
		}
		if g.HeightPercent != nil {
			p.Gradient.HeightPercent = *g.HeightPercent
		}
		if g.Opacity != nil {
			p.Gradient.OpacityStops[0] = *g.Opacity
		}
		if g.Position != nil {
			p.Gradient.Position = *g.Position
		}
	}

	if l := updates.Logo; l != nil {
		if l.Enabled != nil {
			p.Logo.Enabled = *l.Enabled
		}
		if l.Position != nil {
			p.Logo.Position = *l.Position
		}
		if l.SizePercent != nil {
			p.Logo.SizePercent = *l.SizePercent
		}
		if l.MarginPercent != nil {
			p.Logo.MarginPercent = *l.MarginPercent
		}
	}

	if m := updates.Margins; m != nil {
		if m.TopPercent != nil {
			p.Margins.TopPercent = *m.TopPercent
			p.Margins.TopPx = int(math.Round(float64(p.HeightPx) * *m.TopPercent / 100))
			reflow = true
		}
		if m.LeftPercent != nil {
			p.Margins.LeftPercent = *m.LeftPercent
			p.Margins.LeftPx = int(math.Round(float64(p.WidthPx) * *m.LeftPercent / 100))
			reflow = true
		}
	}

	if reflow {
		p.reflowText()
	}
	return p
}
