package overlay

import (
	"fmt"
	"strings"
)

// GeneratePrompt renders the edit instruction sent to the image provider for
// one parameter set. Everything numeric is phrased as prose: providers are
// known to paint literal pixel or CSS values into the image as visible text,
// so coverage, sizing, and offsets all become words. The function has no side
// effects and is idempotent; the same parameters always yield the same bytes.
func GeneratePrompt(p Parameters) string {
	var lines []string

	lines = append(lines, "Edit this marketing photograph by adding a text overlay. Keep every original detail of the photo intact.")

	if p.Gradient.Enabled {
		lines = append(lines, fmt.Sprintf(
			"Add a smooth dark gradient along the %s edge, covering %s of the image and fading from %s darkness at the edge into full transparency.",
			gradientEdge(p.Gradient.Position),
			coverageWords(p.Gradient.HeightPercent),
			opacityWords(p.Gradient.OpacityStops[0]),
		))
	}

	lines = append(lines, fmt.Sprintf(
		"Add the title text %q exactly as written. Do not paraphrase, translate, misspell, abbreviate, or substitute any character of it.",
		p.Title.Text,
	))
	lines = append(lines, fmt.Sprintf(
		"Render the title in a %s bold sans-serif typeface in %s, keeping the letter casing exactly as provided.",
		fontSizeWords(p.Title.FontSizePx),
		colorWords(p.Title.Color),
	))

	if strings.TrimSpace(p.Subtitle.Text) != "" {
		lines = append(lines, fmt.Sprintf(
			"Below the title add the subtitle text %q exactly as written, in the same typeface but noticeably smaller and with regular weight.",
			p.Subtitle.Text,
		))
	}

	if clause := typographyClause(p.Language); clause != "" {
		lines = append(lines, clause)
	}

	lines = append(lines, positionClause(p.Title.Position.Alignment))

	if p.Title.Shadow.Enabled {
		lines = append(lines, "Give both text blocks a soft drop shadow falling slightly down and to the right so they stay readable on bright areas.")
	}

	lines = append(lines,
		"Do not change the image dimensions, crop, or aspect ratio.",
		"Do not alter, move, recolor, or restyle the product or the background in any way.",
		"The only additions allowed are the gradient and the two text blocks described above.",
	)

	return strings.Join(lines, "\n")
}

// positionClause words the placement differently per alignment rather than
// emitting a numeric offset, which edit models follow far more reliably.
func positionClause(alignment string) string {
	switch alignment {
	case AlignCenter:
		return "Center both text blocks horizontally, placed in the upper portion of the image with generous breathing room above them."
	case AlignRight:
		return "Place both text blocks in the upper right area, right-aligned, keeping a comfortable margin from the top and right edges."
	default:
		return "Place both text blocks in the upper left area, left-aligned, keeping a comfortable margin from the top and left edges."
	}
}

// typographyClause names the caption language so the provider does not
// "correct" foreign-language copy into English while painting it.
func typographyClause(locale string) string {
	base := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(base, "-_"); i > 0 {
		base = base[:i]
	}
	switch base {
	case "":
		return ""
	case "id":
		return "The overlay text is Indonesian copy. Use spelling and typography conventions appropriate for Indonesian, and never translate the text."
	case "en":
		return "The overlay text is English copy. Use spelling and typography conventions appropriate for English."
	default:
		return "Keep the overlay text in its original language with appropriate typography, and never translate it."
	}
}

func gradientEdge(position string) string {
	if position == "top" {
		return "top"
	}
	return "bottom"
}

func coverageWords(heightPercent int) string {
	switch {
	case heightPercent <= 15:
		return "a narrow band"
	case heightPercent <= 25:
		return "roughly a quarter of the height"
	case heightPercent <= 40:
		return "roughly a third of the height"
	default:
		return "close to half of the height"
	}
}

func fontSizeWords(px int) string {
	switch {
	case px >= 64:
		return "large, headline-sized"
	case px >= 48:
		return "prominent, medium-large"
	default:
		return "modest, clearly readable"
	}
}

func opacityWords(peak float64) string {
	switch {
	case peak < 0.2:
		return "a very subtle"
	case peak < 0.45:
		return "a moderate"
	default:
		return "a strong"
	}
}

func colorWords(hex string) string {
	switch strings.ToUpper(strings.TrimSpace(hex)) {
	case "#FFFFFF", "#FFF", "WHITE":
		return "clean white"
	case "#000000", "#000", "BLACK":
		return "deep black"
	default:
		return "the brand accent color"
	}
}
