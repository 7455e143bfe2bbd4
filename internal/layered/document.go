// Package layered assembles multi-layer PSD buffers from rasters so an edit
// can be reopened as a non-destructive design file.
package layered

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// Layer is one raster plane of a document.
type Layer struct {
	Name      string
	Raster    *image.NRGBA
	Opacity   uint8
	BlendMode string
}

// Document is a normalized layered design file: RGB, 8 bits per channel,
// every layer padded to the shared canvas.
type Document struct {
	Width  int
	Height int
	Layers []Layer
}

// Layer names of the standard two-layer export, bottom to top.
const (
	LayerNameOriginal = "Original Image"
	LayerNameEdited   = "AI Edited"
)

// BuildTwoLayerDocument decodes the original and edited rasters and
// serializes a two-layer PSD buffer: "Original Image" below, "AI Edited" on
// top, both full opacity with normal blending. The canvas is the maximum of
// both dimensions; neither source is ever cropped, smaller rasters sit on a
// white background. An undecodable input is fatal: a one-layer or corrupt
// document is unacceptable output.
func BuildTwoLayerDocument(originalRaster, editedRaster []byte) ([]byte, error) {
	original, _, err := image.Decode(bytes.NewReader(originalRaster))
	if err != nil {
		return nil, fmt.Errorf("layered: decode original raster: %w", err)
	}
	edited, _, err := image.Decode(bytes.NewReader(editedRaster))
	if err != nil {
		return nil, fmt.Errorf("layered: decode edited raster: %w", err)
	}

	doc := Compose(original, edited)
	return doc.EncodePSD()
}

// Compose builds the two-layer document structure without serializing it.
func Compose(original, edited image.Image) Document {
	width := original.Bounds().Dx()
	if w := edited.Bounds().Dx(); w > width {
		width = w
	}
	height := original.Bounds().Dy()
	if h := edited.Bounds().Dy(); h > height {
		height = h
	}

	return Document{
		Width:  width,
		Height: height,
		Layers: []Layer{
			{Name: LayerNameOriginal, Raster: padToCanvas(original, width, height), Opacity: 255, BlendMode: "norm"},
			{Name: LayerNameEdited, Raster: padToCanvas(edited, width, height), Opacity: 255, BlendMode: "norm"},
		},
	}
}

func padToCanvas(img image.Image, width, height int) *image.NRGBA {
	canvas := imaging.New(width, height, color.White)
	return imaging.Paste(canvas, img, image.Pt(0, 0))
}
