package layered

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
)

// PSD serialization constants for the export contract: RGB color mode,
// 8 bits per channel, 3 channels, raw (uncompressed) image data.
const (
	psdSignature     = "8BPS"
	psdVersion       = 1
	psdChannels      = 3
	psdDepth         = 8
	psdColorModeRGB  = 3
	psdBlendSig      = "8BIM"
	psdRawCompressed = 0
)

// EncodePSD serializes the document as a Photoshop file buffer. Any
// standards-compliant PSD reader sees the layers in document order
// (bottom-to-top) with the stated names, opacities, and normal blending;
// this structure is the one bit-exact compatibility requirement of the
// export path.
func (d Document) EncodePSD() ([]byte, error) {
	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("layered: invalid canvas %dx%d", d.Width, d.Height)
	}
	if len(d.Layers) == 0 {
		return nil, errors.New("layered: document has no layers")
	}
	for _, layer := range d.Layers {
		if layer.Raster == nil {
			return nil, fmt.Errorf("layered: layer %q has no raster", layer.Name)
		}
		b := layer.Raster.Bounds()
		if b.Dx() != d.Width || b.Dy() != d.Height {
			return nil, fmt.Errorf("layered: layer %q is %dx%d, canvas is %dx%d",
				layer.Name, b.Dx(), b.Dy(), d.Width, d.Height)
		}
	}

	buf := &bytes.Buffer{}

	// File header.
	buf.WriteString(psdSignature)
	writeU16(buf, psdVersion)
	buf.Write(make([]byte, 6))
	writeU16(buf, psdChannels)
	writeU32(buf, uint32(d.Height))
	writeU32(buf, uint32(d.Width))
	writeU16(buf, psdDepth)
	writeU16(buf, psdColorModeRGB)

	// Color mode data and image resources: both empty.
	writeU32(buf, 0)
	writeU32(buf, 0)

	layerInfo := d.encodeLayerInfo()
	// Layer and mask information: layer info plus an empty global mask.
	writeU32(buf, uint32(len(layerInfo)+4))
	buf.Write(layerInfo)
	writeU32(buf, 0)

	// Merged image data: raw, planar, top layer as the flattened view.
	writeU16(buf, psdRawCompressed)
	top := d.Layers[len(d.Layers)-1].Raster
	for channel := 0; channel < psdChannels; channel++ {
		writeChannel(buf, top, channel, d.Width, d.Height)
	}

	return buf.Bytes(), nil
}

func (d Document) encodeLayerInfo() []byte {
	buf := &bytes.Buffer{}
	writeU16(buf, uint16(len(d.Layers)))

	channelDataLen := uint32(2 + d.Width*d.Height)
	for _, layer := range d.Layers {
		// Bounding rectangle: top, left, bottom, right.
		writeU32(buf, 0)
		writeU32(buf, 0)
		writeU32(buf, uint32(d.Height))
		writeU32(buf, uint32(d.Width))

		writeU16(buf, psdChannels)
		for channel := 0; channel < psdChannels; channel++ {
			writeU16(buf, uint16(channel))
			writeU32(buf, channelDataLen)
		}

		buf.WriteString(psdBlendSig)
		blend := layer.BlendMode
		if blend == "" {
			blend = "norm"
		}
		buf.WriteString(blend)
		buf.WriteByte(layer.Opacity)
		buf.WriteByte(0) // clipping: base
		buf.WriteByte(0) // flags
		buf.WriteByte(0) // filler

		name := pascalString(layer.Name)
		writeU32(buf, uint32(4+4+len(name)))
		writeU32(buf, 0) // layer mask data
		writeU32(buf, 0) // blending ranges
		buf.Write(name)
	}

	for _, layer := range d.Layers {
		for channel := 0; channel < psdChannels; channel++ {
			writeU16(buf, psdRawCompressed)
			writeChannel(buf, layer.Raster, channel, d.Width, d.Height)
		}
	}

	if buf.Len()%2 != 0 {
		buf.WriteByte(0)
	}

	out := &bytes.Buffer{}
	writeU32(out, uint32(buf.Len()))
	out.Write(buf.Bytes())
	return out.Bytes()
}

// writeChannel emits one color plane row-major. Layers are padded against an
// opaque white canvas before encoding, so the NRGBA pixel bytes map directly
// onto the 8-bit channel planes.
func writeChannel(buf *bytes.Buffer, raster *image.NRGBA, channel, width, height int) {
	for y := 0; y < height; y++ {
		row := raster.Pix[y*raster.Stride : y*raster.Stride+width*4]
		for x := 0; x < width; x++ {
			buf.WriteByte(row[x*4+channel])
		}
	}
}

func pascalString(s string) []byte {
	raw := []byte(s)
	if len(raw) > 255 {
		raw = raw[:255]
	}
	out := append([]byte{byte(len(raw))}, raw...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

func writeU16(buf *bytes.Buffer, v uint16) {
	_ = binary.Write(buf, binary.BigEndian, v)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	_ = binary.Write(buf, binary.BigEndian, v)
}
