package image

import "context"

// SourceImage identifies the raster a single edit operates on. Providers
// accept either a fetchable URL or inline bytes.
type SourceImage struct {
	URL      string
	Data     []byte
	MIMEType string
	Name     string
}

// EditRequest is one compiled instruction applied to one source image.
type EditRequest struct {
	Source      SourceImage
	Instruction string
	RequestID   string
}

// RasterKind discriminates the RasterRef union.
type RasterKind int

const (
	// RasterURL references an image hosted by the provider.
	RasterURL RasterKind = iota + 1
	// RasterInline carries the decoded image bytes directly.
	RasterInline
)

// RasterRef is the single normalized result type for provider responses.
// Provider payloads arrive in several shapes (a bare data-URL string, an
// outputs array, a nested wrapper); they are decoded into a RasterRef once at
// the provider boundary and never re-inspected downstream.
type RasterRef struct {
	Kind     RasterKind
	URL      string
	MIMEType string
	Data     []byte
}

// IsZero reports whether the reference carries neither a URL nor data.
func (r RasterRef) IsZero() bool {
	return r.Kind == 0 || (r.URL == "" && len(r.Data) == 0)
}

// Editor applies a textual edit instruction to one image. Implementations
// wrap a single provider; retry policy lives with the batch orchestrator,
// not here.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (RasterRef, error)
}
