package domain

// ImageSpec is one caption/logo requirement extracted from a marketing
// brief, to be overlaid on one image. Immutable once a job starts except
// for logo-plan enrichment.
type ImageSpec struct {
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	AssetID       string   `json:"asset_id,omitempty"`
	LogoRequested bool     `json:"logo_requested"`
	LogoNames     []string `json:"logo_names,omitempty"`
	BasePrompt    string   `json:"base_prompt"`
	// Language overrides the request-level locale for this spec's captions.
	Language string `json:"language,omitempty"`
}

// SourceImage is one uploaded raster waiting to be edited.
type SourceImage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type,omitempty"`
}

// MatchKind says how an image was paired with its spec.
type MatchKind string

const (
	// MatchDirect pairs image i with spec i.
	MatchDirect MatchKind = "direct"
	// MatchCyclic pairs a surplus image with spec i mod len(specs).
	MatchCyclic MatchKind = "cyclic"
)

// ImageSpecPair is one resolved (image, spec) assignment.
type ImageSpecPair struct {
	Image SourceImage
	Spec  ImageSpec
	Kind  MatchKind
}

// MatchImagesToSpecs assigns a spec to every image. Images within the spec
// count match positionally; surplus images wrap around the spec list. An
// empty spec list yields no pairs regardless of image count.
func MatchImagesToSpecs(images []SourceImage, specs []ImageSpec) []ImageSpecPair {
	if len(specs) == 0 {
		return nil
	}

	pairs := make([]ImageSpecPair, 0, len(images))
	for i, img := range images {
		kind := MatchDirect
		if i >= len(specs) {
			kind = MatchCyclic
		}
		pairs = append(pairs, ImageSpecPair{
			Image: img,
			Spec:  specs[i%len(specs)],
			Kind:  kind,
		})
	}
	return pairs
}
