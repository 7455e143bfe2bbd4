package image

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnrecognizedPayload marks a provider response whose shape could not be
// normalized. The orchestrator records such items as failures.
var ErrUnrecognizedPayload = errors.New("image: unrecognized provider payload")

// providerPayload covers the wrapper shapes providers have been observed to
// return. Only one of the branches is populated per response.
type providerPayload struct {
	Outputs []json.RawMessage `json:"outputs"`
	Data    *providerPayload  `json:"data"`
	Output  *providerPayload  `json:"output"`
	URL     string            `json:"url"`
	Image   string            `json:"image"`
	B64JSON string            `json:"b64_json"`
}

// NormalizePayload decodes a raw provider response body into a RasterRef.
// Supported shapes, checked in order:
//
//	"data:image/png;base64,..."            bare data-URL string
//	"https://cdn.../out.png"               bare URL string
//	{"outputs": ["...", {"url": ...}]}     outputs array (first entry wins)
//	{"data": {...}} / {"output": {...}}    nested wrapper around any of these
//	{"url": ...} / {"image": ...} / {"b64_json": ...}
//
// Anything else is ErrUnrecognizedPayload.
func NormalizePayload(raw []byte) (RasterRef, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return RasterRef{}, ErrUnrecognizedPayload
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return refFromString(asString)
	}
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return refFromString(trimmed)
	}

	var payload providerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return RasterRef{}, ErrUnrecognizedPayload
	}
	return refFromPayload(payload)
}

func refFromPayload(p providerPayload) (RasterRef, error) {
	if p.Data != nil {
		return refFromPayload(*p.Data)
	}
	if p.Output != nil {
		return refFromPayload(*p.Output)
	}
	for _, out := range p.Outputs {
		var s string
		if err := json.Unmarshal(out, &s); err == nil {
			if ref, err := refFromString(s); err == nil {
				return ref, nil
			}
			continue
		}
		var nested providerPayload
		if err := json.Unmarshal(out, &nested); err == nil {
			if ref, err := refFromPayload(nested); err == nil {
				return ref, nil
			}
		}
	}
	if p.URL != "" {
		return refFromString(p.URL)
	}
	if p.Image != "" {
		return refFromString(p.Image)
	}
	if p.B64JSON != "" {
		return refFromBase64(p.B64JSON, "image/png")
	}
	return RasterRef{}, ErrUnrecognizedPayload
}

func refFromString(s string) (RasterRef, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "data:"):
		return refFromDataURL(s)
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return RasterRef{Kind: RasterURL, URL: s}, nil
	default:
		return RasterRef{}, ErrUnrecognizedPayload
	}
}

func refFromDataURL(s string) (RasterRef, error) {
	rest := strings.TrimPrefix(s, "data:")
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return RasterRef{}, ErrUnrecognizedPayload
	}
	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "image/png"
	}
	return refFromBase64(encoded, mime)
}

func refFromBase64(encoded, mime string) (RasterRef, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil || len(data) == 0 {
		return RasterRef{}, ErrUnrecognizedPayload
	}
	return RasterRef{Kind: RasterInline, MIMEType: mime, Data: data}, nil
}
