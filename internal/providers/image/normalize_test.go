package image

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestNormalizePayloadDataURLString(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4e, 0x47}
	raw := `"data:image/png;base64,` + base64.StdEncoding.EncodeToString(png) + `"`

	ref, err := NormalizePayload([]byte(raw))
	if err != nil {
		t.Fatalf("NormalizePayload error: %v", err)
	}
	if ref.Kind != RasterInline {
		t.Fatalf("kind = %v, want inline", ref.Kind)
	}
	if ref.MIMEType != "image/png" {
		t.Fatalf("mime = %q", ref.MIMEType)
	}
	if string(ref.Data) != string(png) {
		t.Fatalf("data mismatch: %v", ref.Data)
	}
}

func TestNormalizePayloadOutputsArray(t *testing.T) {
	raw := `{"outputs": ["https://cdn.example.com/edited/1.png"]}`
	ref, err := NormalizePayload([]byte(raw))
	if err != nil {
		t.Fatalf("NormalizePayload error: %v", err)
	}
	if ref.Kind != RasterURL || ref.URL != "https://cdn.example.com/edited/1.png" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestNormalizePayloadNestedWrapper(t *testing.T) {
	raw := `{"data": {"output": {"outputs": [{"url": "https://cdn.example.com/a.jpg"}]}}}`
	ref, err := NormalizePayload([]byte(raw))
	if err != nil {
		t.Fatalf("NormalizePayload error: %v", err)
	}
	if ref.Kind != RasterURL || ref.URL != "https://cdn.example.com/a.jpg" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestNormalizePayloadB64Field(t *testing.T) {
	raw := `{"b64_json": "` + base64.StdEncoding.EncodeToString([]byte("img")) + `"}`
	ref, err := NormalizePayload([]byte(raw))
	if err != nil {
		t.Fatalf("NormalizePayload error: %v", err)
	}
	if ref.Kind != RasterInline || string(ref.Data) != "img" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestNormalizePayloadUnrecognized(t *testing.T) {
	for _, raw := range []string{``, `{"foo": 1}`, `"not a url"`, `42`} {
		if _, err := NormalizePayload([]byte(raw)); !errors.Is(err, ErrUnrecognizedPayload) {
			t.Fatalf("payload %q: err = %v, want ErrUnrecognizedPayload", raw, err)
		}
	}
}
