package image

import (
	"context"

	"server/internal/providers/genai"
)

// GeminiEditor adapts the Gemini client to the Editor contract.
type GeminiEditor struct {
	client *genai.Client
}

func NewGeminiEditor(client *genai.Client) *GeminiEditor {
	return &GeminiEditor{client: client}
}

// Ready reports whether the underlying client has credentials configured.
func (g *GeminiEditor) Ready() bool {
	return g != nil && g.client.HasCredentials()
}

func (g *GeminiEditor) Edit(ctx context.Context, req EditRequest) (RasterRef, error) {
	asset, err := g.client.EditImage(ctx, genai.EditRequest{
		Instruction: req.Instruction,
		ImageData:   req.Source.Data,
		ImageMIME:   req.Source.MIMEType,
		ImageURL:    req.Source.URL,
		RequestID:   req.RequestID,
	})
	if err != nil {
		return RasterRef{}, err
	}
	if len(asset.Data) > 0 {
		mime := asset.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return RasterRef{Kind: RasterInline, MIMEType: mime, Data: asset.Data}, nil
	}
	return RasterRef{Kind: RasterURL, URL: asset.URL, MIMEType: asset.MIMEType}, nil
}

var _ Editor = (*GeminiEditor)(nil)
