package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// QwenOptions configures the DashScope image-edit client.
type QwenOptions struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// QwenEditor calls DashScope's qwen-image-edit model.
type QwenEditor struct {
	httpClient *http.Client
	baseURL    string
	token      string
	model      string
}

func NewQwenEditor(opts QwenOptions) *QwenEditor {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	model := opts.Model
	if model == "" {
		model = "qwen-image-edit"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &QwenEditor{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIKey),
		model:      model,
	}
}

// Ready reports whether credentials are configured.
func (c *QwenEditor) Ready() bool {
	return c != nil && c.token != ""
}

type qwenRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []qwenMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		Watermark bool `json:"watermark"`
	} `json:"parameters"`
}

type qwenMessage struct {
	Role    string              `json:"role"`
	Content []map[string]string `json:"content"`
}

type qwenResp struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []json.RawMessage `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Edit applies one instruction to one image and returns the normalized result.
func (c *QwenEditor) Edit(ctx context.Context, req EditRequest) (RasterRef, error) {
	if c == nil {
		return RasterRef{}, errors.New("qwen: client not configured")
	}
	if c.token == "" {
		return RasterRef{}, errors.New("qwen: api key is missing")
	}

	imageRef := strings.TrimSpace(req.Source.URL)
	if imageRef == "" && len(req.Source.Data) > 0 {
		mime := req.Source.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		imageRef = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Source.Data)
	}
	if imageRef == "" {
		return RasterRef{}, errors.New("qwen: image url or data required")
	}

	var payload qwenRequest
	payload.Model = c.model
	payload.Input.Messages = []qwenMessage{{
		Role: "user",
		Content: []map[string]string{
			{"image": imageRef},
			{"text": req.Instruction},
		},
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		return RasterRef{}, err
	}
	endpoint := c.baseURL + "/services/aigc/multimodal-generation/generation"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return RasterRef{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return RasterRef{}, err
	}
	defer resp.Body.Close()

	var out qwenResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return RasterRef{}, fmt.Errorf("qwen: http %d", resp.StatusCode)
		}
		return RasterRef{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Message != "" {
			return RasterRef{}, fmt.Errorf("qwen error: %s (%s)", out.Message, out.Code)
		}
		return RasterRef{}, fmt.Errorf("qwen: http %d", resp.StatusCode)
	}
	if len(out.Output.Choices) == 0 || len(out.Output.Choices[0].Message.Content) == 0 {
		if out.Message != "" {
			return RasterRef{}, fmt.Errorf("qwen error: %s (%s)", out.Message, out.Code)
		}
		return RasterRef{}, errors.New("qwen: empty response")
	}

	// Content entries arrive either as {"image": "<url>"} objects or as bare
	// strings; normalize whichever shape shows up first.
	for _, entry := range out.Output.Choices[0].Message.Content {
		var obj map[string]string
		if err := json.Unmarshal(entry, &obj); err == nil {
			if img := strings.TrimSpace(obj["image"]); img != "" {
				return refFromString(img)
			}
			continue
		}
		if ref, err := NormalizePayload(entry); err == nil {
			return ref, nil
		}
	}
	return RasterRef{}, ErrUnrecognizedPayload
}

var _ Editor = (*QwenEditor)(nil)
