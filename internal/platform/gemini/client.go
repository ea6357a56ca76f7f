// Package gemini calls the generateContent endpoint of the Gemini API.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"booklend/internal/platform"
)

// ErrEmptyResponse means the model answered without any text part.
var ErrEmptyResponse = errors.New("gemini: empty response")

// Image is sent inline next to the prompt.
type Image struct {
	MIMEType string
	Base64   string
}

type Client struct {
	apiKey  string
	model   string
	baseURL string
	caller  *platform.Caller
}

func NewClient(apiKey, model, baseURL string, opts ...platform.CallerOption) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		caller:  platform.NewCaller("gemini", 30*time.Second, opts...),
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents []struct {
		Parts []part `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		ResponseMIMEType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateJSON sends prompt, and img when non-nil, asking for a JSON answer.
// It returns the concatenated text of the first candidate.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, img *Image) (string, error) {
	if c.apiKey == "" {
		return "", platform.NotConfigured("GEMINI_API_KEY")
	}

	parts := []part{{Text: prompt}}
	if img != nil {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, part{InlineData: &inlineData{MIMEType: mime, Data: img.Base64}})
	}

	var gr generateRequest
	gr.Contents = append(gr.Contents, struct {
		Parts []part `json:"parts"`
	}{Parts: parts})
	gr.GenerationConfig.Temperature = 0.1
	gr.GenerationConfig.ResponseMIMEType = "application/json"

	payload, err := json.Marshal(gr)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.caller.Do(req)
	if err != nil {
		return "", err
	}

	var res generateResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(res.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, p := range res.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
