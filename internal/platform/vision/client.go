// Package vision is a minimal client for the Cloud Vision images:annotate
// endpoint, limited to web detection and text detection.
package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"booklend/internal/platform"
)

// ErrNoResponses is returned when the service answers without any result.
var ErrNoResponses = errors.New("vision: empty responses")

type WebEntity struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Annotation is what the recognition pipeline needs from one image.
type Annotation struct {
	BestGuessLabels []string
	WebEntities     []WebEntity
	Text            string
}

type Client struct {
	apiKey  string
	baseURL string
	caller  *platform.Caller
}

func NewClient(apiKey, baseURL string, opts ...platform.CallerOption) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		caller:  platform.NewCaller("vision", 20*time.Second, opts...),
	}
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type annotateResponse struct {
	Responses []struct {
		WebDetection *struct {
			BestGuessLabels []struct {
				Label string `json:"label"`
			} `json:"bestGuessLabels"`
			WebEntities []WebEntity `json:"webEntities"`
		} `json:"webDetection"`
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// Annotate runs web and text detection on a base64-encoded image.
func (c *Client) Annotate(ctx context.Context, imageBase64 string) (Annotation, error) {
	if c.apiKey == "" {
		return Annotation{}, platform.NotConfigured("VISION_API_KEY")
	}

	var ir imageRequest
	ir.Image.Content = imageBase64
	ir.Features = []feature{
		{Type: "WEB_DETECTION", MaxResults: 10},
		{Type: "TEXT_DETECTION"},
	}
	payload, err := json.Marshal(annotateRequest{Requests: []imageRequest{ir}})
	if err != nil {
		return Annotation{}, err
	}

	u := fmt.Sprintf("%s/v1/images:annotate?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return Annotation{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.caller.Do(req)
	if err != nil {
		return Annotation{}, err
	}

	var res annotateResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return Annotation{}, fmt.Errorf("vision: decode response: %w", err)
	}
	if len(res.Responses) == 0 {
		return Annotation{}, ErrNoResponses
	}

	r := res.Responses[0]
	if r.Error != nil {
		return Annotation{}, &platform.UpstreamError{Service: "vision", StatusCode: http.StatusBadGateway, Body: r.Error.Message}
	}

	var out Annotation
	if r.WebDetection != nil {
		for _, l := range r.WebDetection.BestGuessLabels {
			out.BestGuessLabels = append(out.BestGuessLabels, l.Label)
		}
		out.WebEntities = r.WebDetection.WebEntities
	}
	switch {
	case r.FullTextAnnotation != nil:
		out.Text = r.FullTextAnnotation.Text
	case len(r.TextAnnotations) > 0:
		out.Text = r.TextAnnotations[0].Description
	}
	return out, nil
}
