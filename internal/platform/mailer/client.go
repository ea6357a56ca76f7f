// Package mailer sends transactional email through a Resend-compatible API.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"booklend/internal/platform"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Client struct {
	apiKey  string
	from    string
	baseURL string
	caller  *platform.Caller
}

func NewClient(apiKey, from, baseURL string, opts ...platform.CallerOption) *Client {
	return &Client{
		apiKey:  apiKey,
		from:    from,
		baseURL: baseURL,
		caller:  platform.NewCaller("email", 10*time.Second, opts...),
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Send delivers m and returns the provider's message id.
func (c *Client) Send(ctx context.Context, m Message) (string, error) {
	if c.apiKey == "" {
		return "", platform.NotConfigured("EMAIL_API_KEY")
	}
	if c.from == "" {
		return "", platform.NotConfigured("EMAIL_FROM")
	}
	if m.To == "" {
		return "", fmt.Errorf("mailer: message has no recipient")
	}

	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{m.To},
		Subject: m.Subject,
		HTML:    m.HTML,
		Text:    m.Text,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.caller.Do(req)
	if err != nil {
		return "", err
	}

	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("mailer: decode response: %w", err)
	}
	return res.ID, nil
}
