// Package googlebooks searches the Google Books volumes API.
package googlebooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"booklend/internal/platform"
)

// Volume is the subset of volumeInfo the application reads.
type Volume struct {
	ID            string
	Title         string
	Authors       []string
	Publisher     string
	PublishedDate string
	ISBN13        string
	ISBN10        string
	Thumbnail     string
	Language      string
}

type Client struct {
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	caller  *platform.Caller
}

// NewClient builds a client paced at rps requests per second. The API key is
// optional; without it requests share the anonymous quota.
func NewClient(apiKey, baseURL string, rps float64, opts ...platform.CallerOption) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		caller:  platform.NewCaller("google_books", 10*time.Second, opts...),
	}
}

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title               string   `json:"title"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			Language            string   `json:"language"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
			ImageLinks struct {
				SmallThumbnail string `json:"smallThumbnail"`
				Thumbnail      string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Search runs a volumes query and returns at most maxResults volumes.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Volume, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("printType", "books")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	u := fmt.Sprintf("%s/books/v1/volumes?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.caller.Do(req)
	if err != nil {
		return nil, err
	}

	var res volumesResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("google books: decode response: %w", err)
	}

	out := make([]Volume, 0, len(res.Items))
	for _, it := range res.Items {
		info := it.VolumeInfo
		v := Volume{
			ID:            it.ID,
			Title:         info.Title,
			Authors:       info.Authors,
			Publisher:     info.Publisher,
			PublishedDate: info.PublishedDate,
			Language:      info.Language,
			Thumbnail:     info.ImageLinks.Thumbnail,
		}
		if v.Thumbnail == "" {
			v.Thumbnail = info.ImageLinks.SmallThumbnail
		}
		for _, id := range info.IndustryIdentifiers {
			switch id.Type {
			case "ISBN_13":
				v.ISBN13 = id.Identifier
			case "ISBN_10":
				v.ISBN10 = id.Identifier
			}
		}
		out = append(out, v)
	}
	return out, nil
}
