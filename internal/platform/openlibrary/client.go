// Package openlibrary is the fallback metadata source used when Google Books
// has no match for a refined title.
package openlibrary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"booklend/internal/platform"
)

type Client struct {
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	caller     *platform.Caller
}

func NewClient(baseURL, userAgent string, rps float64, maxRetries int, opts ...platform.CallerOption) *Client {
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		userAgent:  userAgent,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: maxRetries,
		backoff:    time.Second,
		caller:     platform.NewCaller("open_library", 15*time.Second, opts...),
	}
}

// Doc is one entry of search.json.
type Doc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorNames      []string `json:"author_name"`
	ISBN             []string `json:"isbn"`
	Publishers       []string `json:"publisher"`
	FirstPublishYear int      `json:"first_publish_year"`
	Language         []string `json:"language"`
	CoverID          int      `json:"cover_i"`
}

// CoverURL returns the medium cover image URL, or "" without a cover id.
func (d Doc) CoverURL() string {
	if d.CoverID == 0 {
		return ""
	}
	return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", d.CoverID)
}

type searchResponse struct {
	NumFound int   `json:"numFound"`
	Docs     []Doc `json:"docs"`
}

const searchFields = "key,title,author_name,isbn,publisher,first_publish_year,language,cover_i"

// SearchByTitle queries search.json by title and, when known, author.
func (c *Client) SearchByTitle(ctx context.Context, title, author string, limit int) ([]Doc, error) {
	q := url.Values{}
	q.Set("title", title)
	if author != "" {
		q.Set("author", author)
	}
	q.Set("fields", searchFields)
	q.Set("limit", strconv.Itoa(limit))

	var res searchResponse
	if err := c.get(ctx, c.baseURL+"/search.json?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	return res.Docs, nil
}

func (c *Client) get(ctx context.Context, u string, target any) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			// Backoff: 1s, 2s, 4s...
			backoff := time.Duration(1<<uint(i-1)) * c.backoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)

		body, err := c.caller.Do(req)
		if err != nil {
			if retryable(err) {
				lastErr = err
				continue
			}
			return err
		}
		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("open library: decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, platform.ErrCircuitOpen) {
		return false
	}
	var ue *platform.UpstreamError
	if errors.As(err, &ue) {
		return ue.Temporary()
	}
	var te *platform.TransportError
	return errors.As(err, &te)
}
