// Package identity resolves session tokens to users, either locally with the
// provider's JWT secret or by asking the provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"booklend/internal/httpx"
	"booklend/internal/platform"
)

type Verifier struct {
	baseURL    string
	serviceKey string
	jwtSecret  string
	caller     *platform.Caller
}

func NewVerifier(baseURL, serviceKey, jwtSecret string, opts ...platform.CallerOption) *Verifier {
	return &Verifier{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		jwtSecret:  jwtSecret,
		caller:     platform.NewCaller("identity", 5*time.Second, opts...),
	}
}

// VerifyToken implements httpx.TokenVerifier.
func (v *Verifier) VerifyToken(ctx context.Context, token string) (httpx.Identity, error) {
	if v.jwtSecret != "" {
		claims, err := ParseToken(v.jwtSecret, token)
		if err != nil {
			return httpx.Identity{}, fmt.Errorf("%w: %v", httpx.ErrInvalidSession, err)
		}
		return httpx.Identity{UserID: claims.Subject, Email: claims.Email}, nil
	}
	return v.fetchUser(ctx, token)
}

func (v *Verifier) fetchUser(ctx context.Context, token string) (httpx.Identity, error) {
	if v.baseURL == "" || v.serviceKey == "" {
		return httpx.Identity{}, platform.NotConfigured("IDENTITY_URL and IDENTITY_SERVICE_KEY")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return httpx.Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.serviceKey)

	body, err := v.caller.Do(req)
	if err != nil {
		var ue *platform.UpstreamError
		if errors.As(err, &ue) && (ue.StatusCode == http.StatusUnauthorized || ue.StatusCode == http.StatusForbidden) {
			return httpx.Identity{}, httpx.ErrInvalidSession
		}
		return httpx.Identity{}, err
	}

	var u struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return httpx.Identity{}, fmt.Errorf("identity: decode user: %w", err)
	}
	if u.ID == "" {
		return httpx.Identity{}, httpx.ErrInvalidSession
	}
	return httpx.Identity{UserID: u.ID, Email: u.Email}, nil
}
