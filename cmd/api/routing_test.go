package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklend/internal/book"
	"booklend/internal/config"
	"booklend/internal/httpx"
	"booklend/internal/loan"
	"booklend/internal/profile"
	"booklend/internal/recognition"
	"booklend/internal/reminder"
)

type staticVerifier struct{}

func (staticVerifier) VerifyToken(_ context.Context, token string) (httpx.Identity, error) {
	if token != "good" {
		return httpx.Identity{}, httpx.ErrInvalidSession
	}
	return httpx.Identity{UserID: "user-1", Email: "user@example.com"}, nil
}

func testRouter(t *testing.T, mutate func(*routerDeps)) http.Handler {
	t.Helper()
	d := routerDeps{
		cfg: config.ServerConfig{
			CORSOrigins:    []string{"http://localhost:3000"},
			MaxBodyBytes:   1 << 20,
			InternalSecret: "s3cret",
		},
		verifier: staticVerifier{},
		ready:    func(context.Context) error { return nil },
		h: handlers{
			recognition: recognition.NewHTTPHandler(nil),
			books:       book.NewHTTPHandler(nil),
			profiles:    profile.NewHTTPHandler(nil),
			loans:       loan.NewHTTPHandler(nil),
			reminders:   reminder.NewHTTPHandler(nil),
		},
	}
	if mutate != nil {
		mutate(&d)
	}
	return newRouter(d)
}

func serve(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthEndpoints(t *testing.T) {
	r := testRouter(t, nil)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/metrics", nil).Code)

	down := testRouter(t, func(d *routerDeps) {
		d.ready = func(context.Context) error { return errors.New("no db") }
	})
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/readyz", nil).Code)
}

func TestRouter_PublicEndpointsArePostOnly(t *testing.T) {
	r := testRouter(t, nil)
	auth := map[string]string{"Authorization": "Bearer good"}

	for _, path := range []string{
		"/gemini-cover-to-book", "/cover-to-book", "/refine-query", "/search-book-by-title",
		"/request-loan", "/manage-loan-request", "/cancel-loan", "/return-loan",
	} {
		t.Run(path, func(t *testing.T) {
			for _, header := range []map[string]string{auth, nil, {"Authorization": "Bearer expired"}} {
				rec := serve(r, http.MethodGet, path, header)
				assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
				assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Allow"))
			}
			assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodPut, path, nil).Code)

			assert.Equal(t, http.StatusNoContent, serve(r, http.MethodOptions, path, nil).Code)
			assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, path, nil).Code)
		})
	}
}

func TestRouter_LoanActionLink(t *testing.T) {
	r := testRouter(t, nil)
	// Reachable without a session; only POST redeems.
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := serve(r, method, "/loan-action", nil)
		assert.NotEqual(t, http.StatusUnauthorized, rec.Code, method)
		assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code, method)
	}
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodDelete, "/loan-action", nil).Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := testRouter(t, nil)
	rec := serve(r, http.MethodOptions, "/cover-to-book", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(r, http.MethodOptions, "/cover-to-book", map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": "POST",
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_InternalJobsNeedSecret(t *testing.T) {
	r := testRouter(t, nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/internal/jobs/due-reminders", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/internal/jobs/due-reminders",
		map[string]string{"X-Internal-Secret": "wrong"}).Code)
}

func TestRouter_SessionRequired(t *testing.T) {
	r := testRouter(t, nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/books", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/loans",
		map[string]string{"Authorization": "Bearer expired"}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me/profile", nil).Code)
}

func TestRouter_IPRateLimit(t *testing.T) {
	r := testRouter(t, func(d *routerDeps) {
		d.cfg.IPRequestsLimit = 2
		d.cfg.IPWindow = time.Minute
	})
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/healthz", nil).Code)
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://***@db:5432/booklend", redactDSN("postgres://app:secret@db:5432/booklend"))
	assert.Equal(t, "host=db", redactDSN("host=db"))
}
