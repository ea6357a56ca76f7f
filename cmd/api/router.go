package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"booklend/internal/book"
	"booklend/internal/config"
	"booklend/internal/httpx"
	"booklend/internal/loan"
	"booklend/internal/metrics"
	"booklend/internal/profile"
	"booklend/internal/recognition"
	"booklend/internal/reminder"
)

type handlers struct {
	recognition *recognition.HTTPHandler
	books       *book.HTTPHandler
	profiles    *profile.HTTPHandler
	loans       *loan.HTTPHandler
	reminders   *reminder.HTTPHandler
}

type routerDeps struct {
	cfg      config.ServerConfig
	rate     config.RateLimitConfig
	verifier httpx.TokenVerifier
	limiter  httpx.Limiter
	ready    func(ctx context.Context) error
	h        handlers
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(httpx.RequestIDMiddleware)
	r.Use(httpx.RecoveryMiddleware)
	r.Use(httpx.AccessLogMiddleware)
	r.Use(httpx.SecurityHeadersMiddleware(d.cfg.EnableHSTS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if d.cfg.IPRequestsLimit > 0 {
		r.Use(httprate.LimitByIP(d.cfg.IPRequestsLimit, d.cfg.IPWindow))
	}
	r.Use(httpx.RequestSizeLimitMiddleware(d.cfg.MaxBodyBytes))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := d.ready(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	// Emailed links carry their own credential.
	r.Get("/loan-action", d.h.loans.LoanActionPage)
	r.Post("/loan-action", d.h.loans.LoanAction)

	auth := httpx.AuthMiddleware(d.verifier)
	recognizeLimit := httpx.UserRateLimitMiddleware(d.limiter, "recognize", d.rate.RecognizeLimit, d.rate.RecognizeWindow)

	// The method is checked before the session, so a GET is a 405 either way.
	post := func(h http.HandlerFunc, inner ...func(http.Handler) http.Handler) http.Handler {
		var next http.Handler = h
		for i := len(inner) - 1; i >= 0; i-- {
			next = inner[i](next)
		}
		return httpx.PostOnly(auth(next))
	}

	r.Handle("/gemini-cover-to-book", post(d.h.recognition.IdentifyCover, recognizeLimit))
	r.Handle("/cover-to-book", post(d.h.recognition.Recognize, recognizeLimit))
	r.Handle("/refine-query", post(d.h.recognition.Refine, recognizeLimit))
	r.Handle("/search-book-by-title", post(d.h.recognition.Search, recognizeLimit))

	r.Handle("/request-loan", post(d.h.loans.RequestLoan))
	r.Handle("/manage-loan-request", post(d.h.loans.ManageLoanRequest))
	r.Handle("/cancel-loan", post(d.h.loans.CancelLoan))
	r.Handle("/return-loan", post(d.h.loans.ReturnLoan))

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Get("/loans", d.h.loans.List)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", d.h.books.List)
			r.Post("/", d.h.books.Create)
			r.Get("/{id}", d.h.books.Get)
			r.Delete("/{id}", d.h.books.Delete)
		})

		r.Get("/me/profile", d.h.profiles.GetOwnProfile)
		r.Patch("/me/profile", d.h.profiles.UpdateProfile)
	})

	r.Route("/internal/jobs", func(r chi.Router) {
		r.Use(httpx.InternalSecretMiddleware(d.cfg.InternalSecret))
		r.Post("/due-reminders", d.h.reminders.DueReminders)
	})

	return r
}
