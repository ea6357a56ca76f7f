package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thejerf/suture/v4"

	"booklend/internal/book"
	"booklend/internal/config"
	"booklend/internal/loan"
	"booklend/internal/logging"
	"booklend/internal/platform"
	"booklend/internal/platform/gemini"
	"booklend/internal/platform/googlebooks"
	"booklend/internal/platform/identity"
	"booklend/internal/platform/mailer"
	"booklend/internal/platform/openlibrary"
	"booklend/internal/platform/vision"
	"booklend/internal/profile"
	"booklend/internal/ratelimit"
	"booklend/internal/recognition"
	"booklend/internal/reminder"
)

func main() {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load configuration")
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool := mustOpenDB(ctx, cfg.Database.DSN)
	defer dbPool.Close()

	limits, err := ratelimit.Open(cfg.RateLimit.StorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("open rate limit store")
	}
	defer func() { _ = limits.Close() }()

	alert := platform.WithOpenAlert(func(service string) {
		first, err := limits.Once(context.Background(), "breaker-open:"+service, cfg.RateLimit.AlertSuppression)
		if err == nil && first {
			logging.Error().Str("service", service).Msg("upstream unavailable, circuit opened")
		}
	})

	timeout := cfg.Database.Timeout
	profileRepo := profile.NewPostgresRepo(dbPool, timeout)
	bookRepo := book.NewPostgresRepo(dbPool, timeout)
	loanRepo := loan.NewPostgresRepo(dbPool, timeout)
	reminderRepo := reminder.NewPostgresRepo(dbPool, timeout)

	mail := mailer.NewClient(cfg.Email.APIKey, cfg.Email.From, cfg.Email.BaseURL, alert)

	recognitionService := recognition.NewService(
		vision.NewClient(cfg.Vision.APIKey, cfg.Vision.BaseURL, alert),
		googlebooks.NewClient(cfg.Books.GoogleAPIKey, cfg.Books.GoogleBaseURL, cfg.Books.RequestsPerSecond, alert),
		openlibrary.NewClient(cfg.Books.OpenLibraryBaseURL, cfg.Books.UserAgent, cfg.Books.RequestsPerSecond, cfg.Books.MaxRetries, alert),
		gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL, alert),
	)
	profileService := profile.NewService(profileRepo)
	bookService := book.NewService(bookRepo)
	loanService := loan.NewService(loanRepo, bookService, profileRepo, mail, loan.Config{
		LoanDays:   cfg.Loan.DefaultDays,
		TokenTTL:   cfg.Loan.ActionTokenTTL,
		AppBaseURL: cfg.Loan.AppBaseURL,
	})
	reminderService := reminder.NewService(reminderRepo, mail)

	router := newRouter(routerDeps{
		cfg:      cfg.Server,
		rate:     cfg.RateLimit,
		verifier: newSessionVerifier(identity.NewVerifier(cfg.Identity.URL, cfg.Identity.ServiceKey, cfg.Identity.JWTSecret, alert), profileService, limits),
		limiter:  limits,
		ready:    dbPool.Ping,
		h: handlers{
			recognition: recognition.NewHTTPHandler(recognitionService),
			books:       book.NewHTTPHandler(bookService),
			profiles:    profile.NewHTTPHandler(profileService),
			loans:       loan.NewHTTPHandler(loanService),
			reminders:   reminder.NewHTTPHandler(reminderService),
		},
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sup := suture.New("booklend", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn().Str("event", e.String()).Msg("supervisor event")
		},
	})
	sup.Add(&serverService{srv: httpServer})
	if cfg.Reminder.Interval > 0 {
		sup.Add(reminder.NewTicker(reminderService, cfg.Reminder.Interval))
		logging.Info().Dur("interval", cfg.Reminder.Interval).Msg("in-process reminder ticker enabled")
	}

	logging.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	logging.Info().Msg("shut down")
}

// serverService adapts http.Server to suture.Service.
type serverService struct {
	srv *http.Server
}

func (s *serverService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return suture.ErrDoNotRestart
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("http shutdown")
		}
		return ctx.Err()
	}
}

func (s *serverService) String() string { return "http-server" }

func mustOpenDB(ctx context.Context, dsn string) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logging.Fatal().Err(err).Msg("cannot create db pool")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		logging.Fatal().Err(err).Str("dsn", redactDSN(dsn)).Msg("cannot ping database")
	}
	logging.Info().Msg("database connection OK")
	return pool
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
