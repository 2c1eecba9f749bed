package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"timesheets/internal/domain/audit"
	"timesheets/internal/domain/auth"
	"timesheets/internal/domain/directory"
	"timesheets/internal/domain/timesheet"
	"timesheets/internal/platform/config"
	"timesheets/internal/platform/db"
	"timesheets/internal/platform/events"
	"timesheets/internal/platform/metrics"
	"timesheets/internal/transport/http/api"
	audithandler "timesheets/internal/transport/http/handlers/audit"
	timesheethandler "timesheets/internal/transport/http/handlers/timesheet"
	"timesheets/internal/transport/http/middleware"
)

const shutdownTimeout = 20 * time.Second

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Metrics *metrics.Collector
	events  events.Publisher
}

// New connects the backing services, applies migrations and seeds, and
// builds the router. Close releases everything New acquired.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed failed: %w", err)
		}
	}

	publisher, err := events.New(events.KafkaConfig{
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaTopic,
		ClientID:      "timesheets",
		RetryDuration: cfg.KafkaRetry,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("kafka connect failed: %w", err)
	}

	app := &App{Config: cfg, DB: pool, Metrics: metrics.New(), events: publisher}
	app.Router = app.routes()
	return app, nil
}

func (a *App) routes() http.Handler {
	cfg := a.Config
	tracer := otel.Tracer("timesheets")

	dirStore := directory.NewStore(a.DB)
	auditSvc := audit.New(a.DB)
	perms := auth.NewStore(a.DB)

	svc := timesheet.NewService(timesheet.NewStore(a.DB, tracer, cfg.StoreTimeout), dirStore, auditSvc, a.events)
	svc.Concurrency = cfg.BulkConcurrency
	svc.Permissions = perms

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(a.Metrics))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, dirStore))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))

		timesheetHandler := timesheethandler.NewHandler(svc, perms, auditSvc, middleware.NewIdempotencyStore(a.DB), a.Metrics, timesheethandler.Limits{
			BulkMaxItems:      cfg.BulkMaxItems,
			BulkRatePerMinute: cfg.BulkRateLimitPerMinute,
		})
		timesheetHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditSvc, perms)
		auditHandler.RegisterRoutes(r)
	})

	return router
}

func (a *App) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			slog.Warn("event publisher close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run loads configuration from the environment and serves until SIGINT or
// SIGTERM, then drains in-flight requests.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("timesheet server listening", "addr", cfg.Addr, "env", cfg.Environment)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown started")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
