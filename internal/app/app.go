// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/soc-relay/internal/alerts"
	"github.com/bissquit/soc-relay/internal/bot"
	"github.com/bissquit/soc-relay/internal/config"
	"github.com/bissquit/soc-relay/internal/pkg/httputil"
	"github.com/bissquit/soc-relay/internal/registry"
	registryfile "github.com/bissquit/soc-relay/internal/registry/file"
	"github.com/bissquit/soc-relay/internal/telegram"
	"github.com/bissquit/soc-relay/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	store         registry.Store
	server        *http.Server
	metricsServer *http.Server
	poller        *bot.Poller
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	store := registryfile.NewStore(cfg.Storage.Path)

	tgClient, err := telegram.NewClient(telegram.Config{
		BotToken:  cfg.Telegram.BotToken,
		RateLimit: cfg.Telegram.RateLimit,
		Timeout:   cfg.Telegram.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	dispatcher := alerts.NewDispatcher(tgClient, cfg.Dispatch.AttemptTimeout)
	ingestService := alerts.NewService(alerts.NewGate(store), dispatcher)
	ingestHandler := alerts.NewHandler(ingestService)

	commands := bot.NewCommands(store, dispatcher, tgClient, cfg.Bot.SuperAdminIDs)
	poller := bot.NewPoller(bot.PollerConfig{
		PollTimeout: cfg.Bot.PollTimeout,
		RetryDelay:  cfg.Bot.RetryDelay,
	}, tgClient, commands)

	if cfg.Ingest.APIKey == "" {
		logger.Warn("no ingest API key configured: running in open mode, anyone who can reach the endpoint can submit alerts")
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		store:         store,
		poller:        poller,
		metricsCancel: metricsCancel,
	}

	go app.collectRegistryMetrics(metricsCtx)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(ingestHandler),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the bot poller and the HTTP servers. It blocks until the
// main server stops.
func (a *App) Run() error {
	a.poller.Start(context.Background())

	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting ingest server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.metricsCancel()
	a.poller.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(ingestHandler *alerts.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLogger(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", a.healthHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Group(func(r chi.Router) {
		r.Use(httputil.APIKeyAuth(a.config.Ingest.APIKey))
		ingestHandler.RegisterRoutes(r)
	})

	return r
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"git_commit": version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func (a *App) collectRegistryMetrics(ctx context.Context) {
	a.recordRegistrySize(ctx)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.recordRegistrySize(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) recordRegistrySize(ctx context.Context) {
	recipients, err := a.store.List(ctx)
	if err != nil {
		a.logger.Error("failed to read registry for metrics", "error", err)
		return
	}
	alerts.RecordRegistrySize(len(recipients))
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
