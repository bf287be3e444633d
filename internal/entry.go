// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/commitquest/internal/api"
	"github.com/starford/commitquest/internal/backend"
	"github.com/starford/commitquest/internal/events"
	"github.com/starford/commitquest/internal/github"
	"github.com/starford/commitquest/internal/goals"
	"github.com/starford/commitquest/internal/graphservice"
	"github.com/starford/commitquest/internal/index"
	"github.com/starford/commitquest/internal/mcpserver"
	"github.com/starford/commitquest/internal/metrics"
	"github.com/starford/commitquest/internal/session"
	"github.com/starford/commitquest/internal/sse"
	"github.com/starford/commitquest/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// core is the storage stack shared by the HTTP and MCP entry points.
type core struct {
	store storage.Provider
	db    *index.DB
}

func openCore(cfg *Config, logger *slog.Logger) (*core, error) {
	// Ensure snapshot directory exists.
	if err := os.MkdirAll(cfg.Snapshots.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Snapshots.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return &core{store: store, db: db}, nil
}

func newGraphService(cfg *Config, c *core, logger *slog.Logger, onChange graphservice.ChangeFunc) *graphservice.Service {
	gh := github.New(github.Options{
		BaseURL:       cfg.GitHub.BaseURL,
		Token:         cfg.GitHub.Token,
		BranchLimit:   cfg.GitHub.BranchLimit,
		BranchCommits: cfg.GitHub.BranchCommits,
		Concurrency:   cfg.GitHub.Concurrency,
		RatePerSec:    cfg.GitHub.RatePerSec,
	})
	return graphservice.New(c.store, c.db, gh, graphservice.Options{
		Layout:         cfg.Layout,
		CommitsPerPage: cfg.GitHub.CommitsPerPage,
		CacheTTL:       cfg.GitHub.CacheTTL,
	}, logger, onChange)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("snapshots_path", cfg.Snapshots.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("backend", cfg.Backend.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := openCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	// SSE broker.
	broker := sse.NewBroker(cfg.SSE.GraphThrottle)
	defer broker.Close()

	graphs := newGraphService(cfg, c, logger, broker.PublishRepoEvent)
	deps := api.Deps{Graphs: graphs, Broker: broker}

	var (
		state *session.State
		bc    *backend.Client
	)
	if cfg.Backend.Enabled() {
		bc = backend.New(cfg.Backend.BaseURL, cfg.Backend.Token, nil)
		state = session.New()
		gs := goals.New(bc, logger, rollbackRelay(broker))
		state.Subscribe(sessionRelay(broker, gs))

		if unread, err := bc.Unread(ctx); err != nil {
			logger.Warn("events: load backlog failed", slog.String("error", err.Error()))
		} else {
			state.LoadBacklog(unread)
		}

		deps.Session = state
		deps.Goals = gs
		deps.Upstream = bc
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(deps, cfg.Auth.AuthEnabled(), cfg.Auth.Token))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start snapshot watcher with SSE callback.
	if cfg.Snapshots.Watch {
		g.Go(func() error {
			if err := index.Watch(gCtx, c.db, c.store, cfg.Snapshots.Path, logger, broker.PublishRepoEvent); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Consume the upstream event stream.
	if state != nil {
		upstream := make(chan events.Event, 64)
		g.Go(func() error {
			defer close(upstream)
			stream := events.NewStream(bc, cfg.Backend.ReconnectMax, logger)
			if err := stream.Run(gCtx, upstream); err != nil {
				logger.Error("events: stream stopped", slog.String("error", err.Error()))
			}
			return nil
		})
		g.Go(func() error {
			return state.Run(gCtx, upstream)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so background loops stop with the server.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the MCP tool surface on stdin/stdout. Logs go to stderr.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	c, err := openCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	graphs := newGraphService(cfg, c, logger, nil)
	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(graphs, app.version).ServeStdio()
}
