// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dreamland/internal/api"
	"github.com/starford/dreamland/internal/extraction"
	"github.com/starford/dreamland/internal/inbox"
	"github.com/starford/dreamland/internal/mcpserver"
	"github.com/starford/dreamland/internal/metrics"
	"github.com/starford/dreamland/internal/reconcile"
	"github.com/starford/dreamland/internal/sse"
	"github.com/starford/dreamland/internal/store"
	"github.com/starford/dreamland/internal/worker"
	"github.com/starford/dreamland/internal/worldservice"
)

// Components is the wired application: the world store and everything
// built on it. Commands that do not serve HTTP use it directly.
type Components struct {
	Config  *Config
	Logger  *slog.Logger
	DB      *store.DB
	Metrics *metrics.Collector
	Engine  *reconcile.Engine
	Queue   *worker.Queue
	Broker  *sse.Broker
	Service *worldservice.Service
}

// Build opens the store and wires the extraction adapter, reconciliation
// engine, processing queue, event broker and world service. Call Close when done.
func Build(ctx context.Context, opts ...Option) (*Components, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("extraction_provider", cfg.Extraction.Provider),
		slog.String("extraction_model", cfg.Extraction.ModelOrDefault()),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	m := metrics.New()

	provider := app.extractor
	if provider == nil {
		provider, err = extraction.NewService(ctx, cfg.Extraction)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init extraction: %w", err)
		}
	}
	if provider == nil {
		logger.Warn("no extraction service configured, dreams will use keyword fallback")
	}
	adapter := extraction.NewAdapter(provider, cfg.Extraction, logger, m)

	engine := reconcile.New(db, adapter, logger, m)
	queue := worker.New(engine, cfg.Worker, logger, m)
	broker := sse.NewBroker(cfg.Events.Throttle)

	queue.OnDone(func(out reconcile.Outcome, err error) {
		if err != nil || out.Skipped {
			return
		}
		broker.PublishChange(sse.DreamProcessed, out)
	})

	svc := worldservice.New(db,
		worldservice.WithScheduler(queue),
		worldservice.WithPublisher(broker),
		worldservice.WithMetrics(m),
		worldservice.WithLogger(logger),
	)

	return &Components{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Metrics: m,
		Engine:  engine,
		Queue:   queue,
		Broker:  broker,
		Service: svc,
	}, nil
}

// Close stops the broker and closes the store.
func (c *Components) Close() error {
	c.Broker.Close()
	return c.DB.Close()
}

// Handler builds the root HTTP handler: health, metrics, status and the
// API under /api.
func (c *Components) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   c.Config.App.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(c.Metrics.Middleware)

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := c.Service.Ping(r.Context()); err != nil {
			c.Logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", c.Metrics.Handler().ServeHTTP)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]any{
			"service": "dreamland",
			"status":  "running",
			"queued":  c.Queue.Pending(),
			"clients": c.Broker.ClientCount(),
		})
	})

	// Mount API routes under /api, including the SSE stream at /api/events.
	r.Mount("/api", api.NewRouter(c.Service, c.Broker))

	return r
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run starts the HTTP server, processing workers and, when enabled, the
// journal inbox watcher. It returns after a shutdown signal or ctx ends.
func Run(ctx context.Context, opts ...Option) error {
	c, err := Build(ctx, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := c.Config
	logger := c.Logger

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	var box *inbox.Inbox
	if cfg.Inbox.Enabled {
		if box, err = inbox.New(cfg.Inbox.Path, c.Service, logger); err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start processing workers.
	g.Go(func() error {
		return c.Queue.Run(gCtx)
	})

	// Import journals already in the inbox, then watch for new ones.
	if box != nil {
		g.Go(func() error {
			if _, err := box.Sync(gCtx); err != nil {
				logger.Warn("initial inbox sync failed", slog.String("error", err.Error()))
			}
			if err := box.Watch(gCtx); err != nil {
				logger.Error("inbox watcher stopped", slog.String("error", err.Error()))
			}
			return nil
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

// errShutdown ends the group so the workers and watcher stop after a signal.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Recorded dreams are processed by
// the same background queue the HTTP server uses.
func RunMCP(ctx context.Context, opts ...Option) error {
	c, err := Build(ctx, append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer c.Close()

	qctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Queue.Run(qctx)
	}()

	c.Logger.Info("MCP server starting on stdio")
	err = mcpserver.New(c.Service).ServeStdio()
	cancel()
	<-done
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
