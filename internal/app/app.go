package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"FeedbackAnalyzer/internal/config"
	"FeedbackAnalyzer/internal/executor"
	"FeedbackAnalyzer/internal/infrastructure/llm"
	"FeedbackAnalyzer/internal/infrastructure/ml"
	"FeedbackAnalyzer/internal/infrastructure/storage"
	"FeedbackAnalyzer/internal/logging"
	"FeedbackAnalyzer/internal/observability"
	"FeedbackAnalyzer/internal/oracle"
	"FeedbackAnalyzer/internal/transport/httpapi"
	"FeedbackAnalyzer/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	return &Application{cfg: cfg, logger: baseLogger}
}

// Run connects to Postgres, starts the oracle pool, the bulk dispatcher and
// the HTTP server, and blocks until ctx is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	backend, err := newOracleRegistry(a.cfg.Oracle).Resolve(a.cfg.Oracle.Backend)
	if err != nil {
		return err
	}

	db, err := storage.Open(ctx, a.cfg.Database, a.logger.With("component", "storage"))
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	pool := executor.New(executor.Options{
		Workers:     a.cfg.Executor.Workers,
		QueueSize:   a.cfg.Executor.QueueSize,
		CallTimeout: a.cfg.Executor.CallTimeout,
	}, metrics, a.logger.With("component", "executor"))
	pool.Start()
	defer pool.Close()

	guarded := oracle.Guard(backend, a.cfg.Oracle.MaxInputTokens, a.logger.With("component", "oracle", "backend", backend.Name()))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Oracle:  pool.Bind(guarded),
		Store:   repo,
		Metrics: metrics,
		Logger:  a.logger.With("component", "pipeline"),
	})

	dispatcher := usecase.NewBulkDispatcher(pipeline, a.cfg.Bulk.QueueSize, metrics, a.logger.With("component", "bulk"))
	dispatcher.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.Deps{
		Processor: pipeline,
		Bulk:      dispatcher,
		Reader:    repo,
		Health:    db,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:    a.logger.With("component", "http"),
		RateLimit: a.cfg.HTTP.RateLimit,
		RateBurst: a.cfg.HTTP.RateBurst,
	})

	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", server.Addr, "oracle", backend.Name(), "workers", a.cfg.Executor.Workers)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		a.logger.Warn("bulk dispatcher abandoned queued work", "error", err)
	}

	return runErr
}

// newOracleRegistry registers every backend the service can talk to. Only
// the configured one is used; building the others does no network I/O.
func newOracleRegistry(cfg config.OracleConfig) *oracle.Registry {
	registry := oracle.NewRegistry()
	if client, err := llm.NewOpenAIClient(cfg); err == nil {
		registry.Register(client)
	}
	registry.Register(ml.NewTextGenClient(cfg))
	return registry
}
