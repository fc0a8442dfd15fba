package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plagcheck/internal/config"
	handlers "plagcheck/internal/http/handler"
	"plagcheck/internal/http/middleware"
	"plagcheck/internal/logger"
	"plagcheck/internal/metrics"
	"plagcheck/internal/service"
	"plagcheck/internal/storage"
	"plagcheck/internal/tracing"
)

const (
	shutdownTimeout = 10 * time.Second
	// room for multipart boundaries and headers on top of the two documents
	formOverheadBytes = 1 << 20
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP server exposing the upload page, POST /check, health probes, /metrics and Swagger UI.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewStdout(cfg.Location(), cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing_shutdown_failed", zap.Error(err))
		}
	}()

	// Staging storage for uploads while they are being extracted
	store, err := storage.New(cfg)
	if err != nil {
		return fmt.Errorf("init staging storage: %w", err)
	}

	app, err := newApp(cfg, log, store, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		log.Info("server_stopping")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Warn("server_shutdown_failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	log.Info("server_starting",
		zap.String("addr", addr),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Float64("threshold", cfg.Threshold),
	)
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// newApp wires the Fiber application: middleware, metrics and routes.
func newApp(cfg *config.AppConfig, log *zap.Logger, store storage.Storage, reg *prometheus.Registry) (*fiber.App, error) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	svc := service.NewComparisonService(store, service.Options{
		Threshold:        cfg.Threshold,
		MaxDocumentBytes: cfg.MaxDocumentBytes,
		MaxScoredRunes:   cfg.MaxScoredRunes,
		ScoreTimeout:     cfg.ScoreTimeout,
		Logger:           log,
		Metrics:          m,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             int(service.RequiredDocuments*cfg.MaxDocumentBytes + formOverheadBytes),
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(recover.New())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	// JSON access log, also binds a request-scoped logger for the service
	app.Use(middleware.Logger(log))
	app.Use(promMW.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, store, svc)

	return app, nil
}
