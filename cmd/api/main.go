package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"earapi/docs"
	"earapi/internal/catalog"
	"earapi/internal/config"
	"earapi/internal/database"
	"earapi/internal/database/migration"
	"earapi/internal/fetch"
	handlers "earapi/internal/http/handler"
	"earapi/internal/http/middleware"
	"earapi/internal/logging"
	"earapi/internal/metrics"
	"earapi/internal/otel"
	"earapi/internal/repository"
	"earapi/internal/repository/postgres"
	"earapi/internal/service"
	"earapi/internal/storage"
	"earapi/internal/tabular"
)

// @title Reservoir Energy API
// @version 1.0
// @description Paginated, filtered access to stored energy (EAR) open data.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		fatal(logger, "failed to initialize tracing", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics, err := metrics.NewPipeline(reg)
	if err != nil {
		fatal(logger, "failed to register pipeline metrics", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		fatal(logger, "failed to register http metrics", err)
	}

	client := fetch.New(cfg.Fetch, fetch.WithMetrics(pipelineMetrics))
	resolver := catalog.NewResolver(client, cfg.Catalog, pipelineMetrics)

	openerOpts := []tabular.Option{tabular.WithMetrics(pipelineMetrics)}
	if cfg.MinIO.Enabled() {
		// Mirror of downloaded columnar files; optional
		objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			fatal(logger, "failed to initialize object storage", err)
		}
		openerOpts = append(openerOpts, tabular.WithMirror(objStore, cfg.MinIO.Prefix))
		logger.Info("resource mirror enabled", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
	}
	opener := tabular.NewOpener(client, cfg.Reader, openerOpts...)

	// Query log is optional; a nil pinger reports the database as disabled
	var (
		db     *sql.DB
		pinger database.Pinger
		logs   repository.QueryLogRepository
	)
	if cfg.Database.Enabled() {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			fatal(logger, "failed to connect to database", err)
		}
		defer db.Close()

		if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
			fatal(logger, "failed to migrate database", err)
		}
		pinger = db
		logs = postgres.NewQueryLogPostgres(db)
	}

	dataSvc := service.NewDataService(resolver, opener, logs, cfg, pipelineMetrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(time.Local))
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, pinger, dataSvc, cfg.Query)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr, "query_log", cfg.Database.Enabled(), "mirror", cfg.MinIO.Enabled())
	if err := app.Listen(addr); err != nil {
		fatal(logger, "failed to start server", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
