package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docservice/internal/auth"
	"docservice/internal/config"
	"docservice/internal/database"
	"docservice/internal/database/migration"
	"docservice/internal/events"
	handlers "docservice/internal/http/handler"
	"docservice/internal/http/middleware"
	"docservice/internal/logger"
	appotel "docservice/internal/otel"
	"docservice/internal/repository"
	"docservice/internal/repository/memory"
	"docservice/internal/repository/postgres"
	"docservice/internal/service"
	"docservice/internal/storage"
)

const serviceName = "docservice"

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := logger.LoadLocation(cfg.Location)
	log := logger.New(cfg.LogLevel, loc)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := appotel.Init(ctx, log, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown", "error", err)
		}
	}()

	db, docRepo, err := openRecordStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// Content store strategy is fixed for the process lifetime
	objStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	log.Info("content store ready", "backend", cfg.Storage.Backend)

	verifier, err := auth.New(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	publisher := events.Publisher(events.Noop{})
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATS(cfg.NATS, log)
		if err != nil {
			return err
		}
		publisher = nc
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if db != nil {
		reg.MustRegister(collectors.NewDBStatsCollector(db, cfg.Database.Name))
	}

	metrics, err := service.NewMetrics(reg)
	if err != nil {
		return err
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	docSvc := service.NewDocumentService(objStore, docRepo,
		service.WithLogger(log.With("component", "service")),
		service.WithPublisher(publisher),
		service.WithMetrics(metrics),
		service.WithPageSizes(cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize),
	)

	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.MaxUploadBytes,
	})

	// RequestID runs first so every later middleware can log it
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics"
	})))
	app.Use(middleware.Logger(log.With("component", "http")))
	app.Use(promMiddleware.Handler())
	if len(cfg.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:  strings.Join(cfg.CORSOrigins, ","),
			AllowHeaders:  "Authorization, Content-Type, " + middleware.RequestIDHeader,
			ExposeHeaders: middleware.RequestIDHeader,
		}))
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	handlers.RegisterRoutes(app, db, docSvc, verifier)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("http server listening", "addr", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openRecordStore returns the configured repository. db is nil for the
// in-memory store.
func openRecordStore(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*sql.DB, repository.DocumentRepository, error) {
	if cfg.RecordStore == config.RecordStoreMemory {
		log.Warn("using in-memory record store, data is lost on restart")
		return nil, memory.NewDocumentMemory(), nil
	}

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, postgres.NewDocumentPostgres(db), nil
}
