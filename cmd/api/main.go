package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docvault/docs"
	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	"docvault/internal/events"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/otel"
	"docvault/internal/repository/postgres"
	"docvault/internal/service"
	"docvault/internal/storage"
)

// @title DocVault API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	loc := time.UTC

	ctx := context.Background()

	// Tracing is optional; Init degrades to a noop provider when the
	// exporter is unreachable or OTEL_SDK_DISABLED is set.
	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Lifecycle events are published only when an event bus is configured.
	var pub events.Publisher = events.NewNoop()
	if cfg.NATS.URL != "" {
		natsPub, err := events.NewNATS(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("failed to connect to event bus: %v", err)
		}
		pub = natsPub
	}
	defer pub.Close()

	// Initialize repositories and services
	docRepo := postgres.NewDocumentPostgres(db)
	docSvc := service.NewDocumentService(objStore, docRepo, pub, cfg.MaxUploadSizeMB)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    bodyLimit(cfg.MaxUploadSizeMB),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	app.Use(promMW.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Register HTTP routes with injected service; document routes require
	// a bearer token signed with the shared secret
	handlers.RegisterRoutes(app, db, docSvc, middleware.Auth(cfg.Auth.JWTSecret))

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

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// bodyLimit sizes Fiber's request body cap from the upload limit, with
// slack for multipart framing. Unlimited uploads still get a 1 GiB cap.
func bodyLimit(maxUploadMB int) int {
	if maxUploadMB <= 0 {
		return 1 << 30
	}
	return (maxUploadMB + 1) * 1024 * 1024
}
