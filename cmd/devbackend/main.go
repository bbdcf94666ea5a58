package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/japanesestudent/media-uploader/docs"
	authService "github.com/japanesestudent/media-uploader/internal/auth/service"
	"github.com/japanesestudent/media-uploader/internal/config"
	"github.com/japanesestudent/media-uploader/internal/gc"
	"github.com/japanesestudent/media-uploader/internal/handlers"
	"github.com/japanesestudent/media-uploader/internal/logger"
	"github.com/japanesestudent/media-uploader/internal/middlewares"
	"github.com/japanesestudent/media-uploader/internal/repositories"
	"github.com/japanesestudent/media-uploader/internal/server"
	"github.com/japanesestudent/media-uploader/internal/services"
	"github.com/japanesestudent/media-uploader/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestsPerMinute = 600

// @title Media Uploader Development API
// @version 1.0
// @description Course and unit media endpoints used by the upload orchestrator

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer access token
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting media uploader development backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize repository
	var repo services.MediaRepository
	if cfg.UseDatabase() {
		db, err := connectDB(cfg.DSN())
		if err != nil {
			logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := runMigrations(db); err != nil {
			logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		repo = repositories.NewMediaRepository(db, logger.Logger)
	} else {
		logger.Logger.Warn("DB_HOST is not set, media records are kept in memory")
		repo = repositories.NewMemoryRepository()
	}

	// Initialize storage
	var (
		fileStorage services.Storage
		receiver    handlers.UploadReceiver
	)
	if cfg.UseS3() {
		s3Storage, err := storage.NewS3Storage(ctx, storage.S3Options{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			BaseEndpoint: cfg.S3.BaseEndpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			PresignTTL:   cfg.S3.PresignTTL,
		})
		if err != nil {
			logger.Logger.Fatal("Failed to initialize S3 storage", zap.Error(err))
		}
		fileStorage = s3Storage
	} else {
		local := storage.NewLocalStorage(cfg.MediaPath, cfg.BaseURL, storage.NewURLSigner(cfg.SignedURL.Secret, cfg.SignedURL.TTL))
		fileStorage = local
		receiver = local
	}

	// Initialize services
	mediaService := services.NewMediaService(repo, fileStorage, cfg.BaseURL, logger.Logger)

	sweeper, err := gc.NewSweeper(mediaService, cfg.GC.Schedule, cfg.GC.PendingTTL, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize orphan sweeper", zap.Error(err))
	}
	sweeper.Start(ctx)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics, err := middlewares.NewHTTPMetrics(cfg.MetricsNS, registry)
	if err != nil {
		logger.Logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)

	// Setup router
	r := server.NewRouter(server.Options{
		Logger:         logger.Logger,
		Media:          mediaService,
		Receiver:       receiver,
		Auth:           authService.NewTokenGenerator(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxUpload:      cfg.MaxUpload,
		RateLimit:      requestsPerMinute,
		Metrics:        httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		SwaggerURL:     fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port),
	})

	// Start server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second, // no body timeout, uploads stream large files
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}
	sweeper.Stop()

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "media_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Fall back to the repository root when started from cmd/devbackend
	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		if _, err := os.Stat("../../migrations"); err == nil {
			migrationPath = "file://../../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(migrationPath, "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
