// Package server assembles the HTTP router of the development backend
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	authMiddleware "github.com/japanesestudent/media-uploader/internal/auth/middleware"
	"github.com/japanesestudent/media-uploader/internal/handlers"
	loggerMiddleware "github.com/japanesestudent/media-uploader/internal/logger/middleware"
	"github.com/japanesestudent/media-uploader/internal/middlewares"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// maxJSONBodySize caps API request bodies; file bytes go through the storage route
const maxJSONBodySize = 1 << 20

// Options configures the router
type Options struct {
	Logger *zap.Logger
	Media  handlers.MediaService
	// Receiver handles local uploads; nil when uploads go to S3
	Receiver       handlers.UploadReceiver
	Auth           authMiddleware.TokenValidator
	AllowedOrigins []string
	MaxUpload      int64
	// RateLimit is the number of requests per minute allowed per IP; 0 disables limiting
	RateLimit int
	// Metrics instruments every request when set
	Metrics *middlewares.HTTPMetrics
	// MetricsHandler is served on /metrics when set
	MetricsHandler http.Handler
	// SwaggerURL enables /swagger/* pointing at the given doc.json
	SwaggerURL string
}

// NewRouter builds the chi router with the shared middleware chain
func NewRouter(opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middlewares.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger))
	r.Use(middlewares.RecoveryMiddleware(logger))
	r.Use(middlewares.CORSMiddleware(opts.AllowedOrigins))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
	}

	if opts.SwaggerURL != "" {
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(opts.SwaggerURL)))
	}
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mediaHandler := handlers.NewMediaHandler(opts.Media, logger)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewares.RequestSizeLimitMiddleware(maxJSONBodySize))

		mediaHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthMiddleware(opts.Auth))
			mediaHandler.RegisterRoutes(r)
		})
	})

	if opts.Receiver != nil {
		storageHandler := handlers.NewStorageHandler(opts.Receiver, logger)
		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequestSizeLimitMiddleware(opts.MaxUpload))
			storageHandler.RegisterRoutes(r)
		})
	}

	return r
}
