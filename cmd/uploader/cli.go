package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/japanesestudent/media-uploader/internal/client/api"
	"github.com/japanesestudent/media-uploader/internal/client/assets"
	"github.com/japanesestudent/media-uploader/internal/client/uploader"
	"github.com/japanesestudent/media-uploader/internal/config"
	"github.com/japanesestudent/media-uploader/internal/logger"
	"github.com/japanesestudent/media-uploader/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errUploadFailed is returned when at least one file of a batch failed.
// The failures are already printed.
var errUploadFailed = errors.New("upload failed")

// cli holds the command line interface state
type cli struct {
	courseID    string
	unitID      string
	metricsAddr string
	maxParallel int

	out           io.Writer
	scope         models.OwnerScope
	logger        *zap.Logger
	orch          *uploader.Orchestrator
	metricsServer *http.Server
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, logger: zap.NewNop()}
}

// rootCommand builds the command tree
func (c *cli) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "uploader",
		Short:         "Upload course and unit media",
		Long:          "Upload videos and slides to a course or unit, list and delete the attached media.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initialize(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.courseID, "course", "", "Course id")
	rootCmd.PersistentFlags().StringVar(&c.unitID, "unit", "", "Unit id")
	rootCmd.PersistentFlags().StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	rootCmd.PersistentFlags().IntVarP(&c.maxParallel, "max-parallel", "p", 0, "Maximum files uploaded at once (0 means unlimited)")

	rootCmd.AddCommand(c.newUploadCommand())
	rootCmd.AddCommand(c.newListCommand())
	rootCmd.AddCommand(c.newDeleteCommand())

	return rootCmd
}

// parseScope resolves the --course and --unit flags; exactly one must be set
func (c *cli) parseScope() (models.OwnerScope, error) {
	switch {
	case c.courseID != "" && c.unitID != "":
		return models.OwnerScope{}, fmt.Errorf("--course and --unit cannot be used together")
	case c.courseID != "":
		return models.CourseScope(c.courseID), nil
	case c.unitID != "":
		return models.UnitScope(c.unitID), nil
	default:
		return models.OwnerScope{}, fmt.Errorf("one of --course or --unit is required")
	}
}

// initialize loads configuration and builds the orchestrator
func (c *cli) initialize(cmd *cobra.Command) error {
	scope, err := c.parseScope()
	if err != nil {
		return err
	}
	c.scope = scope

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateClient(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	l, err := logger.New(cfg.Logging.Level, "console")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.logger = l

	maxParallel := cfg.Upload.MaxParallel
	if cmd.Flags().Changed("max-parallel") {
		if c.maxParallel < 0 {
			return fmt.Errorf("--max-parallel must not be negative")
		}
		maxParallel = c.maxParallel
	}

	registry := prometheus.NewRegistry()
	observer, err := uploader.NewPrometheusObserver(cfg.MetricsNS, registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// API calls honor HTTP_TIMEOUT; storage transfers share the transport but run unbounded
	transport := http.DefaultTransport.(*http.Transport).Clone()
	apiClient := api.NewClient(cfg.Backend.BaseURL, cfg.Backend.AccessToken,
		&http.Client{Transport: transport, Timeout: cfg.Backend.Timeout}, c.logger)

	c.orch = uploader.New(apiClient, assets.NewStore(),
		uploader.WithLogger(c.logger),
		uploader.WithObserver(observer),
		uploader.WithMaxParallel(maxParallel),
		uploader.WithHTTPClient(&http.Client{Transport: transport}),
	)

	if c.metricsAddr != "" {
		c.serveMetrics(registry)
	}
	return nil
}

func (c *cli) serveMetrics(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	c.metricsServer = &http.Server{
		Addr:              c.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		c.logger.Info("Serving metrics", zap.String("addr", c.metricsAddr))
		if err := c.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

// close waits for detached backend calls and stops the metrics server
func (c *cli) close() {
	if c.orch != nil {
		c.orch.Wait()
	}
	if c.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			c.logger.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}
	_ = c.logger.Sync()
}
