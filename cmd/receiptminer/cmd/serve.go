package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/receiptminer/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server that mines and validates receipts.

The server provides the following endpoints:
  POST /api/v1/receipts           - Mine an uploaded image or PDF (multipart field "receipt")
  GET  /api/v1/receipts/{fiscal}  - Fetch a receipt by fiscal code and mine it
  POST /api/v1/validate           - Check a JSON or YAML record for consistency
  GET  /health                    - Health check with memory statistics
  GET  /metrics                   - Prometheus metrics

Examples:
  receiptminer serve
  receiptminer serve --port 8080
  receiptminer serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	RunE: runServeCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("workers", 4, "OCR worker budget")
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 100*1024*1024, "maximum uploaded bytes per day per client")

	for flag, key := range map[string]string{
		"host":                 "server.host",
		"port":                 "server.port",
		"cors-origin":          "server.cors_origin",
		"max-upload-size":      "server.max_upload_mb",
		"timeout":              "server.timeout_sec",
		"shutdown-timeout":     "server.shutdown_timeout",
		"workers":              "batch.workers",
		"rate-limit-enabled":   "server.rate_limit_enabled",
		"requests-per-minute":  "server.requests_per_minute",
		"requests-per-hour":    "server.requests_per_hour",
		"max-requests-per-day": "server.max_requests_per_day",
		"max-data-per-day":     "server.max_data_per_day",
	} {
		bindFlag(serveCmd.Flags(), flag, key)
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	sc := cfg.Server

	miner, err := buildMiner(cfg, minerOptions{registry: prometheus.DefaultRegisterer})
	if err != nil {
		return err
	}
	defer func() { _ = miner.Close() }()

	source, err := buildSource(cfg)
	if err != nil {
		return err
	}

	api := server.NewServer(server.Config{
		Host:        sc.Host,
		Port:        sc.Port,
		CORSOrigin:  sc.CORSOrigin,
		MaxUploadMB: int64(sc.MaxUploadMB),
		TimeoutSec:  sc.TimeoutSec,
		RateLimit: server.RateLimitConfig{
			Enabled:           sc.RateLimitEnabled,
			RequestsPerMinute: sc.RequestsPerMinute,
			RequestsPerHour:   sc.RequestsPerHour,
			MaxRequestsPerDay: sc.MaxRequestsPerDay,
			MaxDataPerDay:     sc.MaxDataPerDay,
		},
	}, miner, source, slog.Default())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(sc.TimeoutSec+5) * time.Second,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting receipt server", "host", sc.Host, "port", sc.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	default:
		slog.Info("Graceful shutdown completed")
		return nil
	}
}
