package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/goctc/internal/config"
	"github.com/MeKo-Tech/goctc/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the scoring API",
		Long: `Start an HTTP server that exposes scoring and decoding.

The server provides the following endpoints:
  POST /ctc/score   - Probability, best path and optional gradient
  POST /ctc/decode  - Best-path decode
  GET  /ws/ctc      - WebSocket stream of score/decode requests
  GET  /alphabet    - Symbol table and blank
  GET  /health      - Health check endpoint
  GET  /metrics     - Prometheus metrics

Examples:
  ctc serve
  ctc serve --port 8080
  ctc serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, st)
		},
	}

	cmd.Flags().StringP("host", "H", "localhost", "server host")
	cmd.Flags().IntP("port", "p", 8080, "server port")
	cmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	cmd.Flags().Int("max-body-size", 16, "maximum request body size in MB")
	cmd.Flags().Int("timeout", 30, "request timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags
	cmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	cmd.Flags().Int("requests-per-minute", 120, "maximum requests per minute per client")
	cmd.Flags().Int("requests-per-hour", 3000, "maximum requests per hour per client")
	cmd.Flags().Int("max-requests-per-day", 20000, "maximum requests per day per client")
	cmd.Flags().Int("max-data-per-day", 1024, "maximum request data per day per client (MB)")
	addCTCFlags(cmd)
	return cmd
}

// serverSettings merges the server section of the configuration with
// changed flags.
func serverSettings(cmd *cobra.Command, cfg *config.Config) config.ServerConfig {
	s := cfg.Server
	flags := cmd.Flags()
	if flags.Changed("host") {
		s.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		s.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		s.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-body-size") {
		s.MaxBodyMB, _ = flags.GetInt("max-body-size")
	}
	if flags.Changed("timeout") {
		s.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("rate-limit-enabled") {
		s.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		s.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		s.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		s.RateLimit.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		s.RateLimit.MaxDataPerDayMB, _ = flags.GetInt("max-data-per-day")
	}
	return s
}

func runServe(cmd *cobra.Command, st *cliState) error {
	cfg := st.GetConfig()
	s := serverSettings(cmd, cfg)

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", s.Port)
	}

	ctcServer, err := server.NewServer(server.Config{
		CORSOrigin: s.CORSOrigin,
		MaxBodyMB:  int64(s.MaxBodyMB),
		CTC:        ctcConfig(cmd, cfg),
		RateLimit: server.RateLimitConfig{
			Enabled:           s.RateLimit.Enabled,
			RequestsPerMinute: s.RateLimit.RequestsPerMinute,
			RequestsPerHour:   s.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: s.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     int64(s.RateLimit.MaxDataPerDayMB) * 1024 * 1024,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = ctcServer.Close() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	timeout := time.Duration(s.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.Host, s.Port),
		Handler:           ctcServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	go func() {
		slog.Info("Starting CTC server", "host", s.Host, "port", s.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", s.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(s.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
