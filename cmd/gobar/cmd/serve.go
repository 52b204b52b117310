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

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/config"
	"github.com/MeKo-Tech/gobar/internal/generator"
	"github.com/MeKo-Tech/gobar/internal/server"
	"github.com/MeKo-Tech/gobar/internal/version"
	"github.com/spf13/cobra"
)

const (
	// Rate limit state of clients idle for longer than this is dropped.
	rateLimitIdle  = 24 * time.Hour
	rateLimitPrune = 10 * time.Minute
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the barcode API",
	Long: `Start an HTTP server that generates barcodes on request.

The server provides the following endpoints:
  GET/POST /barcode - Generate a barcode (text, mode, verify)
  POST     /decode  - Decode an uploaded image
  GET      /ws      - WebSocket stream of task notifications
  GET      /health  - Health check endpoint
  GET      /metrics - Prometheus metrics

Examples:
  gobar serve
  gobar serve --port 8080 --workers 8
  gobar serve --host 0.0.0.0 --rate-limit-enabled --requests-per-minute 30`,
	SilenceUsage: true,
	RunE:         runServe,
}

// serveOptions are the resolved settings of the serve command.
type serveOptions struct {
	Server          server.Config
	Generator       generator.Config
	ShutdownTimeout time.Duration
}

// configToServeOptions merges config values and explicitly set flags.
func configToServeOptions(cfg *config.Config, cmd *cobra.Command) (serveOptions, error) {
	sc := cfg.Server
	flags := cmd.Flags()

	if flags.Changed("host") {
		sc.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		sc.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		sc.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		sc.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		sc.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("rate-limit-enabled") {
		sc.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		sc.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		sc.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		sc.RateLimit.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}

	if sc.Port < 1 || sc.Port > 65535 {
		return serveOptions{}, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}

	mode := cfg.Mode()
	if flags.Changed("mode") {
		name, _ := flags.GetString("mode")
		m, err := barcode.ParseMode(name)
		if err != nil {
			return serveOptions{}, err
		}
		mode = m
	}

	genCfg := cfg.ToGeneratorConfig()
	if flags.Changed("workers") {
		genCfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("queue-size") {
		genCfg.QueueSize, _ = flags.GetInt("queue-size")
	}
	if flags.Changed("encoder") {
		genCfg.Encoder, _ = flags.GetString("encoder")
	}
	if genCfg.Workers < 1 {
		return serveOptions{}, fmt.Errorf("workers must be at least 1, got %d", genCfg.Workers)
	}
	genCfg.Logger = slog.Default()

	return serveOptions{
		Server: server.Config{
			Host:        sc.Host,
			Port:        sc.Port,
			CORSOrigin:  sc.CORSOrigin,
			MaxUploadMB: int64(sc.MaxUploadMB),
			TimeoutSec:  sc.TimeoutSec,
			DefaultMode: mode,
			Version:     version.Version,
			RateLimit: server.RateLimitConfig{
				Enabled:           sc.RateLimit.Enabled,
				RequestsPerMinute: sc.RateLimit.RequestsPerMinute,
				RequestsPerHour:   sc.RateLimit.RequestsPerHour,
				MaxRequestsPerDay: sc.RateLimit.MaxRequestsPerDay,
			},
			Logger: slog.Default(),
		},
		Generator:       genCfg,
		ShutdownTimeout: time.Duration(sc.ShutdownTimeout) * time.Second,
	}, nil
}

// newHTTPServer wires the barcode server into an http.Server.
func newHTTPServer(opts serveOptions, barcodeServer *server.Server) *http.Server {
	mux := http.NewServeMux()
	barcodeServer.SetupRoutes(mux)

	timeout := time.Duration(opts.Server.TimeoutSec) * time.Second
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Server.Host, opts.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// Generation runs under the request timeout; leave room to write the body.
		WriteTimeout: timeout + 5*time.Second,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	opts, err := configToServeOptions(GetConfig(), cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	gen, err := generator.New(opts.Generator)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	barcodeServer, err := server.NewServer(opts.Server, gen)
	if err != nil {
		_ = gen.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = barcodeServer.Close() }()

	httpServer := newHTTPServer(opts, barcodeServer)

	go func() {
		slog.Info("Starting barcode server",
			"host", opts.Server.Host, "port", opts.Server.Port,
			"workers", gen.Stats().Workers, "encoder", gen.EncoderName())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	if opts.Server.RateLimit.Enabled {
		go func() {
			ticker := time.NewTicker(rateLimitPrune)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := barcodeServer.PruneRateLimits(rateLimitIdle); n > 0 {
						slog.Debug("Pruned rate limit state", "clients", n)
					}
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", opts.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	// Drains queued generations.
	if err := barcodeServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}

	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 10, "maximum upload size in MB for /decode")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().StringP("mode", "m", "base64", "default output mode when a request names none")
	serveCmd.Flags().IntP("workers", "w", 4, "number of generation workers")
	serveCmd.Flags().Int("queue-size", 16, "pending request slots before 503 responses")
	serveCmd.Flags().StringP("encoder", "e", barcode.EncoderZXing, "encoder backend")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 120, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 3000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 20000, "maximum requests per day per client")
}
