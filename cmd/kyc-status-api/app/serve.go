package app

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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neartreasury/kyc-status-server/internal/airtable"
	"github.com/neartreasury/kyc-status-server/internal/api"
	"github.com/neartreasury/kyc-status-server/internal/config"
	"github.com/neartreasury/kyc-status-server/internal/kyc"
	"github.com/neartreasury/kyc-status-server/internal/telemetry"
	"github.com/neartreasury/kyc-status-server/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the KYC status API server",
	Long: `Start the KYC status API server.

The server looks up KYC verification records for account identifiers in
Airtable and reports a normalized status for each account. The Airtable
API key must be provided through the ` + config.EnvAPIKey + ` environment
variable or an apiKeyFile entry in the configuration file.

An optional configuration file (--config) can override the listen address,
Airtable base, table, view and timeouts. Without one the built-in defaults
are used.`,
}

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	serverRequestTimeout   = 15 * time.Second // Must be > the Airtable client timeout
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverWriteTimeout     = 20 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse
)

func init() {
	serveCmd.RunE = runServe
	serveCmd.Flags().String("address", config.DefaultAddress, "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, optional)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}
}

// loadServeConfig loads the optional configuration file and validates it.
func loadServeConfig(configPath string) (*config.Config, error) {
	var opts []config.Option
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	address := viper.GetString("address")

	cfg, err := loadServeConfig(viper.GetString("config"))
	if err != nil {
		return err
	}
	if cfg.Address != "" && !serveCmd.Flags().Changed("address") {
		address = cfg.Address
	}

	// The API key is required; refuse to start without one rather than
	// serving guaranteed upstream failures.
	apiKey, err := cfg.Airtable.GetAPIKey()
	if err != nil {
		return fmt.Errorf("airtable API key not configured: %w", err)
	}

	slog.Info("Starting KYC status API server",
		"address", address,
		"base", cfg.Airtable.GetBaseID(),
		"table", cfg.Airtable.GetTableID(),
		"version", versions.GetVersionInfo().Version)

	tel, err := telemetry.New(ctx,
		telemetry.WithServiceName("kyc-status-server"),
		telemetry.WithServiceVersion(versions.GetVersionInfo().Version),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	resolverMetrics, err := telemetry.NewResolverMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create resolver metrics: %w", err)
	}
	metricsMiddleware, err := telemetry.MetricsMiddleware(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create metrics middleware: %w", err)
	}

	airtableClient := airtable.NewDefaultClient(
		cfg.Airtable.GetBaseID(),
		cfg.Airtable.GetTableID(),
		apiKey,
		airtable.WithBaseURL(cfg.Airtable.GetBaseURL()),
		airtable.WithTimeout(cfg.Airtable.GetTimeout()),
	)

	svc, err := kyc.NewService(airtableClient,
		kyc.WithView(cfg.Airtable.GetView()),
		kyc.WithMaxRecords(cfg.Airtable.GetMaxRecords()),
		kyc.WithWalletField(cfg.Airtable.GetWalletField()),
		kyc.WithMetrics(resolverMetrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create status service: %w", err)
	}

	router := api.NewServer(svc,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			cors.Handler(cors.Options{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{http.MethodGet, http.MethodPost},
			}),
			metricsMiddleware,
			api.LoggingMiddleware,
		),
		api.WithMetricsHandler(tel.MetricsHandler()),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		slog.Info("Shutting down server", "signal", sig.String())
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
