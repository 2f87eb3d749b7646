// Package main is the entry point for the Atmos API server.
//
// It loads configuration, wires the upstream providers, the weather service
// and its handlers into the core chassis, and serves requests.
//
// When AWS Lambda runtime variables are present it serves API Gateway proxy
// events through core.LambdaHandler; otherwise it runs a standard HTTP server
// on the configured port with graceful shutdown on SIGINT/SIGTERM.
package main

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

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"atmos/internal/api/handlers"
	"atmos/internal/config"
	"atmos/internal/core"
	"atmos/internal/external"
	"atmos/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel, cfg.IsLocal())
	slog.SetDefault(logger)
	logger.Info("atmos API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"provider", cfg.Upstream.Provider,
		"port", cfg.Server.Port,
	)

	srv, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		return runLambda(srv, logger)
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires providers, the weather service and handlers into a
// mounted core.Server.
func buildServer(cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	registry, err := external.NewProviderRegistry(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating provider registry: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	for _, probe := range registry.Probes() {
		srv.HealthProbes = append(srv.HealthProbes, probe)
	}

	if cfg.Observability.EnableMetrics {
		metrics, err := newCloudWatchMetrics(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating metrics collector: %w", err)
		}
		srv.Metrics = metrics
	}

	svc := weather.NewService(registry.Geocoder, registry.Weather, logger)
	weatherHandler := handlers.NewWeatherHandler(svc, logger)
	srv.RouteRegistrars = append(srv.RouteRegistrars, weatherHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// secretProvider returns the SSM provider outside local development. The
// environment is read directly because configuration is not loaded yet.
func secretProvider() config.SecretProvider {
	env := os.Getenv("APP_ENV")
	if env == "" || env == "local" {
		return nil
	}
	return config.NewSSMProvider(os.Getenv("AWS_REGION"))
}

func newCloudWatchMetrics(cfg *config.Config, logger *slog.Logger) (*core.CloudWatchMetrics, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return core.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger), nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runLambda serves API Gateway proxy events until the runtime stops the process.
func runLambda(srv *core.Server, logger *slog.Logger) error {
	logger.Info("starting in Lambda mode")
	var flushers []core.MetricsFlusher
	if f, ok := srv.Metrics.(core.MetricsFlusher); ok {
		flushers = append(flushers, f)
	}
	lambda.Start(core.NewLambdaHandler(srv.Handler(), flushers...).Handle)
	return nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	// WriteTimeout is left unset: with UPSTREAM_TIMEOUT=0 a slow upstream
	// holds the request open and the response must still be written.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given level: text output
// for local development, JSON everywhere else.
func newLogger(level string, local bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if local {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
