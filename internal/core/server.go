// Package core provides the HTTP chassis for the Atmos weather API.
// It creates a chi router that serves both as a standard HTTP server (local
// development, containers) and behind AWS Lambda via the API Gateway adapter.
// It enforces cross-cutting concerns (panic recovery, request IDs, logging,
// CORS, metrics, compression) before requests reach the weather handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"atmos/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// Implementations record request latency and count metrics to CloudWatch
// or equivalent backends.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	RecordRequest(ctx context.Context, method, endpoint, status string, duration time.Duration)
}

// Server encapsulates all dependencies of the API, allowing for easy injection
// during testing and distinct configuration for different environments.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// RouteRegistrars are populated by the entry point with domain handler
	// routes. This indirection avoids import cycles between core and handlers.
	RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer validates critical dependencies and prepares the router.
// The caller is responsible for calling MountRoutes after wiring registrars.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
// Used by http.Server (local) and LambdaHandler (Lambda).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources: probes with a Close method are closed
// and an asynchronous metrics collector is drained.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	for _, p := range s.HealthProbes {
		closer, ok := p.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			s.Logger.ErrorContext(ctx, "error closing probe", "probe", p.Name(), "error", err)
			return fmt.Errorf("closing probe %s: %w", p.Name(), err)
		}
	}

	if closer, ok := s.Metrics.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			s.Logger.ErrorContext(ctx, "metrics were not fully published", "error", err)
			return fmt.Errorf("closing metrics: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
