package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/radio-control/psc/internal/auth"
	"github.com/radio-control/psc/internal/config"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	telemetryHub   TelemetryPort
	orchestrator   OrchestratorPort
	radioManager   RadioReadPort
	authMiddleware *auth.Middleware
	metricsHandler http.Handler
	config         *config.ServerConfig
	startTime      time.Time
}

// NewServer creates a new API server.
func NewServer(telemetryHub TelemetryPort, orchestrator OrchestratorPort, radioManager RadioReadPort, cfg *config.ServerConfig) *Server {
	return &Server{
		telemetryHub: telemetryHub,
		orchestrator: orchestrator,
		radioManager: radioManager,
		config:       cfg,
		startTime:    time.Now(),
	}
}

// NewServerWithAuth creates a new API server with authentication middleware.
func NewServerWithAuth(telemetryHub TelemetryPort, orchestrator OrchestratorPort, radioManager RadioReadPort, authMiddleware *auth.Middleware, cfg *config.ServerConfig) *Server {
	return &Server{
		telemetryHub:   telemetryHub,
		orchestrator:   orchestrator,
		radioManager:   radioManager,
		authMiddleware: authMiddleware,
		config:         cfg,
		startTime:      time.Now(),
	}
}

// SetMetricsHandler registers the Prometheus exposition handler served at
// /metrics. Without one the route is not registered.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metricsHandler = h
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// Register all routes
	s.RegisterRoutes(mux)

	// Only the header read is bounded. A whole-request write deadline would
	// sever long-lived SSE telemetry streams.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout(),
	}

	// Start server
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	// Shutdown with the configured budget
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout())
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}

// GetServer returns the underlying HTTP server for testing.
func (s *Server) GetServer() *http.Server {
	return s.httpServer
}
