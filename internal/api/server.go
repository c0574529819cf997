package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tradelens/internal/api/health"
	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port         int
	ServiceName  string
	Version      string
	UserIDHeader string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewRouter registers every route and wraps the mux with middleware
func NewRouter(cfg ServerConfig, h *Handler, healthHandler *health.Handler, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/analyze", h.Analyze)
	mux.HandleFunc("POST /api/query-from-filters", h.QueryFromFilters)
	mux.HandleFunc("POST /api/forecast", h.Forecast)

	mux.HandleFunc("GET /api/analyses", h.ListAnalyses)
	mux.HandleFunc("GET /api/analyses/recent", h.RecentAnalyses)
	mux.HandleFunc("GET /api/analyses/{id}", h.GetAnalysis)
	mux.HandleFunc("POST /api/analyses", h.CreateAnalysis)
	mux.HandleFunc("PATCH /api/analyses/{id}", h.UpdateAnalysis)
	mux.HandleFunc("DELETE /api/analyses/{id}", h.DeleteAnalysis)

	mux.HandleFunc("GET /api/activity", h.Activity)

	// Health check endpoints (Kubernetes probes)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReadiness)
	mux.HandleFunc("GET /live", healthHandler.HandleLiveness)

	mux.Handle("GET /metrics", metrics.Handler())

	// Root endpoint (service info)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})

	header := cfg.UserIDHeader
	if header == "" {
		header = DefaultUserIDHeader
	}

	// order: cors -> user id -> logging -> recovery -> mux
	var handler http.Handler = mux
	handler = withRecovery(log, handler)
	handler = withLogging(log, handler)
	handler = withUserID(header, handler)
	handler = withCORS(header, handler)
	return handler
}

// NewServer creates the HTTP server around a router
func NewServer(cfg ServerConfig, handler http.Handler, log *logger.Logger) *Server {
	port := 8080
	if cfg.Port > 0 {
		port = cfg.Port
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 90 * time.Second
	}

	log.Infof("HTTP server configured on port %d", port)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("HTTP server stopped")
	return nil
}
