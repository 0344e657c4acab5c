// File: internal/server/server.go

// Package server exposes the task API over HTTP: submit a login attempt,
// poll its status, terminate it, and fetch its diagnostic artifacts.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/socialgenius/loginforge/internal/config"
	"github.com/socialgenius/loginforge/internal/diagnostics"
	"github.com/socialgenius/loginforge/internal/tasks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the HTTP front of the task runner.
type Server struct {
	cfg      config.ServerConfig
	runner   *tasks.Runner
	registry *tasks.Registry
	recorder *diagnostics.Recorder
	logger   *zap.Logger
	httpSrv  *http.Server

	// healthLogLimiter keeps load-balancer probes from flooding the log.
	healthLogLimiter *rate.Limiter
}

// New assembles the server and its routes.
func New(cfg config.ServerConfig, runner *tasks.Runner, registry *tasks.Registry, recorder *diagnostics.Recorder, logger *zap.Logger) *Server {
	s := &Server{
		cfg:              cfg,
		runner:           runner,
		registry:         registry,
		recorder:         recorder,
		logger:           logger.Named("server"),
		healthLogLimiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/google-auth", s.handleGoogleAuth)
		r.Get("/task/{taskID}", s.handleTaskStatus)
		r.Post("/terminate/{taskID}", s.handleTerminate)
		r.Get("/screenshot/{businessID}/{taskID}", s.handleScreenshotList)
		r.Get("/screenshot/{businessID}/{taskID}/{name}", s.handleScreenshotFile)
	})

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, used by httptest in tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	s.logger.Info("HTTP server shutting down")
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
