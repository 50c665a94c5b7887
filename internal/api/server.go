package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/airrelay/internal/infrastructure/config"
	"github.com/nerrad567/airrelay/internal/infrastructure/logging"
	"github.com/nerrad567/airrelay/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// StatusProvider reports the relay's current state for the /status endpoint.
type StatusProvider interface {
	Status() relay.Status
}

// HealthChecker verifies reachability of an upstream dependency. The /health
// endpoint runs each registered checker and reports per-dependency results.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the operational server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Status   StatusProvider
	Checkers map[string]HealthChecker // keyed by dependency name, e.g. "device"
	Version  string
}

// Server is the operational HTTP endpoint: health, status snapshot and
// Prometheus metrics. It carries no data-path traffic.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := api.New(deps)
//	server.Start()
//	defer server.Close()
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	status   StatusProvider
	checkers map[string]HealthChecker
	version  string
	server   *http.Server
}

// New creates a new operational server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status provider is required")
	}
	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		status:   deps.Status,
		checkers: deps.Checkers,
		version:  deps.Version,
	}, nil
}

// Start launches the HTTP listener in a background goroutine. The server
// can be stopped with Close().
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.logger.Info("operational server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("operational server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server, waiting briefly for in-flight
// requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("operational server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down operational server: %w", err)
	}
	return nil
}
