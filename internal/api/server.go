// Package api provides the HTTP REST API and WebSocket event stream for
// Hearth Core.
//
// It exposes rule and device management, manual snapshot injection for
// testing, and a WebSocket feed of engine events to user interfaces.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fernhill-labs/hearth-core/internal/auth"
	"github.com/fernhill-labs/hearth-core/internal/device"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/config"
	"github.com/fernhill-labs/hearth-core/internal/infrastructure/logging"
	"github.com/fernhill-labs/hearth-core/internal/reconcile"
	"github.com/fernhill-labs/hearth-core/internal/rule"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Manager    *rule.Manager
	Rules      rule.Repository
	Devices    *device.Directory
	Reconciler *reconcile.Reconciler // optional

	Version string
}

// Server is the HTTP API server for Hearth Core.
type Server struct {
	cfg        config.APIConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	manager    *rule.Manager
	rules      rule.Repository
	devices    *device.Directory
	reconciler *reconcile.Reconciler
	tokens     *auth.TokenService
	version    string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("api: logger is required")
	}
	if deps.Manager == nil {
		return nil, errors.New("api: rule manager is required")
	}
	if deps.Rules == nil {
		return nil, errors.New("api: rule repository is required")
	}
	if deps.Devices == nil {
		return nil, errors.New("api: device directory is required")
	}

	s := &Server{
		cfg:        deps.Config,
		secCfg:     deps.Security,
		logger:     deps.Logger.With("component", "api"),
		manager:    deps.Manager,
		rules:      deps.Rules,
		devices:    deps.Devices,
		reconciler: deps.Reconciler,
		tokens: auth.NewTokenService(
			deps.Security.JWT.Secret,
			time.Duration(deps.Security.JWT.AccessTokenTTL)*time.Minute,
		),
		version: deps.Version,
	}
	s.hub = newHub(s.logger)

	addr := net.JoinHostPort(deps.Config.Host, strconv.Itoa(deps.Config.Port))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  deps.Config.GetReadTimeout(),
		WriteTimeout: deps.Config.GetWriteTimeout(),
		IdleTimeout:  deps.Config.GetIdleTimeout(),
	}

	return s, nil
}

// Hub returns the WebSocket hub so engine hooks can broadcast into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins serving HTTP requests. It returns immediately; listen
// errors are reported through the returned channel.
func (s *Server) Start(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)

	ctx, s.cancel = context.WithCancel(ctx)
	go s.hub.run(ctx)

	go func() {
		s.logger.Info("api server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()

	return errCh
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}
