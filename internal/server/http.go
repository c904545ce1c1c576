package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/matheus3301/chatd/internal/api"
	"github.com/matheus3301/chatd/internal/config"
	"go.uber.org/zap"
)

// HTTPServer manages the HTTP listener lifecycle.
type HTTPServer struct {
	srv      *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewHTTPServer binds the configured listen address.
func NewHTTPServer(cfg *config.Config, a *api.Server, logger *zap.Logger) (*HTTPServer, error) {
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	return &HTTPServer{
		srv: &http.Server{
			Handler:           a.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (s *HTTPServer) Addr() string {
	return s.listener.Addr().String()
}

// Start serves requests. Blocks until stopped.
func (s *HTTPServer) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.Addr()))
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests. Hijacked websocket connections are not
// tracked here; the registry closes them.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("http server stopping")
	return s.srv.Shutdown(ctx)
}
