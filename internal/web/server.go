// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/samber/oops"
)

// ShutdownTimeout bounds graceful shutdown of in-flight requests.
const ShutdownTimeout = 10 * time.Second

// Server runs the API over HTTP.
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, handler: handler, logger: logger}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// down gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("http server started", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		return oops.Code("HTTP_SERVE_FAILED").With("addr", listener.Addr().String()).Wrap(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	// Wait for the serve goroutine to exit.
	<-errCh
	s.logger.Info("http server stopped")
	return nil
}
