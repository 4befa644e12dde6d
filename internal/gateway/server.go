package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server binds a Gateway's handlers to the three HTTP endpoints and
// manages the listening socket's lifecycle.
type Server struct {
	gw          *Gateway
	proxyAuthKey string
	logger      *slog.Logger
	server      *http.Server
}

// NewServer builds a Server. proxyAuthKey enables request authentication
// when non-empty, per Config.proxy_auth_key.
func NewServer(gw *Gateway, proxyAuthKey string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gw: gw, proxyAuthKey: proxyAuthKey, logger: logger}
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/messages", applyMiddlewares(MessagesHandler{GW: s.gw},
		Logging(s.logger),
		Recovery,
		Auth(s.proxyAuthKey),
	))
	mux.Handle("GET /v1/models", applyMiddlewares(ModelsHandler{GW: s.gw},
		Logging(s.logger),
		Recovery,
		Auth(s.proxyAuthKey),
	))
	mux.Handle("GET /health", applyMiddlewares(HealthHandler{GW: s.gw},
		Logging(s.logger),
		Recovery,
	))
	return mux
}

// Start opens the listener synchronously (to surface port-in-use errors
// immediately) and serves in the background, returning a channel that
// receives at most one runtime error.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // long enough for a slow SSE stream
		IdleTimeout:  90 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh, nil
}

// Shutdown gracefully drains in-flight requests until ctx's deadline,
// then force-closes.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
