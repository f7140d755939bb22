// Package graceful runs an HTTP server until its context ends, then drains
// in-flight requests within a bounded timeout.
package graceful

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const defaultShutdownTimeout = 15 * time.Second

type Server struct {
	httpServer      *http.Server
	log             *slog.Logger
	shutdownTimeout time.Duration
	ready           chan net.Addr
}

func NewServer(log *slog.Logger, srv *http.Server, shutdownTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		httpServer:      srv,
		log:             log,
		shutdownTimeout: shutdownTimeout,
		ready:           make(chan net.Addr, 1),
	}
}

// Ready yields the bound address once the listener is open.
func (s *Server) Ready() <-chan net.Addr { return s.ready }

// ListenAndServe serves until ctx is cancelled or the listener fails. A
// clean shutdown returns nil.
//
// Request contexts derive from a base context that is cancelled when
// shutdown begins. Hijacked connections such as websocket streams are not
// tracked by http.Server.Shutdown and rely on it to stop.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	base, stopStreams := context.WithCancel(context.WithoutCancel(ctx))
	defer stopStreams()
	s.httpServer.BaseContext = func(net.Listener) context.Context { return base }

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	s.log.Info("http server listening", slog.String("addr", ln.Addr().String()))
	s.ready <- ln.Addr()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve on %s: %w", ln.Addr(), err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server", slog.Duration("timeout", s.shutdownTimeout))
	stopStreams()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", ln.Addr(), err)
	}
	return nil
}
