package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// httpServer runs an http.Server until its context is done.
type httpServer struct {
	name   string
	server *http.Server
	logger *slog.Logger
}

func newHTTPServer(name, addr string, handler http.Handler, logger *slog.Logger) *httpServer {
	return &httpServer{
		name:   name,
		server: &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		logger: logger,
	}
}

func (s *httpServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Debug("server started", "addr", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", s.name, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s server: %w", s.name, err)
	}
	s.logger.Debug("server stopped")
	return nil
}
