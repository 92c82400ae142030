package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/scanbot/core/logger"
)

// Server runs the router next to the bot.
type Server struct {
	srv     *http.Server
	done    chan error
	started bool
}

// NewServer binds handler to addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		done: make(chan error, 1),
	}
}

// Start listens synchronously so bind errors surface to the caller, then
// serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.srv.Addr, err)
	}
	logger.LogEvent(ctx, logger.HTTP, slog.LevelInfo, "http.listen",
		slog.String("addr", ln.Addr().String()),
	)
	s.started = true
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return nil
}

// Shutdown drains in-flight requests. It ignores cancellation of ctx so a
// stopping bot still gets a grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.started {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-s.done
}
