package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"memoryhttpd/internal/limits"
	"memoryhttpd/internal/runtime"
)

type Server struct {
	Addr string

	httpServer   *http.Server
	ln           net.Listener
	shutdown     runtime.ShutdownConfig
	inflight     *runtime.InflightTracker
	stoppers     []Stopper
	logger       *slog.Logger
	shutdownOnce sync.Once
	shutdownErr  error
}

type Stopper interface {
	Stop(ctx context.Context) error
}

type StopFunc func(ctx context.Context) error

func (s StopFunc) Stop(ctx context.Context) error {
	return s(ctx)
}

type Options struct {
	Limits   limits.Limits
	Shutdown runtime.ShutdownConfig
	Inflight *runtime.InflightTracker
	Stoppers []Stopper
	Logger   *slog.Logger
}

// Start listens on addr and serves handler in the background.
func Start(handler http.Handler, addr string, options Options) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is nil")
	}
	if addr == "" {
		return nil, errors.New("listen address is empty")
	}

	limitConfig := options.Limits
	if limitConfig.MaxHeaderBytes == 0 {
		limitConfig = limits.Default()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	httpSrv := &http.Server{
		Handler:           handler,
		MaxHeaderBytes:    limitConfig.MaxHeaderBytes,
		ReadHeaderTimeout: limitConfig.ReadHeaderTimeout,
		ReadTimeout:       limitConfig.ReadTimeout,
		WriteTimeout:      limitConfig.WriteTimeout,
		IdleTimeout:       limitConfig.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	srv := &Server{
		Addr:       ln.Addr().String(),
		httpServer: httpSrv,
		ln:         ln,
		shutdown:   runtime.ApplyShutdownDefaults(options.Shutdown),
		inflight:   options.Inflight,
		stoppers:   options.Stoppers,
		logger:     logger,
	}
	go srv.serve()
	return srv, nil
}

func (s *Server) serve() {
	if err := s.httpServer.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("server error", "addr", s.Addr, "error", err)
	}
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.Shutdown()
}

// Shutdown closes the listener, runs the stoppers, drains, and then waits for
// in-flight requests up to the graceful timeout before forcing close.
func (s *Server) Shutdown() error {
	if s == nil {
		return nil
	}
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdownSequence()
	})
	return s.shutdownErr
}

func (s *Server) shutdownSequence() error {
	_ = s.ln.Close()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), s.shutdown.GracefulTimeout)
	for _, stopper := range s.stoppers {
		if stopper == nil {
			continue
		}
		if err := stopper.Stop(stopCtx); err != nil {
			s.logger.Warn("stopper failed", "addr", s.Addr, "error", err)
		}
	}
	stopCancel()

	if s.shutdown.Drain > 0 {
		time.Sleep(s.shutdown.Drain)
	}

	gracefulCtx, gracefulCancel := context.WithTimeout(context.Background(), s.shutdown.GracefulTimeout)
	defer gracefulCancel()
	if s.inflight != nil {
		if pending := s.inflight.Count(); pending > 0 {
			s.logger.Info("waiting for in-flight requests", "addr", s.Addr, "inflight", pending)
		}
		if err := s.inflight.Wait(gracefulCtx); err != nil {
			s.logger.Warn("in-flight requests did not finish", "addr", s.Addr, "inflight", s.inflight.Count(), "error", err)
		}
	}
	var firstErr error
	if err := s.httpServer.Shutdown(gracefulCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		firstErr = err
	}
	if gracefulCtx.Err() == nil {
		return firstErr
	}

	if s.shutdown.ForceClose > 0 {
		time.Sleep(s.shutdown.ForceClose)
	}
	_ = s.httpServer.Close()
	if firstErr != nil {
		return firstErr
	}
	return gracefulCtx.Err()
}

// ShutdownAll shuts servers down concurrently and returns the first error.
func ShutdownAll(servers ...*Server) error {
	var group errgroup.Group
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		group.Go(srv.Shutdown)
	}
	return group.Wait()
}
