package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openmined/foldernotify/internal/server/gate"
	"github.com/openmined/foldernotify/internal/version"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	config *Config
	server *http.Server
	svc    *Services
}

func New(ctx context.Context, config *Config, opts ...gate.Option) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sqlDB, err := OpenDB(&config.DB)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	svc, err := NewServices(ctx, config, sqlDB, opts...)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	handler, err := SetupRoutes(config, svc)
	if err != nil {
		svc.Shutdown(ctx)
		return nil, err
	}

	readHeaderTimeout := config.HTTP.ReadHeaderTimeout
	if readHeaderTimeout == 0 {
		readHeaderTimeout = DefaultReadHeaderTimeout
	}
	idleTimeout := config.HTTP.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = DefaultIdleTimeout
	}

	return &Server{
		config: config,
		svc:    svc,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
		},
	}, nil
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("server start", "version", version.Short(), "config", s.config)
	defer slog.Info("server stop")

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	sweepDone := make(chan struct{})
	if s.svc.Completion != nil {
		eg.Go(func() error {
			defer close(sweepDone)
			return s.svc.Completion.Run(egCtx)
		})
	} else {
		close(sweepDone)
	}

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("server shutdown signal")
		// a sweep in flight still holds the store
		<-sweepDone
		return s.Stop(context.WithoutCancel(ctx))
	})

	return eg.Wait()
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()

	// drain in-flight pushes before the store closes
	httpErr := s.server.Shutdown(shutdownCtx)
	svcErr := s.svc.Shutdown(shutdownCtx)
	return errors.Join(httpErr, svcErr)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.TLSEnabled() {
		slog.Info("server start https", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
