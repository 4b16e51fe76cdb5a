package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalForge/pkg/config"
	xhttp "SignalForge/pkg/http"
	"SignalForge/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

type closer struct {
	name  string
	close func() error
}

// App ties the HTTP server and its backing clients into one lifecycle:
// start, block on SIGINT/SIGTERM, drain the server, then release the
// clients in reverse registration order.
type App struct {
	cfg     *config.Config
	logger  *logger.Logger
	handler xhttp.Handler
	closers []closer
}

// Option configures App.
type Option func(*App)

// WithCloser registers a shutdown hook, run after the HTTP server stops.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		a.closers = append(a.closers, closer{name: name, close: fn})
	}
}

// New creates the application.
func New(cfg *config.Config, lgr *logger.Logger, handler xhttp.Handler, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		logger:  lgr,
		handler: handler,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Run starts the HTTP server and blocks until a termination signal.
func (a *App) Run() error {
	srvOpts := []xhttp.ServerOption{xhttp.WithPort(a.cfg.Server.Port)}
	if a.cfg.Server.ReadTimeout > 0 {
		srvOpts = append(srvOpts, xhttp.WithTimeouts(
			a.cfg.Server.ReadTimeout,
			a.cfg.Server.WriteTimeout,
			a.cfg.Server.ShutdownTimeout,
		))
	}

	srv := xhttp.NewServer(a.handler, srvOpts...)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	a.logger.Info("api started",
		logger.Int("port", a.cfg.Server.Port),
		logger.String("environment", a.cfg.Environment))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("shutting down")

	shutdownTimeout := a.cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		a.logger.Error("http shutdown failed", logger.Error(err))
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed",
				logger.String("component", c.name),
				logger.Error(err))
		}
	}

	a.logger.Info("stopped")
	return nil
}
