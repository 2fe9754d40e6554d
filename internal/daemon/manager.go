// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon manages the tvbrokerd process lifecycle: HTTP servers,
// graceful shutdown and cleanup hooks.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/tvbroker/internal/config"
	"github.com/ManuGH/tvbroker/internal/log"
)

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in
// reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Deps are the manager's runtime dependencies.
type Deps struct {
	// APIHandler serves the admin API. Required.
	APIHandler http.Handler

	// MetricsHandler serves Prometheus metrics on MetricsAddr. Nil disables
	// the metrics server.
	MetricsHandler http.Handler
	MetricsAddr    string
}

func (d Deps) validate() error {
	if d.APIHandler == nil {
		return errors.New("daemon: APIHandler is required")
	}
	if d.MetricsHandler != nil && d.MetricsAddr == "" {
		return errors.New("daemon: MetricsAddr is required when metrics are enabled")
	}
	return nil
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// Manager runs the daemon's servers and coordinates shutdown.
type Manager struct {
	cfg  config.ServerConfig
	deps Deps

	mu      sync.Mutex
	hooks   []namedHook
	started bool

	logger zerolog.Logger
}

func NewManager(cfg config.ServerConfig, deps Deps) (*Manager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithComponent("daemon"),
	}, nil
}

// RegisterShutdownHook adds a cleanup step executed after the servers have
// stopped.
func (m *Manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, hook: hook})
}

// Start runs all servers and blocks until ctx is cancelled or a server
// fails. Shutdown hooks run afterwards either way.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("daemon: manager already started")
	}
	m.started = true
	m.mu.Unlock()

	apiServer := &http.Server{
		Addr:              m.cfg.ListenAddr,
		Handler:           m.deps.APIHandler,
		ReadHeaderTimeout: m.cfg.ReadHeaderTimeout,
	}
	var metricsServer *http.Server
	if m.deps.MetricsHandler != nil {
		metricsServer = &http.Server{
			Addr:              m.deps.MetricsAddr,
			Handler:           m.deps.MetricsHandler,
			ReadHeaderTimeout: m.cfg.ReadHeaderTimeout,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m.logger.Info().
			Str("event", "api.server_start").
			Str("addr", apiServer.Addr).
			Msg("admin API listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			m.logger.Info().
				Str("event", "metrics.server_start").
				Str("addr", metricsServer.Addr).
				Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// Stop the servers once the context is done, whether from a signal or a
	// sibling failure.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	m.runHooks(ctx)
	if err != nil {
		m.logger.Error().Err(err).Str("event", "daemon.stopped").Msg("daemon stopped with error")
		return err
	}
	m.logger.Info().Str("event", "daemon.stopped").Msg("daemon stopped")
	return nil
}

func (m *Manager) runHooks(ctx context.Context) {
	m.mu.Lock()
	hooks := make([]namedHook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.hook(shutdownCtx); err != nil {
			m.logger.Warn().Err(err).
				Str("event", "daemon.hook_failed").
				Str("hook", h.name).
				Msg("shutdown hook failed")
			continue
		}
		m.logger.Debug().Str("event", "daemon.hook_done").Str("hook", h.name).Msg("shutdown hook completed")
	}
}
