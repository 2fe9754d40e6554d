// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the broker's admin and diagnostics surface over HTTP.
package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/tvbroker/internal/broker"
	"github.com/ManuGH/tvbroker/internal/log"
	"github.com/ManuGH/tvbroker/internal/watchlog"
)

// Options configures the HTTP surface.
type Options struct {
	// APIToken guards every /api route when non-empty.
	APIToken string

	// AllowedOrigins is the CORS allow list; empty disables CORS handling.
	AllowedOrigins []string

	// RequestsPerMinute enables per-IP rate limiting when positive.
	RequestsPerMinute int

	// TracingService enables OpenTelemetry instrumentation when non-empty.
	TracingService string
}

// Server serves the admin API for one broker instance.
type Server struct {
	broker  *broker.Broker
	watch   watchlog.Store // nil when the watch log is disabled
	version string
	opts    Options
	ready   atomic.Bool
	started time.Time
	logger  zerolog.Logger
}

// NewServer wires the admin API. watch may be nil.
func NewServer(b *broker.Broker, watch watchlog.Store, version string, opts Options) *Server {
	s := &Server{
		broker:  b,
		watch:   watch,
		version: version,
		opts:    opts,
		started: time.Now(),
		logger:  log.WithComponent("api"),
	}
	s.ready.Store(true)
	return s
}

// SetReady flips the readiness probe, e.g. during shutdown draining.
func (s *Server) SetReady(v bool) { s.ready.Store(v) }

// Router builds the chi router with the canonical middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer)
	r.Use(RequestID)
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(CORS(s.opts.AllowedOrigins))
	}
	r.Use(SecurityHeaders)
	r.Use(Metrics)
	if s.opts.TracingService != "" {
		r.Use(Tracing(s.opts.TracingService))
	}
	if s.opts.RequestsPerMinute > 0 {
		r.Use(RateLimit(s.opts.RequestsPerMinute))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Use(TokenAuth(s.opts.APIToken))
		r.Get("/status", s.handleStatus)
		r.Get("/providers", s.handleProviders)
		r.Get("/sessions", s.handleSessions)
		r.Post("/sessions/{token}/release", s.handleForceRelease)
		r.Get("/clients", s.handleClients)
		r.Get("/dump", s.handleDump)
		r.Post("/users/current", s.handleSetCurrentUser)
		r.Delete("/users/{userID}", s.handleRemoveUser)
		r.Get("/watchlog", s.handleWatchLog)
	})

	return r
}
