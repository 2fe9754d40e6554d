// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ManuGH/tvbroker/internal/log"
	"github.com/ManuGH/tvbroker/internal/transport"
)

var reloads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tvbroker_manifest_reloads_total",
	Help: "Provider manifest reloads by outcome.",
}, []string{"outcome"})

// Watcher re-enumerates the manifest whenever the file changes and hands
// the fresh provider set to onChange. A broken edit keeps the previous set:
// the manifest either validates as a whole or the change is ignored.
type Watcher struct {
	manifest *Manifest
	onChange func([]transport.ProviderDescriptor)
	debounce time.Duration
	logger   zerolog.Logger
	fs       *fsnotify.Watcher
}

// NewWatcher wires a manifest to a change handler. Start must be called to
// begin watching.
func NewWatcher(m *Manifest, onChange func([]transport.ProviderDescriptor)) *Watcher {
	return &Watcher{
		manifest: m,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		logger:   log.WithComponent("discovery"),
	}
}

// Start watches the manifest file until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(w.manifest.path); err != nil {
		_ = fs.Close()
		return fmt.Errorf("watch manifest: %w", err)
	}
	w.fs = fs
	w.logger.Info().
		Str("event", "manifest.watcher_started").
		Str("path", w.manifest.path).
		Msg("watching provider manifest")

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	// Debounce so editors that write in several steps trigger one reload.
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = w.fs.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str("event", "manifest.watcher_stopped").Msg("manifest watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.reload()
			})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Str("event", "manifest.watcher_error").Msg("manifest watcher error")
		}
	}
}

func (w *Watcher) reload() {
	providers, err := w.manifest.EnumerateProviders()
	if err != nil {
		reloads.WithLabelValues("error").Inc()
		w.logger.Error().Err(err).
			Str("event", "manifest.reload_failed").
			Msg("manifest reload failed, keeping previous provider set")
		return
	}
	reloads.WithLabelValues("ok").Inc()
	w.logger.Info().
		Str("event", "manifest.reloaded").
		Int("providers", len(providers)).
		Msg("provider manifest reloaded")
	w.onChange(providers)
}
