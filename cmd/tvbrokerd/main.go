// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// tvbrokerd is the session broker daemon. It mediates between client
// processes and dynamically bound backend providers, exposing an admin API
// and Prometheus metrics. Backends are attached through the virtual
// connector; real transports plug in behind the same interfaces.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/tvbroker/internal/api"
	"github.com/ManuGH/tvbroker/internal/broker"
	"github.com/ManuGH/tvbroker/internal/config"
	"github.com/ManuGH/tvbroker/internal/daemon"
	"github.com/ManuGH/tvbroker/internal/discovery"
	xglog "github.com/ManuGH/tvbroker/internal/log"
	"github.com/ManuGH/tvbroker/internal/transport"
	"github.com/ManuGH/tvbroker/internal/watchlog"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(version)
	if err != nil {
		xglog.Configure(xglog.Config{Service: "tvbroker", Version: version})
		fatalLogger := xglog.WithComponent("main")
		fatalLogger.Fatal().Err(err).
			Str("event", "config.load_failed").
			Msg("failed to load configuration")
	}
	serverCfg := config.ParseServerConfig()

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger := xglog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, serverCfg, logger); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("tvbrokerd exited with error")
	}
}

func run(ctx context.Context, cfg config.AppConfig, serverCfg config.ServerConfig, logger zerolog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Watch-history store and worker.
	var watchStore watchlog.Store
	var watchWorker *watchlog.Worker
	var history broker.HistoryRecorder
	if cfg.WatchLogEnabled {
		store, err := watchlog.OpenBadgerStore(filepath.Join(cfg.DataDir, "watchlog"))
		if err != nil {
			return fmt.Errorf("open watch-log store: %w", err)
		}
		watchStore = store
		watchWorker = watchlog.NewWorker(store, 256)
		history = watchWorker
	}

	// The virtual connector materializes an in-process backend per provider.
	connector := transport.NewFakeConnector()

	b := broker.New(broker.Options{
		Connector:     connector,
		History:       history,
		OpTimeout:     cfg.OpTimeout,
		DispatchQueue: cfg.DispatchQueue,
		CurrentUser:   cfg.DefaultUserID,
	})

	// Initial provider enumeration from the manifest, then hot reload on
	// file changes. A missing manifest starts an empty broker; providers
	// appear as soon as the file does.
	snapshotPath := filepath.Join(cfg.DataDir, "providers.snapshot.json")
	manifest := discovery.NewManifest(cfg.ManifestPath)
	providers, err := manifest.EnumerateProviders()
	if err != nil {
		logger.Warn().Err(err).
			Str("event", "manifest.initial_load_failed").
			Str("path", cfg.ManifestPath).
			Msg("starting without providers")
	} else {
		b.SetProviders(providers)
		writeSnapshot(snapshotPath, providers, logger)
	}

	watcher := discovery.NewWatcher(manifest, func(p []transport.ProviderDescriptor) {
		b.SetProviders(p)
		writeSnapshot(snapshotPath, p, logger)
	})
	if err := watcher.Start(ctx); err != nil {
		logger.Warn().Err(err).
			Str("event", "manifest.watch_failed").
			Msg("manifest hot reload disabled")
	}

	apiServer := api.NewServer(b, watchStore, cfg.Version, api.Options{
		APIToken:          cfg.APIToken,
		AllowedOrigins:    cfg.AllowedOrigins,
		RequestsPerMinute: rateLimitPerMinute(serverCfg),
		TracingService:    serverCfg.TracingService,
	})

	deps := daemon.Deps{APIHandler: apiServer.Router()}
	if cfg.MetricsEnabled {
		deps.MetricsHandler = promhttp.Handler()
		deps.MetricsAddr = cfg.MetricsAddr
	}

	manager, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		return err
	}
	// Hooks run LIFO: broker stops first so no session teardown races the
	// watch-log worker draining its queue.
	manager.RegisterShutdownHook("watchlog", func(context.Context) error {
		if watchWorker != nil {
			watchWorker.Stop()
		}
		if watchStore != nil {
			return watchStore.Close()
		}
		return nil
	})
	manager.RegisterShutdownHook("broker", func(context.Context) error {
		apiServer.SetReady(false)
		b.Shutdown()
		return nil
	})

	logger.Info().
		Str("event", "daemon.starting").
		Str("version", cfg.Version).
		Str("listen", serverCfg.ListenAddr).
		Str("manifest", cfg.ManifestPath).
		Int("providers", len(providers)).
		Msg("tvbrokerd starting")

	return manager.Start(ctx)
}

func writeSnapshot(path string, providers []transport.ProviderDescriptor, logger zerolog.Logger) {
	if err := discovery.WriteSnapshot(path, providers); err != nil {
		logger.Warn().Err(err).
			Str("event", "snapshot.write_failed").
			Str("path", path).
			Msg("failed to persist provider snapshot")
	}
}

func rateLimitPerMinute(cfg config.ServerConfig) int {
	if !cfg.RateLimitEnabled || cfg.RateLimitRPS <= 0 {
		return 0
	}
	return cfg.RateLimitRPS * 60
}
