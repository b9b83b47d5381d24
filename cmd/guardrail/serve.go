// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianGuard/pkg/logging"
	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/config"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/store"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/telemetry"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/observability"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the guardrail HTTP service",
		Long: `Runs the guardrail HTTP service until interrupted.

The config file is created with defaults on first run. Edits to the engine
and patterns sections are applied without a restart; server, logging, store
and telemetry changes need one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	file, path, err := opts.loadConfig(true)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(file.Logging.Level)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  file.Logging.Dir,
		Service: "guardrail",
		JSON:    file.Logging.JSON,
	})
	defer logger.Close()
	log := logger.Slog()
	slog.SetDefault(log)

	if level != logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tcfg := file.Telemetry
	tcfg.Registerer = reg
	tcfg.Gatherer = reg
	shutdownTelemetry, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			log.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	system, err := newEngine(file, log)
	if err != nil {
		return err
	}

	deps := handlers.Deps{
		System:  system,
		Metrics: observability.NewHTTPMetrics(reg),
		Logger:  log,
	}
	if file.Store.Enabled {
		results, err := openResultLog(file.Store, log)
		if err != nil {
			return err
		}
		defer results.Close()
		deps.Results = results
	}

	metricsHandler := telemetry.MetricsHandler()
	if metricsHandler == nil {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	svc, err := orchestrator.New(orchestrator.Config{
		Addr:            file.Server.Addr,
		ServiceName:     tcfg.ServiceName,
		RateLimit:       file.Server.RateLimit,
		RateBurst:       file.Server.RateBurst,
		MaxBodyBytes:    file.Server.MaxBodyBytes,
		ShutdownTimeout: file.Server.ShutdownTimeout,
		AdminToken:      file.Server.AdminToken,
	}, deps, metricsHandler)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })

	if path != "" {
		watcher, err := config.NewWatcher(path, reloadEngine(system, deps.Metrics, log), &config.WatcherOptions{
			DebounceWindow: 250 * time.Millisecond,
			Logger:         log,
		})
		if err != nil {
			log.Warn("config hot reload disabled", slog.String("error", err.Error()))
		} else {
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}

	log.Info("guardrail service started",
		slog.String("config", path),
		slog.Uint64("config_version", system.Snapshot().Version),
		slog.Bool("result_log", deps.Results != nil),
	)
	return g.Wait()
}

// openResultLog opens the badger result log. An empty path keeps it in
// memory.
func openResultLog(cfg config.StoreConfig, logger *slog.Logger) (*store.Store, error) {
	scfg := store.InMemoryConfig()
	if cfg.Path != "" {
		scfg = store.DefaultConfig(cfg.Path)
	}
	scfg.Retention = cfg.Retention
	scfg.Logger = logger
	results, err := store.Open(scfg)
	if err != nil {
		return nil, fmt.Errorf("open result log: %w", err)
	}
	return results, nil
}

// reloadEngine applies a reloaded config file to the running system.
//
// A file event whose engine and pattern sections match what the file last
// applied is skipped, so edits to other sections keep thresholds and
// patterns set over HTTP. When the file does change the engine, it wins
// and any HTTP changes made since are replaced.
func reloadEngine(system *guardrail.System, metrics *observability.HTTPMetrics, logger *slog.Logger) config.ReloadFunc {
	var mu sync.Mutex
	applied := system.Snapshot().Fingerprint

	return func(f *config.File) error {
		mu.Lock()
		defer mu.Unlock()

		update, err := f.Update()
		if err != nil {
			recordFileReload(metrics, false)
			return err
		}
		fp := guardrail.Fingerprint(*update.Config, update.Patterns)
		if fp == applied {
			logger.Debug("guardrail config file unchanged for the engine, keeping live config",
				slog.String("fingerprint", fp),
			)
			return nil
		}

		live := system.Snapshot()
		version, err := system.Reconfigure(update)
		recordFileReload(metrics, err == nil)
		if err != nil {
			return err
		}
		if live.Fingerprint != applied {
			logger.Warn("guardrail config file replaced runtime reconfiguration",
				slog.Uint64("replaced_version", live.Version),
				slog.String("replaced_fingerprint", live.Fingerprint),
			)
		}
		applied = fp
		logger.Info("guardrail config reloaded",
			slog.Uint64("version", version),
			slog.String("fingerprint", fp),
		)
		return nil
	}
}

func recordFileReload(metrics *observability.HTTPMetrics, ok bool) {
	if metrics != nil {
		metrics.RecordReconfiguration(observability.ReconfigureFile, ok)
	}
}
