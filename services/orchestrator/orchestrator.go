// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles the guardrail HTTP service.
//
// The service wires a guardrail.System, an optional result log, and the
// Prometheus handler behind a gin router:
//
//	gin.Engine
//	  ├─ Recovery, otelgin, RequestID, AccessLog, Metrics, BodyLimit
//	  └─ routes.SetupRoutes
//	        ├─ /health, /metrics
//	        └─ /v1/guardrail/...
//
// # Usage
//
//	svc, err := orchestrator.New(orchestrator.DefaultConfig(), deps, telemetry.MetricsHandler())
//	if err != nil {
//	    return err
//	}
//	return svc.Run(ctx) // returns after ctx is canceled and the server drains
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianGuard/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/routes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the lifecycle of the guardrail HTTP service.
//
// # Thread Safety
//
// Router may be called concurrently. Run must be called at most once.
type Service interface {
	// Run serves until ctx is canceled, then shuts down gracefully.
	//
	// # Outputs
	//
	//   - error: nil after a clean shutdown, otherwise the listen or
	//     shutdown error.
	Run(ctx context.Context) error

	// Router returns the configured router for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures the service.
type Config struct {
	// Addr is the listen address. Default: "localhost:12230"
	Addr string

	// ServiceName labels otelgin spans. Default: "aleutian-guardrail"
	ServiceName string

	// RateLimit and RateBurst bound the validate endpoint.
	RateLimit float64
	RateBurst int

	// MaxBodyBytes caps request bodies. Default: 1 MiB
	MaxBodyBytes int64

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration

	// AdminToken guards mutating endpoints. Empty leaves them open.
	AdminToken string
}

// DefaultConfig returns the local-development configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "localhost:12230",
		ServiceName:     "aleutian-guardrail",
		RateLimit:       20,
		RateBurst:       40,
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// applyConfigDefaults fills in zero-valued fields.
func applyConfigDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config Config
	router *gin.Engine
	logger *slog.Logger

	// listening receives the bound address once. Used by tests.
	listening chan net.Addr
}

// New creates the service.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - deps: Handler dependencies. deps.System is required.
//   - metricsHandler: Serves GET /metrics. May be nil.
//
// # Outputs
//
//   - Service: Ready-to-run service.
//   - error: Non-nil if deps.System is missing.
func New(cfg Config, deps handlers.Deps, metricsHandler http.Handler) (Service, error) {
	if deps.System == nil {
		return nil, errors.New("guardrail system is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &service{
		config:    applyConfigDefaults(cfg),
		logger:    deps.Logger,
		listening: make(chan net.Addr, 1),
	}

	s.router = gin.New()
	s.router.Use(
		gin.Recovery(),
		otelgin.Middleware(s.config.ServiceName),
		middleware.RequestID(),
		middleware.AccessLog(deps.Logger),
	)
	if deps.Metrics != nil {
		s.router.Use(middleware.Metrics(deps.Metrics))
	}
	s.router.Use(middleware.BodyLimit(s.config.MaxBodyBytes))

	routes.SetupRoutes(s.router, deps, routes.Options{
		RateLimit:      s.config.RateLimit,
		RateBurst:      s.config.RateBurst,
		AdminToken:     s.config.AdminToken,
		MetricsHandler: metricsHandler,
	})
	return s, nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	s.listening <- ln.Addr()
	s.logger.Info("guardrail server listening", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("guardrail server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Router implements Service.
func (s *service) Router() *gin.Engine {
	return s.router
}
