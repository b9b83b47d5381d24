// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/observability"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func testDeps(t *testing.T) handlers.Deps {
	t.Helper()
	sys, err := guardrail.New()
	require.NoError(t, err)
	return handlers.Deps{
		System:  sys,
		Metrics: observability.NewHTTPMetrics(prometheus.NewRegistry()),
	}
}

// =============================================================================
// Config Tests
// =============================================================================

// TestApplyConfigDefaults_AllDefaults verifies default values are applied.
func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	result := applyConfigDefaults(Config{})

	assert.Equal(t, "localhost:12230", result.Addr)
	assert.Equal(t, "aleutian-guardrail", result.ServiceName)
	assert.Equal(t, int64(1<<20), result.MaxBodyBytes)
	assert.Equal(t, 10*time.Second, result.ShutdownTimeout)
	assert.Zero(t, result.RateLimit, "rate limiting stays off unless configured")
}

// TestApplyConfigDefaults_PreservesCustomValues verifies custom values are not overwritten.
func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{
		Addr:            "0.0.0.0:9000",
		ServiceName:     "guard-eu",
		MaxBodyBytes:    4096,
		ShutdownTimeout: time.Second,
		AdminToken:      "s3cret",
	}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, cfg, result)
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_RequiresSystem(t *testing.T) {
	_, err := New(DefaultConfig(), handlers.Deps{}, nil)
	assert.Error(t, err)
}

func TestNew_RouterServesRequests(t *testing.T) {
	svc, err := New(DefaultConfig(), testDeps(t), nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics route needs a handler")
}

func TestNew_BodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 64
	svc, err := New(cfg, testDeps(t), nil)
	require.NoError(t, err)

	body := fmt.Sprintf(`{"answer": %q}`, strings.Repeat("a", 200))
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/v1/guardrail/validate", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	svc.Router().ServeHTTP(w, r)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestRun_GracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	svc, err := New(cfg, testDeps(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	var addr net.Addr
	select {
	case addr = <-svc.(*service).listening:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr.String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := DefaultConfig()
	cfg.Addr = ln.Addr().String()
	svc, err := New(cfg, testDeps(t), nil)
	require.NoError(t, err)

	err = svc.Run(context.Background())
	assert.ErrorContains(t, err, "listen on")
}
