// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/store"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	relaySnippet  = "The Aleutian relay stores validation results in an embedded key value store and keeps them for thirty days before compaction removes old entries."
	relayQuestion = "How long does the relay keep validation results?"
)

// testEnv is a router wired the way routes.SetupRoutes wires it, kept local
// so handler tests do not import the routes package.
type testEnv struct {
	router  *gin.Engine
	deps    Deps
	results *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sys, err := guardrail.New()
	require.NoError(t, err)
	results, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = results.Close() })

	deps := Deps{
		System:  sys,
		Results: results,
		Metrics: observability.NewHTTPMetrics(prometheus.NewRegistry()),
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.BodyLimit(256<<10))
	router.GET("/health", HealthCheck(deps))
	router.POST("/validate", HandleValidate(deps))
	router.GET("/stats", HandleGetStats(deps))
	router.DELETE("/stats", HandleResetStats(deps))
	router.GET("/config", HandleGetConfig(deps))
	router.PUT("/config/thresholds", HandlePutThresholds(deps))
	router.PUT("/config/patterns", HandlePutPatterns(deps))
	router.GET("/instructions", HandleInstructions())
	router.GET("/history", HandleHistory(deps))
	router.GET("/history/summary", HandleHistorySummary(deps))

	return &testEnv{router: router, deps: deps, results: results}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, path, nil)
	case string:
		r = httptest.NewRequest(method, path, strings.NewReader(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
	}
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func groundedRequest(answer string) datatypes.ValidateRequest {
	return datatypes.ValidateRequest{
		Question: relayQuestion,
		Answer:   answer,
		Context:  []datatypes.SnippetBody{{Source: "ops-handbook.md", Text: relaySnippet}},
	}
}

// =============================================================================
// Validate
// =============================================================================

func TestHandleValidate_Grounded(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/validate", groundedRequest("According to the document, "+relaySnippet))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[datatypes.ValidateResponse](t, w)
	assert.Equal(t, guardrail.QualityHigh, resp.Result.QualityLevel)
	assert.True(t, resp.Result.Passed)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, w.Header().Get(middleware.RequestIDHeader))

	assert.Equal(t, 1.0, testutil.ToFloat64(env.deps.Metrics.ValidationsTotal.WithLabelValues("high")))

	records, err := env.results.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, relayQuestion, records[0].Question)
	assert.Equal(t, guardrail.QualityHigh, records[0].Level)
}

func TestHandleValidate_HallucinationRiskIsOK(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/validate", groundedRequest("Experts say "+relaySnippet))
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[datatypes.ValidateResponse](t, w).Result
	assert.Equal(t, guardrail.QualityHallucinationRisk, res.QualityLevel)
	assert.False(t, res.Passed)
	assert.True(t, strings.HasPrefix(res.EnhancedAnswer, guardrail.DefaultRiskWarning))
	assert.NotEmpty(t, res.Suggestions)
}

func TestHandleValidate_EmptyAnswer(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/validate", datatypes.ValidateRequest{Question: relayQuestion})
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[datatypes.ValidateResponse](t, w).Result
	assert.Equal(t, guardrail.QualityHallucinationRisk, res.QualityLevel)
	assert.Equal(t, 1.0, res.RiskScore)
}

func TestHandleValidate_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"wrong type", `{"answer": 12}`, http.StatusBadRequest},
		{"answer too large", datatypes.ValidateRequest{Answer: strings.Repeat("a", datatypes.MaxAnswerBytes+1)}, http.StatusBadRequest},
		{"body too large", datatypes.ValidateRequest{Context: []datatypes.SnippetBody{
			{Text: strings.Repeat("a", 60<<10)}, {Text: strings.Repeat("b", 60<<10)},
			{Text: strings.Repeat("c", 60<<10)}, {Text: strings.Repeat("d", 60<<10)},
			{Text: strings.Repeat("e", 60<<10)},
		}}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/validate", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decode[datatypes.ErrorResponse](t, w)
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}

	assert.Zero(t, env.deps.System.Statistics().TotalQueries, "rejected requests are not counted")
}

type failingLog struct{ ResultLog }

func (failingLog) Append(context.Context, store.Record) error { return errors.New("disk full") }

func TestHandleValidate_ResultLogFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Results = failingLog{}
	router := gin.New()
	router.POST("/validate", HandleValidate(env.deps))

	data, _ := json.Marshal(groundedRequest(relaySnippet))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/validate", bytes.NewReader(data)))
	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// Statistics
// =============================================================================

func TestStats_CountAndReset(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "POST", "/validate", groundedRequest("According to the document, "+relaySnippet))
	env.do(t, "POST", "/validate", groundedRequest("Experts say "+relaySnippet))

	stats := decode[guardrail.StatsSnapshot](t, env.do(t, "GET", "/stats", nil))
	assert.Equal(t, uint64(2), stats.TotalQueries)
	assert.Equal(t, uint64(1), stats.High)
	assert.Equal(t, uint64(1), stats.HallucinationRisk)

	w := env.do(t, "DELETE", "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[guardrail.StatsSnapshot](t, w).TotalQueries)
}

// =============================================================================
// Configuration
// =============================================================================

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t)
	snap := decode[guardrail.ConfigSnapshot](t, env.do(t, "GET", "/config", nil))
	assert.Equal(t, uint64(1), snap.Version)
	assert.NotEmpty(t, snap.Fingerprint)
	assert.NotEmpty(t, snap.Patterns)
	assert.Equal(t, guardrail.DefaultThresholds(), snap.Config.Thresholds)
}

func TestPutThresholds(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "PUT", "/config/thresholds", map[string]any{
		"low_floor": 0.3, "medium_floor": 0.5, "high_floor": 0.7, "pattern_override": "low",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[datatypes.ReconfigureResponse](t, w)
	assert.Equal(t, uint64(2), resp.Version)

	th := env.deps.System.Snapshot().Config.Thresholds
	assert.Equal(t, 0.7, th.HighFloor)
	assert.Equal(t, guardrail.QualityLow, th.PatternOverride)
	assert.Equal(t, 1, th.MaxMediumWarnings, "omitted fields keep their values")

	res := decode[datatypes.ValidateResponse](t, env.do(t, "POST", "/validate", groundedRequest("Experts say "+relaySnippet))).Result
	assert.Equal(t, guardrail.QualityLow, res.QualityLevel)
	assert.Equal(t, uint64(2), res.ConfigVersion)
}

func TestPutThresholds_ConcurrentPartialUpdatesMerge(t *testing.T) {
	env := newTestEnv(t)
	for range 25 {
		defaults := guardrail.DefaultThresholds()
		_, err := env.deps.System.Reconfigure(guardrail.Update{Thresholds: &defaults})
		require.NoError(t, err)

		bodies := []string{
			`{"low_floor":0.4,"medium_floor":0.6,"high_floor":0.8,"pattern_override":"low"}`,
			`{"low_floor":0.4,"medium_floor":0.6,"high_floor":0.8,"max_medium_warnings":3}`,
		}

		var wg sync.WaitGroup
		codes := make([]int, len(bodies))
		for i, body := range bodies {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r := httptest.NewRequest("PUT", "/config/thresholds", strings.NewReader(body))
				r.Header.Set("Content-Type", "application/json")
				w := httptest.NewRecorder()
				env.router.ServeHTTP(w, r)
				codes[i] = w.Code
			}()
		}
		wg.Wait()

		assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
		th := env.deps.System.Snapshot().Config.Thresholds
		assert.Equal(t, guardrail.QualityLow, th.PatternOverride)
		assert.Equal(t, 3, th.MaxMediumWarnings)
	}
}

func TestPutThresholds_RejectedKeepsConfig(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "PUT", "/config/thresholds", map[string]any{
		"low_floor": 0.8, "medium_floor": 0.5, "high_floor": 0.9,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, uint64(1), env.deps.System.Snapshot().Version)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.deps.Metrics.ReconfigurationsTotal.WithLabelValues("thresholds", "rejected")))

	w = env.do(t, "PUT", "/config/thresholds", map[string]any{"low_floor": 0.3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutPatterns(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "PUT", "/config/patterns", map[string]any{
		"patterns": []map[string]any{
			{"id": "rumor", "category": "hallucination", "keywords": []string{"reportedly"}, "weight": 0.4, "message": "Relays hearsay"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[datatypes.ValidateResponse](t, env.do(t, "POST", "/validate", groundedRequest("Reportedly, "+relaySnippet))).Result
	assert.Contains(t, res.Warnings, "Potential hallucination pattern detected: rumor")

	res = decode[datatypes.ValidateResponse](t, env.do(t, "POST", "/validate", groundedRequest("Experts say "+relaySnippet))).Result
	assert.NotContains(t, res.Warnings, "Potential hallucination pattern detected: unattributed_authority",
		"the replaced library no longer has the default patterns")
}

func TestPutPatterns_Rejected(t *testing.T) {
	env := newTestEnv(t)
	before := env.deps.System.Snapshot().Fingerprint

	w := env.do(t, "PUT", "/config/patterns", map[string]any{
		"patterns": []map[string]any{{"id": "bad", "category": "hallucination", "pattern": "(", "weight": 0.4}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, "PUT", "/config/patterns", map[string]any{
		"patterns": []map[string]any{{"id": "odd", "category": "vibes", "pattern": "x", "weight": 0.4}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, "PUT", "/config/patterns", map[string]any{"patterns": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, before, env.deps.System.Snapshot().Fingerprint)
}

// =============================================================================
// Misc
// =============================================================================

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	resp := decode[datatypes.HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, uint64(1), resp.ConfigVersion)
	assert.True(t, resp.StoreEnabled)
}

func TestHandleInstructions(t *testing.T) {
	env := newTestEnv(t)
	resp := decode[datatypes.InstructionsResponse](t, env.do(t, "GET", "/instructions", nil))
	assert.Equal(t, guardrail.GroundingInstructions, resp.Instructions)
}

// =============================================================================
// History
// =============================================================================

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.do(t, "POST", "/validate", groundedRequest("According to the document, "+relaySnippet))
	}

	resp := decode[datatypes.HistoryResponse](t, env.do(t, "GET", "/history?limit=2", nil))
	assert.Len(t, resp.Records, 2)

	resp = decode[datatypes.HistoryResponse](t, env.do(t, "GET", "/history", nil))
	assert.Len(t, resp.Records, 3)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/history?limit=0x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/history?limit=100000", nil).Code)

	sum := decode[store.Summary](t, env.do(t, "GET", "/history/summary", nil))
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 3, sum.Levels[guardrail.QualityHigh])
	assert.Greater(t, sum.MeanConfidence, 0.8)
}

func TestHistory_Empty(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "GET", "/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"records":[]`)
}

func TestHistory_Disabled(t *testing.T) {
	sys, err := guardrail.New()
	require.NoError(t, err)
	deps := Deps{System: sys}

	router := gin.New()
	router.GET("/history", HandleHistory(deps))
	router.GET("/history/summary", HandleHistorySummary(deps))

	for _, path := range []string{"/history", "/history/summary"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
