// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the guardrail HTTP
// service.
//
// # Description
//
// Metrics include:
//   - Request counters and latency histograms by route, method and status
//   - Validation outcomes by quality level
//   - Reconfiguration outcomes by kind
//   - Rate-limited request counter
//
// Engine-internal instruments (scores, findings) are emitted through
// OpenTelemetry by the guardrail package and bridged into the same registry
// by the telemetry package.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for guardrail HTTP metrics
const guardrailSubsystem = "guardrail_http"

// HTTPMetrics holds the Prometheus metrics of the guardrail service.
type HTTPMetrics struct {
	// RequestsTotal counts requests.
	// Labels: route, method, status
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency.
	// Labels: route, method
	RequestDurationSeconds *prometheus.HistogramVec

	// ValidationsTotal counts validations served over HTTP.
	// Labels: level (high, medium, low, hallucination_risk)
	ValidationsTotal *prometheus.CounterVec

	// ReconfigurationsTotal counts runtime reconfiguration attempts.
	// Labels: kind (thresholds, patterns), outcome (applied, rejected)
	ReconfigurationsTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests refused by the rate limiter.
	RateLimitedTotal prometheus.Counter
}

// NewHTTPMetrics creates and registers the metrics with reg.
//
// # Inputs
//
//   - reg: Registry to register with. Tests pass prometheus.NewRegistry()
//     so they can run in parallel without duplicate registration panics.
//     nil means prometheus.DefaultRegisterer.
//
// # Limitations
//
//   - Panics if called twice against the same registry.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &HTTPMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardrailSubsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: guardrailSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP handler latency in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
			[]string{"route", "method"},
		),

		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardrailSubsystem,
				Name:      "validations_total",
				Help:      "Validations served over HTTP by quality level",
			},
			[]string{"level"},
		),

		ReconfigurationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardrailSubsystem,
				Name:      "reconfigurations_total",
				Help:      "Runtime reconfiguration attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		RateLimitedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardrailSubsystem,
				Name:      "rate_limited_total",
				Help:      "Requests refused by the rate limiter",
			},
		),
	}
}

// ReconfigureKind labels the part of the configuration a request changed.
type ReconfigureKind string

const (
	ReconfigureThresholds ReconfigureKind = "thresholds"
	ReconfigurePatterns   ReconfigureKind = "patterns"

	// ReconfigureFile is a hot reload of the config file.
	ReconfigureFile ReconfigureKind = "file"
)

// RecordRequest records a completed request.
//
// # Inputs
//
//   - route: The matched route template, e.g. "/v1/guardrail/validate".
//   - method: HTTP method.
//   - status: Response status code.
//   - elapsed: Handler duration.
func (m *HTTPMetrics) RecordRequest(route, method string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordValidation records a validation outcome.
func (m *HTTPMetrics) RecordValidation(level string) {
	m.ValidationsTotal.WithLabelValues(level).Inc()
}

// RecordReconfiguration records a reconfiguration attempt.
func (m *HTTPMetrics) RecordReconfiguration(kind ReconfigureKind, applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "rejected"
	}
	m.ReconfigurationsTotal.WithLabelValues(string(kind), outcome).Inc()
}

// RecordRateLimited increments the rate-limited counter.
func (m *HTTPMetrics) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
}
