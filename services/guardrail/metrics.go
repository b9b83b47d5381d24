// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guardrail

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for guardrail operations.
var (
	tracer = otel.Tracer("aleutian.guardrail")
	meter  = otel.Meter("aleutian.guardrail")
)

// Metrics for guardrail operations.
var (
	validationsTotal     metric.Int64Counter
	validationDuration   metric.Float64Histogram
	findingsTotal        metric.Int64Counter
	confidenceHistogram  metric.Float64Histogram
	riskHistogram        metric.Float64Histogram
	groundingHistogram   metric.Float64Histogram
	reconfigurationTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		validationsTotal, err = meter.Int64Counter(
			"guardrail_validations_total",
			metric.WithDescription("Total validations by quality level"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		validationDuration, err = meter.Float64Histogram(
			"guardrail_validation_duration_seconds",
			metric.WithDescription("Validation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsTotal, err = meter.Int64Counter(
			"guardrail_findings_total",
			metric.WithDescription("Total findings by kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		confidenceHistogram, err = meter.Float64Histogram(
			"guardrail_confidence",
			metric.WithDescription("Distribution of confidence scores"),
			metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
		)
		if err != nil {
			metricsErr = err
			return
		}

		riskHistogram, err = meter.Float64Histogram(
			"guardrail_risk",
			metric.WithDescription("Distribution of hallucination risk scores"),
			metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
		)
		if err != nil {
			metricsErr = err
			return
		}

		groundingHistogram, err = meter.Float64Histogram(
			"guardrail_grounding_ratio",
			metric.WithDescription("Distribution of grounding ratios"),
			metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
		)
		if err != nil {
			metricsErr = err
			return
		}

		reconfigurationTotal, err = meter.Int64Counter(
			"guardrail_reconfigurations_total",
			metric.WithDescription("Reconfiguration attempts by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordValidation records the metrics for one completed validation.
//
// Thread Safety: Safe for concurrent use.
func recordValidation(ctx context.Context, result *ValidationResult, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("level", result.QualityLevel.String()))
	validationsTotal.Add(ctx, 1, attrs)
	validationDuration.Record(ctx, duration.Seconds(), attrs)
	confidenceHistogram.Record(ctx, result.ConfidenceScore)
	riskHistogram.Record(ctx, result.RiskScore)
	groundingHistogram.Record(ctx, result.GroundingRatio)

	for _, f := range result.Findings {
		findingsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(f.Kind)),
			attribute.String("code", f.Code),
		))
	}
}

// recordReconfiguration records one reconfiguration attempt.
func recordReconfiguration(ctx context.Context, err error) {
	if initMetrics() != nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	reconfigurationTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// startValidationSpan creates a span for one validation.
func startValidationSpan(ctx context.Context, req *ValidationRequest, version uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "guardrail.Validate",
		trace.WithAttributes(
			attribute.Int("guardrail.answer_length", len(req.Answer)),
			attribute.Int("guardrail.snippets", len(req.Context)),
			attribute.Int64("guardrail.config_version", int64(version)),
		),
	)
}

// setValidationSpanResult sets result attributes on a validation span.
func setValidationSpanResult(span trace.Span, result *ValidationResult) {
	span.SetAttributes(
		attribute.String("guardrail.level", result.QualityLevel.String()),
		attribute.Float64("guardrail.confidence", result.ConfidenceScore),
		attribute.Float64("guardrail.risk", result.RiskScore),
		attribute.Float64("guardrail.grounding", result.GroundingRatio),
		attribute.Int("guardrail.warnings", len(result.Warnings)),
	)
	for _, f := range result.Findings {
		span.AddEvent("finding", trace.WithAttributes(
			attribute.String("kind", string(f.Kind)),
			attribute.String("code", f.Code),
		))
	}
}

// setSpanError marks a span failed.
func setSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
