// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP request handlers for the guardrail service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/patterns"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/store"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/telemetry"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/observability"
)

var handlerTracer = otel.Tracer("aleutian.guardrail.handlers")

// ResultLog persists validation outcomes. *store.Store implements it.
type ResultLog interface {
	Append(ctx context.Context, r store.Record) error
	List(ctx context.Context, limit int) ([]store.Record, error)
	Summarize(ctx context.Context) (store.Summary, error)
}

// Deps are the collaborators shared by the handlers.
type Deps struct {
	// System is the validation engine. Required.
	System *guardrail.System

	// Results is the result log. nil disables history endpoints and
	// result logging.
	Results ResultLog

	// Metrics is optional.
	Metrics *observability.HTTPMetrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (d Deps) logger(ctx context.Context) *slog.Logger {
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	return telemetry.LoggerWithTrace(ctx, l)
}

// defaultHistoryLimit applies when GET /history has no limit.
const defaultHistoryLimit = 50

// HealthCheck reports liveness and the active configuration version.
func HealthCheck(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status:        "ok",
			ConfigVersion: deps.System.Snapshot().Version,
			StoreEnabled:  deps.Results != nil,
			Time:          time.Now().UTC(),
		})
	}
}

// HandleValidate validates one answer.
//
// # Responses
//
//   - 200: datatypes.ValidateResponse. Every quality level, including
//     hallucination_risk, is a successful validation.
//   - 400: Malformed or oversized fields.
//   - 413: Body larger than the server limit.
//   - 500: Engine invariant failure.
func HandleValidate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleValidate")
		defer span.End()

		var req datatypes.ValidateRequest
		if !bindAndValidate(c, &req, req.Validate) {
			span.SetStatus(codes.Error, "invalid request")
			return
		}

		result, err := deps.System.Validate(ctx, req.ToEngine())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			deps.logger(ctx).Error("validation failed", slog.String("error", err.Error()))
			respondError(c, http.StatusInternalServerError, "validation failed")
			return
		}

		if deps.Metrics != nil {
			deps.Metrics.RecordValidation(result.QualityLevel.String())
		}
		if deps.Results != nil {
			rec := store.NewRecord(req.Question, *result, time.Now())
			if err := deps.Results.Append(ctx, rec); err != nil {
				deps.logger(ctx).Warn("result not logged",
					slog.String("error", err.Error()),
					slog.String("record_id", rec.ID),
				)
			}
		}

		c.JSON(http.StatusOK, datatypes.ValidateResponse{
			RequestID: middleware.GetRequestID(c),
			Result:    *result,
		})
	}
}

// HandleGetStats returns the running statistics.
func HandleGetStats(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.System.Statistics())
	}
}

// HandleResetStats zeroes the running statistics and returns the empty
// snapshot.
func HandleResetStats(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps.System.ResetStatistics()
		c.JSON(http.StatusOK, deps.System.Statistics())
	}
}

// HandleGetConfig returns the active configuration.
func HandleGetConfig(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.System.Snapshot())
	}
}

// HandlePutThresholds replaces the classifier thresholds.
//
// # Responses
//
//   - 200: datatypes.ReconfigureResponse with the new version.
//   - 400: Malformed body.
//   - 422: Thresholds rejected by the engine (e.g. not increasing). The
//     previous configuration stays active.
func HandlePutThresholds(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ThresholdsRequest
		if !bindAndValidate(c, &req, req.Validate) {
			return
		}

		_, err := deps.System.Reconfigure(guardrail.Update{EditThresholds: req.Apply})
		recordReconfigure(deps, observability.ReconfigureThresholds, err)
		if err != nil {
			respondReconfigureError(c, err)
			return
		}
		respondReconfigured(c, deps)
	}
}

// HandlePutPatterns replaces the pattern library.
//
// # Responses
//
//   - 200: datatypes.ReconfigureResponse with the new version.
//   - 400: Malformed body.
//   - 422: A spec failed to compile. The previous library stays active.
func HandlePutPatterns(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.PatternsRequest
		if !bindAndValidate(c, &req, req.Validate) {
			return
		}

		set, err := patterns.Compile(req.Patterns)
		if err == nil {
			_, err = deps.System.Reconfigure(guardrail.Update{Patterns: set})
		}
		recordReconfigure(deps, observability.ReconfigurePatterns, err)
		if err != nil {
			respondReconfigureError(c, err)
			return
		}
		respondReconfigured(c, deps)
	}
}

// HandleInstructions returns the grounding instructions block that
// generators should prepend to their prompts.
func HandleInstructions() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.InstructionsResponse{Instructions: guardrail.GroundingInstructions})
	}
}

// HandleHistory lists recent results, newest first.
func HandleHistory(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Results == nil {
			respondError(c, http.StatusNotFound, "result log disabled")
			return
		}
		var q datatypes.HistoryQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondError(c, http.StatusBadRequest, "invalid query", err.Error())
			return
		}
		if err := q.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, "invalid query", validationDetails(err)...)
			return
		}
		if q.Limit == 0 {
			q.Limit = defaultHistoryLimit
		}

		records, err := deps.Results.List(c.Request.Context(), q.Limit)
		if err != nil {
			deps.logger(c.Request.Context()).Error("list results failed", slog.String("error", err.Error()))
			respondError(c, http.StatusInternalServerError, "could not read result log")
			return
		}
		if records == nil {
			records = []store.Record{}
		}
		c.JSON(http.StatusOK, datatypes.HistoryResponse{Records: records})
	}
}

// HandleHistorySummary returns the confidence distribution of the result
// log.
func HandleHistorySummary(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Results == nil {
			respondError(c, http.StatusNotFound, "result log disabled")
			return
		}
		sum, err := deps.Results.Summarize(c.Request.Context())
		if err != nil {
			deps.logger(c.Request.Context()).Error("summarize results failed", slog.String("error", err.Error()))
			respondError(c, http.StatusInternalServerError, "could not read result log")
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

// =============================================================================
// Helpers
// =============================================================================

// bindAndValidate decodes the JSON body into dst and runs validate. It
// writes the error response and returns false on failure.
func bindAndValidate(c *gin.Context, dst any, validate func() error) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	if err := validate(); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request", validationDetails(err)...)
		return false
	}
	return true
}

func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, len(verrs))
	for i, fe := range verrs {
		out[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
	}
	return out
}

func respondError(c *gin.Context, status int, msg string, details ...string) {
	c.AbortWithStatusJSON(status, datatypes.ErrorResponse{
		Error:     msg,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

func respondReconfigureError(c *gin.Context, err error) {
	if isConfigError(err) {
		respondError(c, http.StatusUnprocessableEntity, "configuration rejected", err.Error())
		return
	}
	respondError(c, http.StatusInternalServerError, "reconfiguration failed")
}

// isConfigError reports whether err is a rejected configuration rather than
// a server fault.
func isConfigError(err error) bool {
	return errors.Is(err, guardrail.ErrInvalidConfig) || errors.Is(err, patterns.ErrInvalidSpec)
}

func respondReconfigured(c *gin.Context, deps Deps) {
	snap := deps.System.Snapshot()
	c.JSON(http.StatusOK, datatypes.ReconfigureResponse{
		Version:     snap.Version,
		Fingerprint: snap.Fingerprint,
	})
}

func recordReconfigure(deps Deps, kind observability.ReconfigureKind, err error) {
	if deps.Metrics != nil {
		deps.Metrics.RecordReconfiguration(kind, err == nil)
	}
}
