// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGuard/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/middleware"
)

// Options configure route-level middleware.
type Options struct {
	// RateLimit and RateBurst bound POST /v1/guardrail/validate. A
	// non-positive RateLimit disables limiting.
	RateLimit float64
	RateBurst int

	// AdminToken guards the mutating endpoints. Empty leaves them open.
	AdminToken string

	// MetricsHandler serves GET /metrics. nil skips the route.
	MetricsHandler http.Handler
}

// SetupRoutes registers every guardrail endpoint on router.
func SetupRoutes(router *gin.Engine, deps handlers.Deps, opts Options) {
	router.GET("/health", handlers.HealthCheck(deps))
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	admin := middleware.AdminAuth(opts.AdminToken)

	// API version 1 group
	v1 := router.Group("/v1/guardrail")
	{
		v1.POST("/validate", middleware.RateLimit(opts.RateLimit, opts.RateBurst, deps.Metrics), handlers.HandleValidate(deps))
		v1.GET("/instructions", handlers.HandleInstructions())

		v1.GET("/stats", handlers.HandleGetStats(deps))
		v1.DELETE("/stats", admin, handlers.HandleResetStats(deps))

		config := v1.Group("/config")
		{
			config.GET("", handlers.HandleGetConfig(deps))
			config.PUT("/thresholds", admin, handlers.HandlePutThresholds(deps))
			config.PUT("/patterns", admin, handlers.HandlePutPatterns(deps))
		}

		history := v1.Group("/history")
		{
			history.GET("", handlers.HandleHistory(deps))
			history.GET("/summary", handlers.HandleHistorySummary(deps))
		}
	}
}
