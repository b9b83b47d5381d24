// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the guardrail service.
//
// # Chain
//
//	Request
//	   │
//	   ▼
//	RequestID ──► Metrics ──► BodyLimit ──► route
//	                                          │
//	                      ┌───────────────────┴──────────────┐
//	                      ▼                                  ▼
//	               RateLimit (validate)             AdminAuth (PUT/DELETE)
//	                      │                                  │
//	                      ▼                                  ▼
//	                   Handler                            Handler
//
// # Open Source Behavior
//
// With no admin token configured, AdminAuth lets every request through. This
// keeps the CLI and local tooling working against a localhost listener.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuth guards mutating endpoints with a static bearer token.
//
// # Inputs
//
//   - token: The expected bearer token. Empty disables the check.
//
// # Outputs
//
//   - gin.HandlerFunc: Aborts with 401 when the token is missing or wrong.
//
// # Thread Safety
//
// Safe for concurrent use.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		got := extractBearerToken(c)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
