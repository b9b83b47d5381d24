// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the request and response bodies of the
// guardrail HTTP API.
//
// Request types carry go-playground/validator tags and a Validate method.
// Handlers validate the wire shape here; the engine validates semantics
// (threshold ordering, pattern compilation) and reports
// guardrail.ErrInvalidConfig or patterns.ErrInvalidSpec.
package datatypes

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/patterns"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/store"
)

// Size limits for validation requests, in bytes.
const (
	MaxQuestionBytes = 8 << 10
	MaxAnswerBytes   = 64 << 10
	MaxSnippetBytes  = 64 << 10
	MaxSnippets      = 64
	MaxPatternSpecs  = 512
)

// guardValidate is the validator instance for guardrail datatypes.
var guardValidate *validator.Validate

func init() {
	guardValidate = validator.New()
	_ = guardValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks byte length (not rune count) against the tag
// parameter, e.g. `validate:"maxbytes=8192"`.
func validateMaxBytes(fl validator.FieldLevel) bool {
	var limit int
	if _, err := fmt.Sscanf(fl.Param(), "%d", &limit); err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// =============================================================================
// Validate
// =============================================================================

// SnippetBody is one retrieved passage.
type SnippetBody struct {
	Source string `json:"source" validate:"max=512"`
	Text   string `json:"text" validate:"maxbytes=65536"`
}

// ValidateRequest is the body of POST /v1/guardrail/validate.
//
// An empty answer is accepted and classified as hallucination risk; it is
// a result, not a request error.
type ValidateRequest struct {
	Question string        `json:"question" validate:"maxbytes=8192"`
	Answer   string        `json:"answer" validate:"maxbytes=65536"`
	Context  []SnippetBody `json:"context" validate:"max=64,dive"`
}

// Validate checks the request shape.
func (r *ValidateRequest) Validate() error {
	return guardValidate.Struct(r)
}

// ToEngine converts the body to an engine request.
func (r *ValidateRequest) ToEngine() *guardrail.ValidationRequest {
	ctx := make(guardrail.SourceContext, len(r.Context))
	for i, s := range r.Context {
		ctx[i] = guardrail.Snippet{Source: s.Source, Text: s.Text}
	}
	return &guardrail.ValidationRequest{
		Question: r.Question,
		Answer:   r.Answer,
		Context:  ctx,
	}
}

// ValidateResponse wraps a result with request metadata.
type ValidateResponse struct {
	RequestID string                     `json:"request_id"`
	Result    guardrail.ValidationResult `json:"result"`
}

// =============================================================================
// Reconfiguration
// =============================================================================

// ThresholdsRequest is the body of PUT /v1/guardrail/config/thresholds.
//
// The three floors are required. Omitted optional fields keep their current
// values.
type ThresholdsRequest struct {
	LowFloor          float64 `json:"low_floor" validate:"gt=0,lte=1"`
	MediumFloor       float64 `json:"medium_floor" validate:"gt=0,lte=1"`
	HighFloor         float64 `json:"high_floor" validate:"gt=0,lte=1"`
	MaxMediumWarnings *int    `json:"max_medium_warnings,omitempty" validate:"omitempty,gte=0"`
	PatternOverride   string  `json:"pattern_override,omitempty" validate:"omitempty,oneof=low hallucination_risk"`
}

// Validate checks the request shape.
func (r *ThresholdsRequest) Validate() error {
	return guardValidate.Struct(r)
}

// Apply merges the request over current.
func (r *ThresholdsRequest) Apply(current guardrail.Thresholds) guardrail.Thresholds {
	t := current
	t.LowFloor = r.LowFloor
	t.MediumFloor = r.MediumFloor
	t.HighFloor = r.HighFloor
	if r.MaxMediumWarnings != nil {
		t.MaxMediumWarnings = *r.MaxMediumWarnings
	}
	if r.PatternOverride != "" {
		t.PatternOverride = guardrail.QualityLevel(r.PatternOverride)
	}
	return t
}

// PatternsRequest is the body of PUT /v1/guardrail/config/patterns. It
// replaces the whole pattern library.
type PatternsRequest struct {
	Patterns []patterns.Spec `json:"patterns" validate:"required,min=1,max=512,dive"`
}

// Validate checks the request shape.
func (r *PatternsRequest) Validate() error {
	return guardValidate.Struct(r)
}

// ReconfigureResponse reports the active configuration after an update.
type ReconfigureResponse struct {
	Version     uint64 `json:"version"`
	Fingerprint string `json:"fingerprint"`
}

// =============================================================================
// History
// =============================================================================

// HistoryQuery holds the query parameters of GET /v1/guardrail/history.
type HistoryQuery struct {
	Limit int `form:"limit" validate:"omitempty,gte=1,lte=1000"`
}

// Validate checks the query.
func (q *HistoryQuery) Validate() error {
	return guardValidate.Struct(q)
}

// HistoryResponse lists recent results, newest first.
type HistoryResponse struct {
	Records []store.Record `json:"records"`
}

// =============================================================================
// Misc
// =============================================================================

// InstructionsResponse carries the prompt block for generators.
type InstructionsResponse struct {
	Instructions string `json:"instructions"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string    `json:"status"`
	ConfigVersion uint64    `json:"config_version"`
	StoreEnabled  bool      `json:"store_enabled"`
	Time          time.Time `json:"time"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}
