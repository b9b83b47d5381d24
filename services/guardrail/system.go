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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/zeebo/xxh3"

	"github.com/AleutianAI/AleutianGuard/services/guardrail/patterns"
)

const emptyAnswerWarning = "No answer generated"

// Option configures a System at construction.
type Option func(*System)

// WithConfig sets the initial engine config. Defaults to DefaultConfig().
func WithConfig(config Config) Option {
	return func(s *System) {
		s.initConfig = config
	}
}

// WithPatterns sets the initial pattern set. Defaults to patterns.Default().
func WithPatterns(set *patterns.Set) Option {
	return func(s *System) {
		s.initPatterns = set
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Update is a reconfiguration request. Nil fields keep the current value.
type Update struct {
	// Config replaces the whole engine config.
	Config *Config

	// Thresholds replaces only the classification table. Applied after
	// Config when both are set.
	Thresholds *Thresholds

	// EditThresholds derives the classification table from the one in
	// effect, under the write lock, so partial edits never race another
	// reconfiguration. Applied after Thresholds.
	EditThresholds func(Thresholds) Thresholds

	// Patterns replaces the pattern set.
	Patterns *patterns.Set
}

// ConfigSnapshot describes the configuration in effect.
type ConfigSnapshot struct {
	// Version increases by one on every applied reconfiguration. The
	// construction-time config is version 1.
	Version uint64 `json:"version"`

	// Fingerprint is a hash of the config and the pattern specs. Equal
	// fingerprints mean equal scoring behavior.
	Fingerprint string `json:"fingerprint"`

	Config   Config          `json:"config"`
	Patterns []patterns.Spec `json:"patterns"`
}

// snapshot is one immutable configuration version with its components
// built. A validation loads one snapshot and uses nothing else.
type snapshot struct {
	version     uint64
	fingerprint string
	config      Config
	patterns    *patterns.Set

	screen     *ContentScreen
	detector   *HallucinationDetector
	grounding  *GroundingScorer
	confidence *ConfidenceScorer
	classifier *QualityClassifier
	enhancer   *ResponseEnhancer
}

func newSnapshot(version uint64, config Config, set *patterns.Set) *snapshot {
	return &snapshot{
		version:     version,
		fingerprint: Fingerprint(config, set),
		config:      config,
		patterns:    set,
		screen:      NewContentScreen(config.Content, config.Length, set),
		detector:    NewHallucinationDetector(config.Detector, set),
		grounding:   NewGroundingScorer(config.Grounding),
		confidence:  NewConfidenceScorer(config.Confidence, config.Length),
		classifier:  NewQualityClassifier(config.Thresholds),
		enhancer:    NewResponseEnhancer(config.Disclaimers),
	}
}

// System is the guardrail entry point. It sequences the validation stages,
// keeps running statistics and owns the active configuration.
//
// # Thread Safety
//
// Validate, Statistics and Snapshot may be called concurrently with each
// other and with Reconfigure. Configuration is copy-on-write: readers load
// an atomic pointer and never block, writers serialize on a mutex.
type System struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
	stats   *Statistics
	logger  *slog.Logger

	initConfig   Config
	initPatterns *patterns.Set
}

// New creates a System.
//
// Inputs:
//
//	opts - Functional options. With none, DefaultConfig and
//	       patterns.Default are used.
//
// Outputs:
//
//	*System - The ready system.
//	error - ErrInvalidConfig (wrapped) if the initial config is invalid.
func New(opts ...Option) (*System, error) {
	s := &System{
		stats:      NewStatistics(),
		logger:     slog.Default(),
		initConfig: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.initPatterns == nil {
		s.initPatterns = patterns.Default()
	}
	if err := s.initConfig.Validate(); err != nil {
		return nil, err
	}

	s.current.Store(newSnapshot(1, s.initConfig, s.initPatterns))
	s.initPatterns = nil

	s.logger.Debug("guardrail system ready",
		slog.Int("patterns", s.current.Load().patterns.Len()),
		slog.String("fingerprint", s.current.Load().fingerprint),
	)
	return s, nil
}

// Validate scores one answer.
//
// The whole request runs against the configuration snapshot current at
// entry. Statistics are updated before returning. An empty or whitespace
// answer is not an error: it yields confidence 0 at hallucination_risk with
// a "No answer generated" warning.
//
// Inputs:
//
//	ctx - Context for tracing and metrics. The engine does no blocking work.
//	req - The request. Never modified.
//
// Outputs:
//
//	*ValidationResult - The result.
//	error - ErrNilRequest for a nil request, ErrInvariant (wrapped) if a
//	        score could not be computed. No statistics are recorded on error.
func (s *System) Validate(ctx context.Context, req *ValidationRequest) (*ValidationResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	start := time.Now()
	snap := s.current.Load()

	ctx, span := startValidationSpan(ctx, req, snap.version)
	defer span.End()

	result, err := snap.validate(req)
	if err != nil {
		setSpanError(span, err)
		s.logger.Error("guardrail validation failed",
			slog.String("error", err.Error()),
			slog.Uint64("config_version", snap.version),
		)
		return nil, err
	}

	s.stats.Record(result.QualityLevel, result.ConfidenceScore, len(result.Warnings))
	recordValidation(ctx, result, time.Since(start))
	setValidationSpanResult(span, result)

	s.logger.Debug("guardrail validation complete",
		slog.String("level", result.QualityLevel.String()),
		slog.Float64("confidence", result.ConfidenceScore),
		slog.Float64("risk", result.RiskScore),
		slog.Float64("grounding", result.GroundingRatio),
		slog.Uint64("config_version", snap.version),
	)
	if !result.Passed {
		s.logger.Info("guardrail raised warnings",
			slog.String("level", result.QualityLevel.String()),
			slog.Any("warnings", result.Warnings),
		)
	}
	return result, nil
}

func (snap *snapshot) validate(req *ValidationRequest) (*ValidationResult, error) {
	if strings.TrimSpace(req.Answer) == "" {
		findings := []Finding{{Kind: KindEmptyAnswer, Code: codeEmptyAnswer, Message: emptyAnswerWarning}}
		return snap.result(req, findings, 1, 0, 0, QualityHallucinationRisk), nil
	}

	findings := snap.screen.Screen(req.Question, req.Answer)

	risk, detected := snap.detector.Detect(req.Answer, req.Context)
	findings = append(findings, detected...)

	grounding := snap.grounding.Score(req.Answer, req.Context)

	confidence := snap.confidence.Score(ConfidenceInputs{
		Risk:         risk,
		Grounding:    grounding,
		AnswerLength: utf8.RuneCountInString(req.Answer),
		HasCitation:  snap.patterns.Any(patterns.CategoryCitation, req.Answer),
		Hedges:       len(snap.patterns.Hits(patterns.CategoryUncertainty, req.Answer)),
	})

	if !finite(risk, grounding, confidence) {
		return nil, fmt.Errorf("%w: non-finite score (risk=%v grounding=%v confidence=%v)",
			ErrInvariant, risk, grounding, confidence)
	}

	level := snap.classifier.Classify(confidence, findings)
	return snap.result(req, findings, risk, grounding, confidence, level), nil
}

func (snap *snapshot) result(req *ValidationRequest, findings []Finding, risk, grounding, confidence float64, level QualityLevel) *ValidationResult {
	warnings := make([]string, len(findings))
	for i, f := range findings {
		warnings[i] = f.Message
	}
	if findings == nil {
		findings = []Finding{}
	}
	suggestions := suggestionsFor(findings)
	if suggestions == nil {
		suggestions = []string{}
	}
	return &ValidationResult{
		ConfidenceScore: confidence,
		RiskScore:       risk,
		GroundingRatio:  grounding,
		QualityLevel:    level,
		Warnings:        warnings,
		Findings:        findings,
		Suggestions:     suggestions,
		EnhancedAnswer:  snap.enhancer.Enhance(req.Answer, level),
		Passed:          len(findings) == 0,
		ConfigVersion:   snap.version,
	}
}

// Statistics returns a snapshot of the running statistics.
func (s *System) Statistics() StatsSnapshot {
	return s.stats.Snapshot()
}

// ResetStatistics zeroes the running statistics.
func (s *System) ResetStatistics() {
	s.stats.Reset()
	s.logger.Info("guardrail statistics reset")
}

// Reconfigure validates and applies an update.
//
// The update is checked in full before anything changes. On failure the
// active configuration is untouched and in-flight or later validations keep
// using it.
//
// Outputs:
//
//	uint64 - The active version after the call.
//	error - ErrInvalidConfig (wrapped) if the update was rejected.
func (s *System) Reconfigure(u Update) (uint64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current.Load()
	config := cur.config
	if u.Config != nil {
		config = *u.Config
	}
	if u.Thresholds != nil {
		config.Thresholds = *u.Thresholds
	}
	if u.EditThresholds != nil {
		config.Thresholds = u.EditThresholds(config.Thresholds)
	}
	set := cur.patterns
	if u.Patterns != nil {
		set = u.Patterns
	}

	if err := config.Validate(); err != nil {
		recordReconfiguration(context.Background(), err)
		s.logger.Warn("guardrail reconfiguration rejected",
			slog.String("error", err.Error()),
			slog.Uint64("config_version", cur.version),
		)
		return cur.version, err
	}

	next := newSnapshot(cur.version+1, config, set)
	s.current.Store(next)
	recordReconfiguration(context.Background(), nil)

	s.logger.Info("guardrail reconfigured",
		slog.Uint64("config_version", next.version),
		slog.String("fingerprint", next.fingerprint),
		slog.Int("patterns", set.Len()),
	)
	return next.version, nil
}

// Snapshot describes the active configuration.
func (s *System) Snapshot() ConfigSnapshot {
	snap := s.current.Load()
	return ConfigSnapshot{
		Version:     snap.version,
		Fingerprint: snap.fingerprint,
		Config:      snap.config,
		Patterns:    snap.patterns.Specs(),
	}
}

// Patterns returns the active pattern set.
func (s *System) Patterns() *patterns.Set {
	return s.current.Load().patterns
}

// Fingerprint hashes the canonical JSON of a configuration. Matcher ids are
// included so sets built from custom matchers still fingerprint distinctly.
func Fingerprint(config Config, set *patterns.Set) string {
	ids := make(map[patterns.Category][]string, len(patterns.Categories))
	for _, c := range patterns.Categories {
		for _, m := range set.Matchers(c) {
			ids[c] = append(ids[c], m.ID())
		}
	}
	payload := struct {
		Config   Config                         `json:"config"`
		Patterns []patterns.Spec                `json:"patterns"`
		Matchers map[patterns.Category][]string `json:"matchers"`
	}{config, set.Specs(), ids}

	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(b))
}
