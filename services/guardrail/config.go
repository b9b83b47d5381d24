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
	"errors"
	"fmt"
	"math"
)

// Config holds every engine tunable. The numeric defaults reproduce the
// heuristics the engine was built around; none of them is load-bearing and
// deployments are expected to tune them.
//
// Config is a value type. The engine stores a private copy, so callers may
// reuse or modify a Config after passing it in.
type Config struct {
	Detector    DetectorConfig   `json:"detector" yaml:"detector"`
	Grounding   GroundingConfig  `json:"grounding" yaml:"grounding"`
	Confidence  ConfidenceConfig `json:"confidence" yaml:"confidence"`
	Content     ContentConfig    `json:"content" yaml:"content"`
	Length      LengthBand       `json:"length" yaml:"length"`
	Thresholds  Thresholds       `json:"thresholds" yaml:"thresholds"`
	Disclaimers Disclaimers      `json:"disclaimers" yaml:"disclaimers"`
}

// DetectorConfig configures the hallucination detector.
type DetectorConfig struct {
	// OverlapFloor is the minimum share of the answer's informative words
	// that must also appear in the context.
	OverlapFloor float64 `json:"overlap_floor" yaml:"overlap_floor"`

	// OverlapPenalty is added to the risk when the overlap is below the floor.
	OverlapPenalty float64 `json:"overlap_penalty" yaml:"overlap_penalty"`

	// OverconfidencePenalty is added to the risk when the answer asserts
	// without citing.
	OverconfidencePenalty float64 `json:"overconfidence_penalty" yaml:"overconfidence_penalty"`

	// QuotedPhraseWords is the shortest word run shared with a snippet that
	// counts as quoted. Quoted text is not checked for hallucination phrasing.
	QuotedPhraseWords int `json:"quoted_phrase_words" yaml:"quoted_phrase_words"`
}

// GroundingConfig configures the grounding scorer.
type GroundingConfig struct {
	// MinPhraseWords is the length of the shortest shared word run that
	// counts as a significant phrase.
	MinPhraseWords int `json:"min_phrase_words" yaml:"min_phrase_words"`

	// SnippetWeight balances best-snippet support against answer coverage.
	// 1 scores only the share of the answer the single best snippet covers;
	// 0 scores only the share covered by all snippets together.
	SnippetWeight float64 `json:"snippet_weight" yaml:"snippet_weight"`
}

// ConfidenceConfig configures the confidence scorer.
type ConfidenceConfig struct {
	Base            float64 `json:"base" yaml:"base"`
	RiskWeight      float64 `json:"risk_weight" yaml:"risk_weight"`
	GroundingWeight float64 `json:"grounding_weight" yaml:"grounding_weight"`
	CitationBonus   float64 `json:"citation_bonus" yaml:"citation_bonus"`
	LengthPenalty   float64 `json:"length_penalty" yaml:"length_penalty"`
	HedgePenalty    float64 `json:"hedge_penalty" yaml:"hedge_penalty"`

	// MaxHedges caps how many hedges are penalized.
	MaxHedges int `json:"max_hedges" yaml:"max_hedges"`
}

// ContentConfig configures the content screen.
type ContentConfig struct {
	// MinQuestionOverlap is the number of words the answer must share with a
	// non-empty question before it is considered on topic. 0 disables the
	// check.
	MinQuestionOverlap int `json:"min_question_overlap" yaml:"min_question_overlap"`
}

// LengthBand is the acceptable answer length in characters.
type LengthBand struct {
	MinChars int `json:"min_chars" yaml:"min_chars"`
	MaxChars int `json:"max_chars" yaml:"max_chars"`
}

// Contains reports whether n lies inside the band, bounds inclusive.
func (b LengthBand) Contains(n int) bool {
	return n >= b.MinChars && n <= b.MaxChars
}

// Thresholds is the quality classification table. See QualityClassifier for
// how it is applied.
type Thresholds struct {
	// LowFloor is the lowest confidence classified above hallucination_risk.
	LowFloor float64 `json:"low_floor" yaml:"low_floor"`

	// MediumFloor is the lowest confidence classified as medium.
	MediumFloor float64 `json:"medium_floor" yaml:"medium_floor"`

	// HighFloor is the lowest confidence classified as high.
	HighFloor float64 `json:"high_floor" yaml:"high_floor"`

	// MaxMediumWarnings is the most warnings a medium answer may carry.
	MaxMediumWarnings int `json:"max_medium_warnings" yaml:"max_medium_warnings"`

	// PatternOverride is the level forced by a hallucination pattern or an
	// empty answer. Either low or hallucination_risk.
	PatternOverride QualityLevel `json:"pattern_override" yaml:"pattern_override"`
}

// Disclaimers are the texts attached by the response enhancer.
type Disclaimers struct {
	MediumNotice string `json:"medium_notice" yaml:"medium_notice"`
	LowNotice    string `json:"low_notice" yaml:"low_notice"`
	RiskWarning  string `json:"risk_warning" yaml:"risk_warning"`
}

// Default disclaimer texts.
const (
	DefaultMediumNotice = "*Note: This response is generally reliable, but cross-check it before relying on it for critical decisions.*"
	DefaultLowNotice    = "*Low confidence: This response could not be fully verified against the provided documents. Please verify important details.*"
	DefaultRiskWarning  = "**Warning:** This response may contain inaccurate or unverified information that is not supported by the provided documents."
)

// DefaultConfig returns a config with the stock heuristics.
func DefaultConfig() Config {
	return Config{
		Detector: DetectorConfig{
			OverlapFloor:          0.3,
			OverlapPenalty:        0.3,
			OverconfidencePenalty: 0.2,
			QuotedPhraseWords:     3,
		},
		Grounding: GroundingConfig{
			MinPhraseWords: 3,
			SnippetWeight:  0.5,
		},
		Confidence: ConfidenceConfig{
			Base:            0.5,
			RiskWeight:      0.5,
			GroundingWeight: 0.4,
			CitationBonus:   0.1,
			LengthPenalty:   0.1,
			HedgePenalty:    0.05,
			MaxHedges:       4,
		},
		Content: ContentConfig{
			MinQuestionOverlap: 2,
		},
		Length: LengthBand{
			MinChars: 50,
			MaxChars: 2000,
		},
		Thresholds: DefaultThresholds(),
		Disclaimers: Disclaimers{
			MediumNotice: DefaultMediumNotice,
			LowNotice:    DefaultLowNotice,
			RiskWarning:  DefaultRiskWarning,
		},
	}
}

// DefaultThresholds returns the stock classification table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowFloor:          0.4,
		MediumFloor:       0.6,
		HighFloor:         0.8,
		MaxMediumWarnings: 1,
		PatternOverride:   QualityHallucinationRisk,
	}
}

// Validate checks the config for values the engine cannot use.
//
// Outputs:
//
//	error - ErrInvalidConfig wrapping every problem found, nil if valid.
func (c Config) Validate() error {
	var errs []error

	unit := func(name string, v float64) {
		if !inUnit(v) {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", name, v))
		}
	}

	unit("detector.overlap_floor", c.Detector.OverlapFloor)
	unit("detector.overlap_penalty", c.Detector.OverlapPenalty)
	unit("detector.overconfidence_penalty", c.Detector.OverconfidencePenalty)
	if c.Detector.QuotedPhraseWords < 1 {
		errs = append(errs, fmt.Errorf("detector.quoted_phrase_words must be at least 1, got %d", c.Detector.QuotedPhraseWords))
	}

	if c.Grounding.MinPhraseWords < 1 {
		errs = append(errs, fmt.Errorf("grounding.min_phrase_words must be at least 1, got %d", c.Grounding.MinPhraseWords))
	}
	unit("grounding.snippet_weight", c.Grounding.SnippetWeight)

	unit("confidence.base", c.Confidence.Base)
	unit("confidence.risk_weight", c.Confidence.RiskWeight)
	unit("confidence.grounding_weight", c.Confidence.GroundingWeight)
	unit("confidence.citation_bonus", c.Confidence.CitationBonus)
	unit("confidence.length_penalty", c.Confidence.LengthPenalty)
	unit("confidence.hedge_penalty", c.Confidence.HedgePenalty)
	if c.Confidence.MaxHedges < 0 {
		errs = append(errs, fmt.Errorf("confidence.max_hedges must not be negative, got %d", c.Confidence.MaxHedges))
	}

	if c.Content.MinQuestionOverlap < 0 {
		errs = append(errs, fmt.Errorf("content.min_question_overlap must not be negative, got %d", c.Content.MinQuestionOverlap))
	}

	if c.Length.MinChars < 0 || c.Length.MaxChars < c.Length.MinChars {
		errs = append(errs, fmt.Errorf("length band [%d,%d] is empty or negative", c.Length.MinChars, c.Length.MaxChars))
	}

	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Disclaimers.MediumNotice == "" || c.Disclaimers.LowNotice == "" || c.Disclaimers.RiskWarning == "" {
		errs = append(errs, errors.New("disclaimers must not be empty"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks that the floors are strictly increasing inside (0,1], so
// they partition [0,1] with no gaps or overlaps.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.LowFloor, t.MediumFloor, t.HighFloor} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: thresholds must be finite", ErrInvalidConfig)
		}
	}
	if !(0 < t.LowFloor && t.LowFloor < t.MediumFloor && t.MediumFloor < t.HighFloor && t.HighFloor <= 1) {
		return fmt.Errorf("%w: thresholds must satisfy 0 < low (%v) < medium (%v) < high (%v) <= 1",
			ErrInvalidConfig, t.LowFloor, t.MediumFloor, t.HighFloor)
	}
	if t.MaxMediumWarnings < 0 {
		return fmt.Errorf("%w: max_medium_warnings must not be negative, got %d", ErrInvalidConfig, t.MaxMediumWarnings)
	}
	if t.PatternOverride != QualityLow && t.PatternOverride != QualityHallucinationRisk {
		return fmt.Errorf("%w: pattern_override must be %q or %q, got %q",
			ErrInvalidConfig, QualityLow, QualityHallucinationRisk, t.PatternOverride)
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
