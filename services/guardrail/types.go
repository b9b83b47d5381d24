// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guardrail validates generated answers against the source passages
// they were generated from.
//
// The engine scores one (question, answer, context) triple and returns a
// confidence score, a discrete quality level, warnings and suggestions, and
// the final user-facing text with any disclaimer attached. It performs no
// I/O: retrieval and generation happen before Validate is called.
//
// # Pipeline
//
//	ContentScreen -> HallucinationDetector -> GroundingScorer
//	    -> ConfidenceScorer -> QualityClassifier -> ResponseEnhancer
//
// # Thread Safety
//
// System is safe for concurrent use. Each Validate call reads one immutable
// configuration snapshot; Reconfigure swaps snapshots atomically.
package guardrail

// QualityLevel is the discrete trust classification of an answer.
type QualityLevel string

const (
	// QualityHigh means the answer is well grounded and needs no caveat.
	QualityHigh QualityLevel = "high"

	// QualityMedium means the answer is generally reliable.
	QualityMedium QualityLevel = "medium"

	// QualityLow means confidence is limited and verification is advised.
	QualityLow QualityLevel = "low"

	// QualityHallucinationRisk means the answer may contain fabricated or
	// unverified content.
	QualityHallucinationRisk QualityLevel = "hallucination_risk"
)

// QualityLevels lists all levels from most to least trusted.
var QualityLevels = []QualityLevel{
	QualityHigh,
	QualityMedium,
	QualityLow,
	QualityHallucinationRisk,
}

// String implements fmt.Stringer.
func (q QualityLevel) String() string { return string(q) }

// Valid reports whether q is one of the four defined levels.
func (q QualityLevel) Valid() bool {
	return q.Rank() >= 0
}

// Rank orders levels by trust: 0 for high through 3 for hallucination_risk.
// Unknown levels rank -1.
func (q QualityLevel) Rank() int {
	for i, l := range QualityLevels {
		if l == q {
			return i
		}
	}
	return -1
}

// Snippet is one retrieved passage.
type Snippet struct {
	// Source identifies the document the passage came from.
	Source string `json:"source"`

	// Text is the raw passage text.
	Text string `json:"text"`
}

// SourceContext is the ordered list of passages the answer was generated
// from. The engine never modifies it.
type SourceContext []Snippet

// Joined returns the concatenated passage text.
func (c SourceContext) Joined() string {
	n := 0
	for _, s := range c {
		n += len(s.Text) + 2
	}
	buf := make([]byte, 0, n)
	for i, s := range c {
		if i > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}

// ValidationRequest is one answer to validate.
type ValidationRequest struct {
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Context  SourceContext `json:"context"`
}

// WarningKind classifies a finding.
type WarningKind string

const (
	// KindHallucinationPattern is a match against the hallucination pattern
	// set. It forces the classifier override.
	KindHallucinationPattern WarningKind = "hallucination_pattern"

	// KindGrounding is low lexical overlap with the context.
	KindGrounding WarningKind = "grounding"

	// KindOverconfidence is confident phrasing without a citation.
	KindOverconfidence WarningKind = "overconfidence"

	// KindContent is inappropriate content.
	KindContent WarningKind = "content"

	// KindOffTopic is drift away from the question.
	KindOffTopic WarningKind = "off_topic"

	// KindLength is an answer that is too short or too long.
	KindLength WarningKind = "length"

	// KindEmptyAnswer means no answer was generated. It forces the
	// classifier override.
	KindEmptyAnswer WarningKind = "empty_answer"
)

// Overrides reports whether a finding of this kind forces the classifier
// override regardless of score.
func (k WarningKind) Overrides() bool {
	return k == KindHallucinationPattern || k == KindEmptyAnswer
}

// Finding is the structured form of a warning.
type Finding struct {
	// Kind classifies the finding.
	Kind WarningKind `json:"kind"`

	// Code is a machine-readable identifier, e.g. the pattern id.
	Code string `json:"code"`

	// Message is the user-facing warning text.
	Message string `json:"message"`

	// Weight is the contribution to the risk score, 0 when none.
	Weight float64 `json:"weight,omitempty"`
}

// ValidationResult is the outcome of one validation.
type ValidationResult struct {
	// ConfidenceScore is the final confidence in [0,1].
	ConfidenceScore float64 `json:"confidence_score"`

	// RiskScore is the hallucination risk in [0,1].
	RiskScore float64 `json:"risk_score"`

	// GroundingRatio is how much of the answer is traceable to the context,
	// in [0,1].
	GroundingRatio float64 `json:"grounding_ratio"`

	// QualityLevel is the discrete classification.
	QualityLevel QualityLevel `json:"quality_level"`

	// Warnings are the warning texts in detection order.
	Warnings []string `json:"warnings"`

	// Findings carry the same warnings with kind and code.
	Findings []Finding `json:"findings"`

	// Suggestions are remediation hints, deduplicated, in detection order.
	Suggestions []string `json:"suggestions"`

	// EnhancedAnswer is the answer with any disclaimer attached.
	EnhancedAnswer string `json:"enhanced_answer"`

	// Passed is true when no warning was raised.
	Passed bool `json:"passed"`

	// ConfigVersion is the configuration snapshot used for this result.
	ConfigVersion uint64 `json:"config_version"`
}

// HasHallucinationPattern reports whether any finding forces the override.
func HasHallucinationPattern(findings []Finding) bool {
	for _, f := range findings {
		if f.Kind.Overrides() {
			return true
		}
	}
	return false
}
