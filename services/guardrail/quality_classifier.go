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

// QualityClassifier maps a confidence score and its findings to a level.
//
// Rules are evaluated top-down and the first that applies wins:
//
//  1. any hallucination_pattern or empty_answer finding: PatternOverride
//     (hallucination_risk by default, low at most)
//  2. confidence < LowFloor: hallucination_risk
//  3. confidence >= HighFloor: high
//  4. confidence >= MediumFloor and findings <= MaxMediumWarnings: medium
//  5. otherwise: low
//
// The override beats the score table, so an answer with a hallucination
// pattern is never classified high or medium. Every input maps to exactly
// one level.
//
// Thread Safety: Safe for concurrent use. Immutable after construction.
type QualityClassifier struct {
	thresholds Thresholds
}

// NewQualityClassifier creates a classifier over a threshold table.
func NewQualityClassifier(thresholds Thresholds) *QualityClassifier {
	return &QualityClassifier{thresholds: thresholds}
}

// Classify returns the quality level.
func (q *QualityClassifier) Classify(confidence float64, findings []Finding) QualityLevel {
	t := q.thresholds
	switch {
	case HasHallucinationPattern(findings):
		if t.PatternOverride == QualityLow {
			return QualityLow
		}
		return QualityHallucinationRisk
	case !(confidence >= t.LowFloor):
		return QualityHallucinationRisk
	case confidence >= t.HighFloor:
		return QualityHigh
	case confidence >= t.MediumFloor && len(findings) <= t.MaxMediumWarnings:
		return QualityMedium
	default:
		return QualityLow
	}
}
