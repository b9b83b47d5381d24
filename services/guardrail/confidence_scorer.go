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

// ConfidenceInputs are the signals the confidence score is built from.
type ConfidenceInputs struct {
	// Risk is the hallucination risk in [0,1].
	Risk float64

	// Grounding is the grounding ratio in [0,1].
	Grounding float64

	// AnswerLength is the answer length in characters.
	AnswerLength int

	// HasCitation is true when the answer carries a citation marker.
	HasCitation bool

	// Hedges is the number of uncertainty markers in the answer.
	Hedges int
}

// ConfidenceScorer folds the validation signals into one score.
//
//	confidence = Base - RiskWeight*risk + GroundingWeight*grounding
//	           + CitationBonus (if cited)
//	           - LengthPenalty (if length outside the band)
//	           - HedgePenalty*min(hedges, MaxHedges)
//
// clamped to [0,1]. With non-negative weights the score never falls as
// grounding rises and never rises as risk rises.
//
// Thread Safety: Safe for concurrent use. Immutable after construction.
type ConfidenceScorer struct {
	config ConfidenceConfig
	length LengthBand
}

// NewConfidenceScorer creates a confidence scorer.
func NewConfidenceScorer(config ConfidenceConfig, length LengthBand) *ConfidenceScorer {
	return &ConfidenceScorer{config: config, length: length}
}

// Score returns the confidence in [0,1].
func (c *ConfidenceScorer) Score(in ConfidenceInputs) float64 {
	cfg := c.config
	score := cfg.Base - cfg.RiskWeight*clamp01(in.Risk) + cfg.GroundingWeight*clamp01(in.Grounding)
	if in.HasCitation {
		score += cfg.CitationBonus
	}
	if !c.length.Contains(in.AnswerLength) {
		score -= cfg.LengthPenalty
	}
	hedges := min(max(in.Hedges, 0), cfg.MaxHedges)
	score -= cfg.HedgePenalty * float64(hedges)
	return clamp01(score)
}
