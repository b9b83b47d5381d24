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
	"strings"

	"github.com/AleutianAI/AleutianGuard/services/guardrail/patterns"
)

// Detector warning texts.
const (
	hallucinationPatternPrefix = "Potential hallucination pattern detected: "
	lowOverlapWarning          = "Response may contain information not found in provided context"
	overconfidenceWarning      = "Response uses overly confident language without proper source attribution"
)

// HallucinationDetector scores how likely an answer is to contain content
// the context does not support.
//
// Risk comes from three sources, combined by saturating accumulation so that
// no number of matches can push the score past 1:
//
//   - every hallucination pattern that fires on the answer's own wording,
//     at its own weight; text quoted from the context is not checked
//   - low lexical overlap between the answer and the context
//   - confident assertions with no citation marker anywhere in the answer
//
// Thread Safety: Safe for concurrent use. Immutable after construction.
type HallucinationDetector struct {
	config   DetectorConfig
	patterns *patterns.Set
}

// NewHallucinationDetector creates a detector over a pattern set.
func NewHallucinationDetector(config DetectorConfig, set *patterns.Set) *HallucinationDetector {
	return &HallucinationDetector{config: config, patterns: set}
}

// Detect scores one answer.
//
// Inputs:
//
//	answer - The generated answer.
//	ctx - The passages the answer was generated from.
//
// Outputs:
//
//	float64 - Risk in [0,1].
//	[]Finding - One finding per contribution, in detection order.
func (d *HallucinationDetector) Detect(answer string, ctx SourceContext) (float64, []Finding) {
	var (
		risk     float64
		findings []Finding
	)

	own := d.unquoted(answer, ctx)
	for _, m := range d.patterns.Matchers(patterns.CategoryHallucination) {
		hit := m.Test(answer)
		if !hit.Matched {
			continue
		}
		// Phrasing that only occurs inside text quoted from the context is
		// the source's wording, not the answer's.
		if own != answer && !m.Test(own).Matched {
			continue
		}
		risk = accumulate(risk, hit.Weight)
		findings = append(findings, Finding{
			Kind:    KindHallucinationPattern,
			Code:    m.ID(),
			Message: hallucinationPatternPrefix + m.ID(),
			Weight:  hit.Weight,
		})
	}

	if !d.overlaps(answer, ctx) {
		risk = accumulate(risk, d.config.OverlapPenalty)
		findings = append(findings, Finding{
			Kind:    KindGrounding,
			Code:    "low_context_overlap",
			Message: lowOverlapWarning,
			Weight:  d.config.OverlapPenalty,
		})
	}

	if w := d.assertionWeight(answer); w > 0 && !d.patterns.Any(patterns.CategoryCitation, answer) {
		penalty := d.config.OverconfidencePenalty * w
		risk = accumulate(risk, penalty)
		findings = append(findings, Finding{
			Kind:    KindOverconfidence,
			Code:    "uncited_assertion",
			Message: overconfidenceWarning,
			Weight:  penalty,
		})
	}

	return clamp01(risk), findings
}

// unquoted returns the answer with every word that sits inside a phrase
// shared with the context blanked out. Line breaks and unquoted text keep
// their positions.
func (d *HallucinationDetector) unquoted(answer string, ctx SourceContext) string {
	if len(ctx) == 0 {
		return answer
	}
	spans := patterns.WordSpans(answer)
	words := make([]string, len(spans))
	for i, sp := range spans {
		words[i] = strings.ToLower(answer[sp[0]:sp[1]])
	}
	covered, best := phraseCover(words, ctx, d.config.QuotedPhraseWords)
	if best == 0 {
		return answer
	}
	b := []byte(answer)
	for i, ok := range covered {
		if !ok {
			continue
		}
		for j := spans[i][0]; j < spans[i][1]; j++ {
			b[j] = ' '
		}
	}
	return string(b)
}

// overlaps reports whether enough of the answer's informative words appear
// in the context. An empty context never overlaps. An answer with no
// informative words cannot be judged and passes.
func (d *HallucinationDetector) overlaps(answer string, ctx SourceContext) bool {
	joined := ctx.Joined()
	if strings.TrimSpace(joined) == "" {
		return false
	}
	words := informativeWords(answer)
	if len(words) == 0 {
		return true
	}
	ratio := float64(sharedCount(words, informativeWords(joined))) / float64(len(words))
	return ratio >= d.config.OverlapFloor
}

// assertionWeight returns the heaviest assertion match, 0 when none fire.
func (d *HallucinationDetector) assertionWeight(answer string) float64 {
	var w float64
	for _, hit := range d.patterns.Hits(patterns.CategoryAssertion, answer) {
		w = max(w, hit.Weight)
	}
	return w
}

// accumulate combines independent risk contributions: 1-(1-r)(1-w).
// The result stays in [0,1] for inputs in [0,1].
func accumulate(risk, w float64) float64 {
	return 1 - (1-risk)*(1-clamp01(w))
}
