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

import "github.com/AleutianAI/AleutianGuard/services/guardrail/patterns"

// GroundingScorer measures how much of an answer is traceable to the
// context, using shared runs of consecutive words ("phrases").
//
// Two ratios are combined:
//
//	support  = answer words covered by the best single snippet / all answer words
//	coverage = answer words covered by any snippet / all answer words
//
// Both count covered words, so long verbatim runs outweigh scattered short
// matches, and snippets that share nothing with the answer do not dilute
// the score. Both are monotone in the context: adding a snippet can only
// raise the best snippet and the union, and a snippet that shares no phrase
// changes neither.
//
// Cost is linear in answer and context length: answer phrases go into a
// hash map once and each snippet is streamed against it.
//
// Thread Safety: Safe for concurrent use. Immutable after construction.
type GroundingScorer struct {
	config GroundingConfig
}

// NewGroundingScorer creates a grounding scorer.
func NewGroundingScorer(config GroundingConfig) *GroundingScorer {
	return &GroundingScorer{config: config}
}

// Score returns the grounding ratio in [0,1]. An empty context scores 0.
func (g *GroundingScorer) Score(answer string, ctx SourceContext) float64 {
	if len(ctx) == 0 {
		return 0
	}
	words := patterns.Words(answer)
	if len(words) == 0 {
		return 0
	}

	covered, best := phraseCover(words, ctx, g.config.MinPhraseWords)
	c := 0
	for _, ok := range covered {
		if ok {
			c++
		}
	}

	support := float64(best) / float64(len(words))
	coverage := float64(c) / float64(len(words))
	w := g.config.SnippetWeight
	return clamp01(w*support + (1-w)*coverage)
}
