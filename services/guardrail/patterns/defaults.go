// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

// attributionExempt suppresses absolute or unsourced phrasing that is
// followed on the same line by an explicit attribution.
const attributionExempt = `\b(according to|based on|from the document)\b`

// DefaultSpecs returns the built-in pattern library.
//
// Weights are illustrative defaults. Deployments tune them through the
// configuration file rather than code.
func DefaultSpecs() []Spec {
	return []Spec{
		// Hallucination-indicating phrasing.
		{
			ID:       "contradicted_attribution",
			Category: CategoryHallucination,
			Pattern:  `\b(according to|based on|studies show|research indicates)\b.*\b(but|however|although)\b`,
			Weight:   0.25,
			Message:  "Attribution is immediately qualified or contradicted",
		},
		{
			ID:       "unattributed_authority",
			Category: CategoryHallucination,
			Pattern:  `\b(experts say|scientists believe|studies prove)\b`,
			Exempt:   attributionExempt,
			Weight:   0.35,
			Message:  "Appeals to unnamed experts or studies",
		},
		{
			ID:       "absolute_certainty",
			Category: CategoryHallucination,
			Pattern:  `\b(guaranteed|certain|definitely|absolutely)\b`,
			Exempt:   attributionExempt,
			Weight:   0.3,
			Message:  "Claims certainty without attribution",
		},
		{
			ID:       "unsupported_proof",
			Category: CategoryHallucination,
			Pattern:  `\b(proven|established|confirmed)\b`,
			Exempt:   attributionExempt,
			Weight:   0.25,
			Message:  "Claims proof without attribution",
		},
		{
			ID:       "unsourced_statistics",
			Category: CategoryHallucination,
			Pattern:  `\b(statistics|data shows|figures indicate)\b`,
			Exempt:   attributionExempt,
			Weight:   0.3,
			Message:  "Cites statistics without a source",
		},
		{
			ID:       "broad_generalization",
			Category: CategoryHallucination,
			Pattern:  `\b(typically|usually|generally|commonly)\b`,
			Exempt:   attributionExempt,
			Weight:   0.15,
			Message:  "Generalizes beyond the source material",
		},

		// Hedging.
		{ID: "modal_hedge", Category: CategoryUncertainty, Pattern: `\b(may|might|could)\b`, Weight: 1},
		{ID: "speculative_hedge", Category: CategoryUncertainty, Pattern: `\b(possibly|perhaps|maybe|potentially)\b`, Weight: 1},
		{ID: "inferential_hedge", Category: CategoryUncertainty, Pattern: `\b(likely|probably|appears|seems)\b`, Weight: 1},
		{ID: "explicit_unknown", Category: CategoryUncertainty, Pattern: `\b(uncertain|unclear|unknown)\b`, Weight: 1},
		{ID: "missing_information", Category: CategoryUncertainty, Pattern: `\bnot (specified|mentioned|clear)\b`, Weight: 1},

		// Inappropriate content.
		{
			ID:       "unlawful_or_dangerous",
			Category: CategoryInappropriate,
			Keywords: []string{"illegal", "unlawful", "harmful", "dangerous"},
			Weight:   1,
			Message:  "Mentions unlawful or dangerous activity",
		},
		{
			ID:       "hateful",
			Category: CategoryInappropriate,
			Keywords: []string{"hate", "discrimination", "prejudice"},
			Weight:   1,
			Message:  "Contains hateful or discriminatory language",
		},
		{
			ID:       "violent",
			Category: CategoryInappropriate,
			Keywords: []string{"violence", "threat", "harm"},
			Weight:   1,
			Message:  "Contains violent or threatening language",
		},
		{
			ID:       "professional_advice",
			Category: CategoryInappropriate,
			Pattern:  `\b(medical advice|legal advice|financial advice)\b`,
			Exempt:   `\b(consult|professional|expert)`,
			Weight:   1,
			Message:  "Gives professional advice without referring to a professional",
		},

		// Off-topic drift.
		{
			ID:       "private_matters",
			Category: CategoryOffTopic,
			Keywords: []string{"personal", "private", "confidential"},
			Weight:   1,
			Message:  "Strays into personal or confidential matters",
		},
		{
			ID:       "opinion",
			Category: CategoryOffTopic,
			Pattern:  `\b(opinion|belief|feeling)\b`,
			Exempt:   `\b(according to|based on)\b`,
			Weight:   1,
			Message:  "Offers opinion instead of sourced information",
		},
		{
			ID:       "directive",
			Category: CategoryOffTopic,
			Pattern:  `\b(you should|you must|you need to)\b`,
			Weight:   1,
			Message:  "Directs the reader instead of answering",
		},

		// Confident assertions, checked against citation markers.
		{ID: "universal_quantifier", Category: CategoryAssertion, Pattern: `\b(always|never|all|every|none)\b`, Exempt: attributionExempt, Weight: 1},
		{ID: "certainty_claim", Category: CategoryAssertion, Pattern: `\b(guaranteed|certain|definitely|absolutely)\b`, Exempt: attributionExempt, Weight: 1},
		{ID: "proof_claim", Category: CategoryAssertion, Pattern: `\b(proven|established|confirmed)\b`, Exempt: attributionExempt, Weight: 1},

		// Citation markers.
		{ID: "attribution_phrase", Category: CategoryCitation, Pattern: `\b(according to|based on|from the document|as stated in)\b`, Weight: 1},
		{ID: "source_reference", Category: CategoryCitation, Pattern: `\bthe (document|source|text|passage)s?\b`, Weight: 1},
		{ID: "numbered_reference", Category: CategoryCitation, Pattern: `\[\d+\]`, Weight: 1},
		{ID: "inline_source", Category: CategoryCitation, Pattern: `\(source:[^)]*\)`, Weight: 1},
	}
}

// Default compiles DefaultSpecs. It panics only if the built-in library is
// broken, which the package tests guard against.
func Default() *Set {
	set, err := Compile(DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return set
}
