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

// Remediation hints.
const (
	suggestAttribution = "Add source attribution to claims"
	suggestCaution     = "Use more cautious language when uncertain"
	suggestReframe     = "Reframe response to be more professional and appropriate"
	suggestFocus       = "Focus on answering the specific question asked"
	suggestSplit       = "Consider breaking into smaller, more digestible parts"
	suggestDetail      = "Provide more detailed information if available"
	suggestRegenerate  = "Regenerate the answer from the provided documents"
)

// suggestionsFor returns the remediation hints for findings, deduplicated,
// in the order their findings appear.
func suggestionsFor(findings []Finding) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(ss ...string) {
		for _, s := range ss {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	for _, f := range findings {
		switch f.Kind {
		case KindHallucinationPattern, KindGrounding, KindOverconfidence:
			add(suggestAttribution, suggestCaution)
		case KindContent:
			add(suggestReframe)
		case KindOffTopic:
			add(suggestFocus)
		case KindLength:
			if f.Code == codeTooLong {
				add(suggestSplit)
			} else {
				add(suggestDetail)
			}
		case KindEmptyAnswer:
			add(suggestRegenerate)
		}
	}
	return out
}
