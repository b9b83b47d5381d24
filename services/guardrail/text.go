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

// stopwords carry no information about where an answer came from.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"if": true, "then": true, "so": true, "of": true, "to": true, "in": true,
	"on": true, "at": true, "by": true, "for": true, "with": true, "from": true,
	"as": true, "into": true, "about": true, "over": true, "under": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"being": true, "am": true, "do": true, "does": true, "did": true,
	"has": true, "have": true, "had": true, "will": true, "would": true,
	"shall": true, "should": true, "can": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "they": true,
	"them": true, "their": true, "there": true, "here": true, "he": true,
	"she": true, "his": true, "her": true, "we": true, "our": true, "you": true,
	"your": true, "i": true, "me": true, "my": true, "not": true, "no": true,
	"yes": true, "also": true, "than": true, "which": true, "who": true,
	"what": true, "when": true, "where": true, "how": true, "why": true,
	"all": true, "any": true, "some": true, "such": true, "just": true,
	"only": true, "very": true, "more": true, "most": true,
}

// informativeWords returns the set of non-stopword tokens in text.
func informativeWords(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range patterns.Words(text) {
		if !stopwords[w] {
			set[w] = struct{}{}
		}
	}
	return set
}

// wordSet returns the set of all tokens in text.
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range patterns.Words(text) {
		set[w] = struct{}{}
	}
	return set
}

// sharedCount returns how many members of a are also in b.
func sharedCount(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

// phraseCover marks the answer words that sit inside a run of at least n
// consecutive words shared with some snippet. Answers shorter than n are
// matched whole.
//
// Outputs:
//
//	covered - One flag per answer word.
//	best - The most answer words covered by any single snippet.
func phraseCover(words []string, ctx SourceContext, n int) (covered []bool, best int) {
	if len(words) == 0 {
		return nil, 0
	}
	n = max(min(n, len(words)), 1)

	starts := make(map[string][]int, len(words))
	for i := 0; i+n <= len(words); i++ {
		key := strings.Join(words[i:i+n], " ")
		starts[key] = append(starts[key], i)
	}

	covered = make([]bool, len(words))
	// owner and seen hold the 1-based index of the last snippet to touch a
	// word or phrase, so per-snippet counts need no reset between snippets.
	owner := make([]int, len(words))
	seen := make(map[string]int, len(starts))
	for si, s := range ctx {
		stamp := si + 1
		own := 0
		sw := patterns.Words(s.Text)
		for i := 0; i+n <= len(sw); i++ {
			key := strings.Join(sw[i:i+n], " ")
			pos, ok := starts[key]
			if !ok || seen[key] == stamp {
				continue
			}
			seen[key] = stamp
			for _, p := range pos {
				for j := p; j < p+n; j++ {
					covered[j] = true
					if owner[j] != stamp {
						owner[j] = stamp
						own++
					}
				}
			}
		}
		best = max(best, own)
	}
	return covered, best
}
