// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patterns holds the text matchers the guardrail engine runs against
// generated answers.
//
// A Set groups matchers by Category. Matchers are built from declarative
// Spec values (so they can live in a YAML file and be swapped at runtime) or
// supplied directly through the Matcher interface when a caller wants a
// different matching technology.
//
// # Thread Safety
//
// Matchers and Sets are immutable after construction and safe for
// concurrent use.
package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// Match is the outcome of testing one matcher against a text.
type Match struct {
	// Matched is true when the rule fired.
	Matched bool

	// Weight is the matcher's severity weight in [0,1]. Zero when not matched.
	Weight float64

	// Message is the human-readable description of what fired.
	Message string
}

// Matcher tests a text for one rule.
//
// Implementations must be deterministic and safe for concurrent use.
type Matcher interface {
	// ID returns the stable identifier of the rule.
	ID() string

	// Test reports whether the rule fires on text.
	Test(text string) Match
}

// wordPattern splits text into word tokens. Letters, digits and underscore,
// matching \w in the heuristics the patterns were written for.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Words returns the lowercased word tokens of text in order.
func Words(text string) []string {
	raw := wordPattern.FindAllString(text, -1)
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, len(raw))
	for i, w := range raw {
		out[i] = strings.ToLower(w)
	}
	return out
}

// WordSpans returns the byte offsets of the tokens Words would return, as
// [start, end) pairs.
func WordSpans(text string) [][]int {
	return wordPattern.FindAllStringIndex(text, -1)
}

// RegexMatcher fires when its rule matches and the exemption does not.
//
// RE2 has no lookahead, so a guard such as "unless followed by 'according
// to'" is expressed with Exempt: an occurrence of the rule only counts when
// Exempt does not match the rest of the line after that occurrence.
type RegexMatcher struct {
	id      string
	rule    *regexp.Regexp
	exempt  *regexp.Regexp
	weight  float64
	message string
}

// NewRegexMatcher compiles a case-insensitive regex matcher.
//
// Inputs:
//
//	id - Stable identifier.
//	pattern - The rule. Required.
//	exempt - Optional exemption rule, "" for none.
//	weight - Severity weight in [0,1].
//	message - Description reported on match. Defaults to the id.
//
// Outputs:
//
//	*RegexMatcher - The compiled matcher.
//	error - Non-nil if either regex fails to compile.
func NewRegexMatcher(id, pattern, exempt string, weight float64, message string) (*RegexMatcher, error) {
	rule, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", id, err)
	}
	m := &RegexMatcher{id: id, rule: rule, weight: weight, message: message}
	if exempt != "" {
		m.exempt, err = regexp.Compile("(?i)" + exempt)
		if err != nil {
			return nil, fmt.Errorf("exempt pattern %q: %w", id, err)
		}
	}
	if m.message == "" {
		m.message = id
	}
	return m, nil
}

// ID implements Matcher.
func (m *RegexMatcher) ID() string { return m.id }

// Test implements Matcher.
func (m *RegexMatcher) Test(text string) Match {
	for _, loc := range m.rule.FindAllStringIndex(text, -1) {
		if m.exempt == nil || !m.exempt.MatchString(restOfLine(text, loc[1])) {
			return Match{Matched: true, Weight: m.weight, Message: m.message}
		}
	}
	return Match{}
}

func restOfLine(text string, from int) string {
	rest := text[from:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// KeywordMatcher fires when any of its keywords appears as a whole word or
// whole-word phrase. It never allocates a regex and is the cheaper choice
// for plain vocabulary lists.
type KeywordMatcher struct {
	id      string
	words   map[string]bool
	phrases []string
	weight  float64
	message string
}

// NewKeywordMatcher builds a keyword matcher. Keywords are case-insensitive;
// multi-word keywords match as contiguous phrases.
func NewKeywordMatcher(id string, keywords []string, weight float64, message string) *KeywordMatcher {
	m := &KeywordMatcher{id: id, words: make(map[string]bool), weight: weight, message: message}
	for _, k := range keywords {
		toks := Words(k)
		switch len(toks) {
		case 0:
		case 1:
			m.words[toks[0]] = true
		default:
			m.phrases = append(m.phrases, " "+strings.Join(toks, " ")+" ")
		}
	}
	if m.message == "" {
		m.message = id
	}
	return m
}

// ID implements Matcher.
func (m *KeywordMatcher) ID() string { return m.id }

// Test implements Matcher.
func (m *KeywordMatcher) Test(text string) Match {
	toks := Words(text)
	for _, t := range toks {
		if m.words[t] {
			return Match{Matched: true, Weight: m.weight, Message: m.message}
		}
	}
	if len(m.phrases) > 0 {
		joined := " " + strings.Join(toks, " ") + " "
		for _, p := range m.phrases {
			if strings.Contains(joined, p) {
				return Match{Matched: true, Weight: m.weight, Message: m.message}
			}
		}
	}
	return Match{}
}
