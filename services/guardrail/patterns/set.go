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

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidSpec indicates a pattern spec that cannot be compiled.
var ErrInvalidSpec = errors.New("invalid pattern spec")

// Category names the role a matcher plays in validation.
type Category string

const (
	// CategoryHallucination marks phrasing that often accompanies fabricated
	// content. Matches raise the hallucination risk score.
	CategoryHallucination Category = "hallucination"

	// CategoryUncertainty marks hedging language. Matches lower confidence.
	CategoryUncertainty Category = "uncertainty"

	// CategoryInappropriate marks content that should not reach users as-is.
	CategoryInappropriate Category = "inappropriate"

	// CategoryOffTopic marks content that drifts away from the question.
	CategoryOffTopic Category = "off_topic"

	// CategoryAssertion marks confident, absolute phrasing.
	CategoryAssertion Category = "assertion"

	// CategoryCitation marks references to the source material.
	CategoryCitation Category = "citation"
)

// Categories lists every known category in reporting order.
var Categories = []Category{
	CategoryHallucination,
	CategoryUncertainty,
	CategoryInappropriate,
	CategoryOffTopic,
	CategoryAssertion,
	CategoryCitation,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Spec is the declarative form of a matcher.
//
// Exactly one of Pattern or Keywords should be set. When both are present
// Pattern wins and Keywords is ignored.
type Spec struct {
	ID       string   `json:"id" yaml:"id" validate:"required"`
	Category Category `json:"category" yaml:"category" validate:"required"`
	Pattern  string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Exempt   string   `json:"exempt,omitempty" yaml:"exempt,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Weight   float64  `json:"weight" yaml:"weight" validate:"gte=0,lte=1"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// Build compiles the spec into a Matcher.
func (s Spec) Build() (Matcher, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidSpec)
	}
	if !s.Category.Valid() {
		return nil, fmt.Errorf("%w: %s: unknown category %q", ErrInvalidSpec, s.ID, s.Category)
	}
	if s.Weight < 0 || s.Weight > 1 {
		return nil, fmt.Errorf("%w: %s: weight %v outside [0,1]", ErrInvalidSpec, s.ID, s.Weight)
	}
	switch {
	case s.Pattern != "":
		m, err := NewRegexMatcher(s.ID, s.Pattern, s.Exempt, s.Weight, s.Message)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
		return m, nil
	case len(s.Keywords) > 0:
		return NewKeywordMatcher(s.ID, s.Keywords, s.Weight, s.Message), nil
	default:
		return nil, fmt.Errorf("%w: %s: needs a pattern or keywords", ErrInvalidSpec, s.ID)
	}
}

// Hit is one fired matcher.
type Hit struct {
	ID string
	Match
}

// Set is an immutable collection of matchers grouped by category.
type Set struct {
	matchers map[Category][]Matcher
	specs    []Spec
}

// Compile builds a Set from specs.
//
// Outputs:
//
//	*Set - The compiled set. Matchers keep spec order within a category.
//	error - ErrInvalidSpec (wrapped) on the first bad spec or duplicate id.
func Compile(specs []Spec) (*Set, error) {
	set := &Set{
		matchers: make(map[Category][]Matcher, len(Categories)),
		specs:    make([]Spec, 0, len(specs)),
	}
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidSpec, s.ID)
		}
		seen[s.ID] = true

		m, err := s.Build()
		if err != nil {
			return nil, err
		}
		set.matchers[s.Category] = append(set.matchers[s.Category], m)
		s.Keywords = slices.Clone(s.Keywords)
		set.specs = append(set.specs, s)
	}
	return set, nil
}

// NewSet builds a Set from ready-made matchers. Sets built this way report
// no specs.
func NewSet(matchers map[Category][]Matcher) (*Set, error) {
	set := &Set{matchers: make(map[Category][]Matcher, len(matchers))}
	for c, ms := range matchers {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidSpec, c)
		}
		set.matchers[c] = slices.Clone(ms)
	}
	return set, nil
}

// Matchers returns the matchers of a category.
func (s *Set) Matchers(c Category) []Matcher {
	if s == nil {
		return nil
	}
	return s.matchers[c]
}

// Hits runs every matcher of a category against text and returns those that
// fired, in matcher order.
func (s *Set) Hits(c Category, text string) []Hit {
	var hits []Hit
	for _, m := range s.Matchers(c) {
		if r := m.Test(text); r.Matched {
			hits = append(hits, Hit{ID: m.ID(), Match: r})
		}
	}
	return hits
}

// Any reports whether at least one matcher of the category fires on text.
func (s *Set) Any(c Category, text string) bool {
	for _, m := range s.Matchers(c) {
		if m.Test(text).Matched {
			return true
		}
	}
	return false
}

// Len returns the total number of matchers.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, ms := range s.matchers {
		n += len(ms)
	}
	return n
}

// Specs returns a copy of the specs the set was compiled from.
func (s *Set) Specs() []Spec {
	if s == nil {
		return nil
	}
	out := slices.Clone(s.specs)
	for i := range out {
		out[i].Keywords = slices.Clone(out[i].Keywords)
	}
	return out
}
