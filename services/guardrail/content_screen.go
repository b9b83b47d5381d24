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
	"unicode/utf8"

	"github.com/AleutianAI/AleutianGuard/services/guardrail/patterns"
)

// Content screen warning texts.
const (
	inappropriateWarning = "Response may contain inappropriate content"
	offTopicWarning      = "Response may be off-topic"
	tooLongWarning       = "Response is very long"
	tooShortWarning      = "Response is very short"
)

// Finding codes that are not pattern ids.
const (
	codeLowQuestionOverlap = "low_question_overlap"
	codeTooLong            = "too_long"
	codeTooShort           = "too_short"
	codeEmptyAnswer        = "empty_answer"
)

// ContentScreen runs the checks that read only the raw request: unsuitable
// content, drift away from the question, and answer length.
//
// Its findings never add to the hallucination risk. They count as warnings
// for classification and produce suggestions.
//
// Thread Safety: Safe for concurrent use. Immutable after construction.
type ContentScreen struct {
	config   ContentConfig
	length   LengthBand
	patterns *patterns.Set
}

// NewContentScreen creates a content screen.
func NewContentScreen(config ContentConfig, length LengthBand, set *patterns.Set) *ContentScreen {
	return &ContentScreen{config: config, length: length, patterns: set}
}

// Screen checks one request and returns its findings in order: content,
// off-topic, length.
func (s *ContentScreen) Screen(question, answer string) []Finding {
	var findings []Finding

	if hits := s.patterns.Hits(patterns.CategoryInappropriate, answer); len(hits) > 0 {
		findings = append(findings, Finding{
			Kind:    KindContent,
			Code:    hits[0].ID,
			Message: inappropriateWarning,
		})
	}

	if code, off := s.offTopic(question, answer); off {
		findings = append(findings, Finding{
			Kind:    KindOffTopic,
			Code:    code,
			Message: offTopicWarning,
		})
	}

	switch n := utf8.RuneCountInString(answer); {
	case n > s.length.MaxChars:
		findings = append(findings, Finding{Kind: KindLength, Code: codeTooLong, Message: tooLongWarning})
	case n < s.length.MinChars:
		findings = append(findings, Finding{Kind: KindLength, Code: codeTooShort, Message: tooShortWarning})
	}

	return findings
}

// offTopic returns the code of the first off-topic signal.
func (s *ContentScreen) offTopic(question, answer string) (string, bool) {
	if hits := s.patterns.Hits(patterns.CategoryOffTopic, answer); len(hits) > 0 {
		return hits[0].ID, true
	}
	if s.config.MinQuestionOverlap == 0 || strings.TrimSpace(question) == "" {
		return "", false
	}
	if sharedCount(wordSet(question), wordSet(answer)) < s.config.MinQuestionOverlap {
		return codeLowQuestionOverlap, true
	}
	return "", false
}
