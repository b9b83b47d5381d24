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

// ResponseEnhancer attaches the disclaimer for a quality level.
//
// The answer text is never changed, only wrapped:
//
//	high               answer
//	medium             answer + "\n\n" + MediumNotice
//	low                answer + "\n\n" + LowNotice
//	hallucination_risk RiskWarning + "\n\n" + answer
//
// Thread Safety: Safe for concurrent use. Immutable after construction.
type ResponseEnhancer struct {
	disclaimers Disclaimers
}

// NewResponseEnhancer creates an enhancer with the given texts.
func NewResponseEnhancer(disclaimers Disclaimers) *ResponseEnhancer {
	return &ResponseEnhancer{disclaimers: disclaimers}
}

// Enhance returns the user-facing text for answer at level.
func (e *ResponseEnhancer) Enhance(answer string, level QualityLevel) string {
	switch level {
	case QualityMedium:
		return answer + "\n\n" + e.disclaimers.MediumNotice
	case QualityLow:
		return answer + "\n\n" + e.disclaimers.LowNotice
	case QualityHallucinationRisk:
		return e.disclaimers.RiskWarning + "\n\n" + answer
	default:
		return answer
	}
}
