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

import "sync"

// StatsSnapshot is a point-in-time copy of the running statistics.
//
// High+Medium+Low+HallucinationRisk always equals TotalQueries.
type StatsSnapshot struct {
	TotalQueries      uint64  `json:"total_queries"`
	High              uint64  `json:"high"`
	Medium            uint64  `json:"medium"`
	Low               uint64  `json:"low"`
	HallucinationRisk uint64  `json:"hallucination_risk"`
	MeanConfidence    float64 `json:"mean_confidence"`
	MeanWarnings      float64 `json:"mean_warnings"`
}

// Count returns the count for one level.
func (s StatsSnapshot) Count(level QualityLevel) uint64 {
	switch level {
	case QualityHigh:
		return s.High
	case QualityMedium:
		return s.Medium
	case QualityLow:
		return s.Low
	case QualityHallucinationRisk:
		return s.HallucinationRisk
	default:
		return 0
	}
}

// Statistics accumulates validation outcomes.
//
// All counters move together under one lock, so a snapshot never observes a
// total that disagrees with the per-level counts.
//
// Thread Safety: Safe for concurrent use.
type Statistics struct {
	mu            sync.Mutex
	total         uint64
	levels        map[QualityLevel]uint64
	confidenceSum float64
	warningSum    uint64
}

// NewStatistics creates empty statistics.
func NewStatistics() *Statistics {
	return &Statistics{levels: make(map[QualityLevel]uint64, len(QualityLevels))}
}

// Record adds one completed validation.
func (s *Statistics) Record(level QualityLevel, confidence float64, warnings int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.levels[level]++
	s.confidenceSum += confidence
	s.warningSum += uint64(warnings)
}

// Snapshot returns a consistent copy of the counters.
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		TotalQueries:      s.total,
		High:              s.levels[QualityHigh],
		Medium:            s.levels[QualityMedium],
		Low:               s.levels[QualityLow],
		HallucinationRisk: s.levels[QualityHallucinationRisk],
	}
	if s.total > 0 {
		snap.MeanConfidence = s.confidenceSum / float64(s.total)
		snap.MeanWarnings = float64(s.warningSum) / float64(s.total)
	}
	return snap
}

// Reset zeroes every counter.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	clear(s.levels)
	s.confidenceSum = 0
	s.warningSum = 0
}
