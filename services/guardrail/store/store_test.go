// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_Persistent(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = time.Hour
	s, err := Open(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, Record{Level: guardrail.QualityHigh, Confidence: 0.9}))
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, guardrail.QualityHigh, got[0].Level)
}

func TestAppend_FillsIDAndTime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, Record{Level: guardrail.QualityLow}))

	got, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Time.IsZero())
}

func TestList_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, q := range []string{"first", "second", "third"} {
		require.NoError(t, s.Append(ctx, Record{
			Question: q,
			Time:     base.Add(time.Duration(i) * time.Minute),
			Level:    guardrail.QualityMedium,
		}))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Question)
	assert.Equal(t, "second", all[1].Question)
	assert.Equal(t, "first", all[2].Question)

	top, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "third", top[0].Question)
}

func TestList_Empty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewRecord(t *testing.T) {
	res := guardrail.ValidationResult{
		ConfidenceScore: 0.55,
		RiskScore:       0.3,
		QualityLevel:    guardrail.QualityLow,
		Warnings:        []string{"Response is very short"},
		ConfigVersion:   4,
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	r := NewRecord("why?", res, at)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, time.UTC, r.Time.Location())
	assert.True(t, r.Time.Equal(at))
	assert.Equal(t, "why?", r.Question)
	assert.Equal(t, guardrail.QualityLow, r.Level)
	assert.Equal(t, 0.55, r.Confidence)
	assert.Equal(t, uint64(4), r.ConfigVersion)

	res.Warnings[0] = "mutated"
	assert.Equal(t, "Response is very short", r.Warnings[0])
}

func TestSummarize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	levels := []guardrail.QualityLevel{
		guardrail.QualityHallucinationRisk,
		guardrail.QualityLow,
		guardrail.QualityMedium,
		guardrail.QualityHigh,
		guardrail.QualityHigh,
	}
	for i, conf := range []float64{0.2, 0.4, 0.6, 0.8, 1.0} {
		r := Record{Time: base.Add(time.Duration(i) * time.Second), Level: levels[i], Confidence: conf}
		if i < 2 {
			r.Warnings = []string{"a", "b"}
		}
		require.NoError(t, s.Append(ctx, r))
	}

	sum, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Count)
	assert.InDelta(t, 0.6, sum.MeanConfidence, 1e-9)
	assert.InDelta(t, 0.6, sum.MedianConfidence, 1e-9)
	assert.InDelta(t, 1.0, sum.P90Confidence, 1e-9)
	assert.Greater(t, sum.StdDevConfidence, 0.0)
	assert.InDelta(t, 0.8, sum.MeanWarnings, 1e-9)
	assert.Equal(t, 2, sum.Levels[guardrail.QualityHigh])
	assert.Equal(t, 1, sum.Levels[guardrail.QualityHallucinationRisk])
}

func TestSummarize_Empty(t *testing.T) {
	s := openTestStore(t)
	sum, err := s.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Count)
	assert.NotNil(t, sum.Levels)
}

func TestSummarize_SingleRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, Record{Level: guardrail.QualityMedium, Confidence: 0.7}))

	sum, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, sum.P90Confidence, 1e-9)
	assert.InDelta(t, 0.7, sum.MedianConfidence, 1e-9)
}

func TestClosed(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	ctx := context.Background()
	assert.ErrorIs(t, s.Append(ctx, Record{}), ErrClosed)
	_, err = s.List(ctx, 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Summarize(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCanceledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Append(ctx, Record{}), context.Canceled)
	_, err := s.List(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
