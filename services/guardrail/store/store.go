// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store keeps an append-only log of validation outcomes in BadgerDB.
//
// Records are keyed by time so listing newest-first is a reverse prefix
// scan. Retention is enforced with per-entry TTLs; expired entries are
// dropped by Badger compaction and value log GC.
//
// # Thread Safety
//
// Store is safe for concurrent use.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("result store is closed")

var recordPrefix = []byte("result/")

// Record is one persisted validation outcome.
type Record struct {
	ID            string                 `json:"id"`
	Time          time.Time              `json:"time"`
	Question      string                 `json:"question,omitempty"`
	Level         guardrail.QualityLevel `json:"level"`
	Confidence    float64                `json:"confidence"`
	Risk          float64                `json:"risk"`
	Warnings      []string               `json:"warnings,omitempty"`
	ConfigVersion uint64                 `json:"config_version"`
}

// NewRecord builds a Record from a validation result with a fresh id.
func NewRecord(question string, res guardrail.ValidationResult, at time.Time) Record {
	return Record{
		ID:            uuid.NewString(),
		Time:          at.UTC(),
		Question:      question,
		Level:         res.QualityLevel,
		Confidence:    res.ConfidenceScore,
		Risk:          res.RiskScore,
		Warnings:      append([]string(nil), res.Warnings...),
		ConfigVersion: res.ConfigVersion,
	}
}

// Summary describes the confidence distribution of stored records.
type Summary struct {
	Count            int                            `json:"count"`
	MeanConfidence   float64                        `json:"mean_confidence"`
	MedianConfidence float64                        `json:"median_confidence"`
	P90Confidence    float64                        `json:"p90_confidence"`
	StdDevConfidence float64                        `json:"stddev_confidence"`
	MeanWarnings     float64                        `json:"mean_warnings"`
	Levels           map[guardrail.QualityLevel]int `json:"levels"`
}

// Store is the badger-backed result log.
type Store struct {
	db        *badger.DB
	gc        *gcRunner
	retention time.Duration
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates a result log.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close.
//	error - Non-nil if the configuration is invalid or Badger fails to open.
func Open(cfg Config) (*Store, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, retention: cfg.Retention, logger: cfg.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc, err = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("start gc: %w", err)
		}
	}
	return s, nil
}

// OpenInMemory opens a store for testing.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops GC and closes the database. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// withTxn runs fn in a read-write transaction.
func (s *Store) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.Update(fn)
}

// withReadTxn runs fn in a read-only transaction.
func (s *Store) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.View(fn)
}

// recordKey orders records by time, then id.
func recordKey(r Record) []byte {
	key := make([]byte, 0, len(recordPrefix)+8+len(r.ID))
	key = append(key, recordPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(r.Time.UnixNano()))
	return append(key, r.ID...)
}

// Append persists a record. A zero Time is set to now and an empty ID is
// filled with a fresh uuid.
func (s *Store) Append(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Time.IsZero() {
		r.Time = time.Now().UTC()
	}
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", r.ID, err)
	}

	return s.withTxn(ctx, func(txn *badger.Txn) error {
		e := badger.NewEntry(recordKey(r), value)
		if s.retention > 0 {
			e = e.WithTTL(s.retention)
		}
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("write record %s: %w", r.ID, err)
		}
		return nil
	})
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	var out []Record
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = recordPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte(nil), recordPrefix...), 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			var r Record
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &r)
			}); err != nil {
				return fmt.Errorf("decode record %q: %w", it.Item().Key(), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Summarize computes the confidence distribution over every stored record.
// An empty log yields a zero Summary with an empty Levels map.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	records, err := s.List(ctx, 0)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Count: len(records), Levels: make(map[guardrail.QualityLevel]int, len(guardrail.QualityLevels))}
	if len(records) == 0 {
		return sum, nil
	}

	conf := make([]float64, len(records))
	warnings := make([]float64, len(records))
	for i, r := range records {
		conf[i] = r.Confidence
		warnings[i] = float64(len(r.Warnings))
		sum.Levels[r.Level]++
	}

	// stats only fails on empty input, excluded above. Nearest rank keeps
	// the percentile defined for logs with fewer than ten records.
	data := stats.Float64Data(conf)
	sum.MeanConfidence, _ = stats.Mean(data)
	sum.MedianConfidence, _ = stats.Median(data)
	sum.P90Confidence, _ = stats.PercentileNearestRank(data, 90)
	sum.StdDevConfidence, _ = stats.StandardDeviation(data)
	sum.MeanWarnings, _ = stats.Mean(warnings)

	s.logger.Debug("summarized result log",
		slog.Int("count", sum.Count),
		slog.Float64("mean_confidence", sum.MeanConfidence),
	)
	return sum, nil
}
