// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package metrics

import (
	"go.uber.org/zap/zapcore"
)

// Snapshot is the aggregated state of a Recorder.
type Snapshot struct {
	Requests   uint64
	Failed     uint64
	Iterations uint64
	Dropped    uint64

	Duration DurationStats

	ChecksPassed uint64
	ChecksFailed uint64
	// Checks are in first-seen order.
	Checks []CheckStats
}

// DurationStats summarizes request durations in milliseconds.
type DurationStats struct {
	Count     uint64
	Avg       float64
	Min       float64
	Max       float64
	Quantiles map[float64]float64
}

// CheckStats counts the results of one named check.
type CheckStats struct {
	Name   string
	Passes uint64
	Fails  uint64
}

// FailedRate is the fraction of failed requests, 0 without requests.
func (s Snapshot) FailedRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Requests)
}

// ChecksRate is the fraction of passed checks, 0 without checks.
func (s Snapshot) ChecksRate() float64 {
	total := s.ChecksPassed + s.ChecksFailed
	if total == 0 {
		return 0
	}
	return float64(s.ChecksPassed) / float64(total)
}

func (s Snapshot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("requests", s.Requests)
	enc.AddUint64("failed", s.Failed)
	enc.AddFloat64("failed_rate", s.FailedRate())
	enc.AddUint64("iterations", s.Iterations)
	enc.AddUint64("checks_passed", s.ChecksPassed)
	enc.AddUint64("checks_failed", s.ChecksFailed)
	enc.AddFloat64("duration_avg_ms", s.Duration.Avg)
	enc.AddFloat64("duration_max_ms", s.Duration.Max)
	if p95, ok := s.Duration.Quantiles[0.95]; ok {
		enc.AddFloat64("duration_p95_ms", p95)
	}
	if p99, ok := s.Duration.Quantiles[0.99]; ok {
		enc.AddFloat64("duration_p99_ms", p99)
	}
	return nil
}
