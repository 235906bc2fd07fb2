// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package metrics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"go.uber.org/zap/zapcore"
)

// Metric names thresholds can be declared on.
const (
	MetricHTTPReqDuration = "http_req_duration"
	MetricHTTPReqFailed   = "http_req_failed"
	MetricChecks          = "checks"
	MetricHTTPReqs        = "http_reqs"
	MetricIterations      = "iterations"
)

var thresholdExpr = regexp.MustCompile(
	`^\s*(avg|min|max|med|count|rate|p\(\s*(\d+(?:\.\d+)?)\s*\))\s*(<=|>=|==|!=|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`,
)

var aggregations = map[string][]string{
	MetricHTTPReqDuration: {"avg", "min", "max", "med", "p"},
	MetricHTTPReqFailed:   {"rate"},
	MetricChecks:          {"rate"},
	MetricHTTPReqs:        {"count"},
	MetricIterations:      {"count"},
}

// Threshold is a parsed pass/fail criterion such as "p(95)<500" on
// http_req_duration.
type Threshold struct {
	Metric      string
	Expression  string
	Aggregation string
	// Quantile is set for the "p" aggregation, in the 0..1 range.
	Quantile float64
	Operator string
	Value    float64
}

// ParseThreshold parses expr declared on metric.
func ParseThreshold(metric, expr string) (Threshold, error) {
	m := thresholdExpr.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q on %s", expr, metric)
	}
	t := Threshold{
		Metric:      metric,
		Expression:  expr,
		Aggregation: m[1],
		Operator:    m[3],
	}
	if m[2] != "" {
		pct, err := strconv.ParseFloat(m[2], 64)
		if err != nil || pct <= 0 || pct > 100 {
			return Threshold{}, fmt.Errorf("invalid percentile in threshold %q on %s", expr, metric)
		}
		t.Aggregation = "p"
		t.Quantile = pct / 100
	}
	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid value in threshold %q on %s: %w", expr, metric, err)
	}
	t.Value = value

	supported, ok := aggregations[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported threshold metric %q", metric)
	}
	for _, agg := range supported {
		if agg == t.Aggregation {
			return t, nil
		}
	}
	return Threshold{}, fmt.Errorf("aggregation %q is not supported on %s", m[1], metric)
}

// ParseThresholds parses a metric to expressions map. Thresholds are
// ordered by metric name, then declaration order.
func ParseThresholds(thresholds map[string][]string) ([]Threshold, error) {
	metrics := make([]string, 0, len(thresholds))
	for metric := range thresholds {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	var out []Threshold
	for _, metric := range metrics {
		for _, expr := range thresholds[metric] {
			t, err := ParseThreshold(metric, expr)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// Quantiles returns the duration quantiles referenced by thresholds.
func Quantiles(thresholds []Threshold) []float64 {
	var qs []float64
	for _, t := range thresholds {
		if t.Aggregation == "p" {
			qs = append(qs, t.Quantile)
		}
	}
	return qs
}

func (t Threshold) observe(s Snapshot) (float64, error) {
	switch t.Metric {
	case MetricHTTPReqDuration:
		switch t.Aggregation {
		case "avg":
			return s.Duration.Avg, nil
		case "min":
			return s.Duration.Min, nil
		case "max":
			return s.Duration.Max, nil
		case "med":
			return quantile(s, 0.5)
		case "p":
			return quantile(s, t.Quantile)
		}
	case MetricHTTPReqFailed:
		return s.FailedRate(), nil
	case MetricChecks:
		return s.ChecksRate(), nil
	case MetricHTTPReqs:
		return float64(s.Requests), nil
	case MetricIterations:
		return float64(s.Iterations), nil
	}
	return 0, fmt.Errorf("cannot evaluate %s on %s", t.Expression, t.Metric)
}

func quantile(s Snapshot, q float64) (float64, error) {
	v, ok := s.Duration.Quantiles[q]
	if !ok {
		return 0, fmt.Errorf("quantile %v is not tracked", q)
	}
	return v, nil
}

func (t Threshold) compare(observed float64) bool {
	switch t.Operator {
	case "<":
		return observed < t.Value
	case "<=":
		return observed <= t.Value
	case ">":
		return observed > t.Value
	case ">=":
		return observed >= t.Value
	case "==":
		return observed == t.Value
	case "!=":
		return observed != t.Value
	}
	return false
}

// ThresholdResult is the outcome of one threshold.
type ThresholdResult struct {
	Threshold
	Observed float64
	Passed   bool
	Err      error
}

func (r ThresholdResult) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("metric", r.Metric)
	enc.AddString("threshold", r.Expression)
	enc.AddFloat64("observed", r.Observed)
	enc.AddBool("passed", r.Passed)
	if r.Err != nil {
		enc.AddString("error", r.Err.Error())
	}
	return nil
}

// Evaluate checks every threshold against s. A threshold that cannot be
// evaluated fails.
func Evaluate(thresholds []Threshold, s Snapshot) []ThresholdResult {
	results := make([]ThresholdResult, 0, len(thresholds))
	for _, t := range thresholds {
		observed, err := t.observe(s)
		results = append(results, ThresholdResult{
			Threshold: t,
			Observed:  observed,
			Passed:    err == nil && t.compare(observed),
			Err:       err,
		})
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
