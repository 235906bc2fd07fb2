// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		metric, expr string
		expected     Threshold
		wantErr      string
	}{
		{
			metric:   "http_req_duration",
			expr:     "p(95)<500",
			expected: Threshold{Aggregation: "p", Quantile: 0.95, Operator: "<", Value: 500},
		},
		{
			metric:   "http_req_duration",
			expr:     " p( 99.9 ) <= 1000.5 ",
			expected: Threshold{Aggregation: "p", Quantile: 99.9 / 100, Operator: "<=", Value: 1000.5},
		},
		{
			metric:   "http_req_duration",
			expr:     "avg<200",
			expected: Threshold{Aggregation: "avg", Operator: "<", Value: 200},
		},
		{
			metric:   "http_req_failed",
			expr:     "rate<0.01",
			expected: Threshold{Aggregation: "rate", Operator: "<", Value: 0.01},
		},
		{
			metric:   "checks",
			expr:     "rate>=0.95",
			expected: Threshold{Aggregation: "rate", Operator: ">=", Value: 0.95},
		},
		{
			metric:   "http_reqs",
			expr:     "count>100",
			expected: Threshold{Aggregation: "count", Operator: ">", Value: 100},
		},
		{metric: "http_req_duration", expr: "p95<500", wantErr: `invalid threshold "p95<500" on http_req_duration`},
		{metric: "http_req_duration", expr: "p(0)<500", wantErr: `invalid percentile in threshold "p(0)<500" on http_req_duration`},
		{metric: "http_req_duration", expr: "rate<0.1", wantErr: `aggregation "rate" is not supported on http_req_duration`},
		{metric: "checks", expr: "avg<1", wantErr: `aggregation "avg" is not supported on checks`},
		{metric: "data_received", expr: "count<1", wantErr: `unsupported threshold metric "data_received"`},
	}
	for _, tc := range tests {
		t.Run(tc.metric+" "+tc.expr, func(t *testing.T) {
			got, err := ParseThreshold(tc.metric, tc.expr)
			if tc.wantErr != "" {
				assert.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.expected.Metric = tc.metric
			tc.expected.Expression = tc.expr
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParseThresholdsOrder(t *testing.T) {
	thresholds, err := ParseThresholds(map[string][]string{
		"http_req_failed":   {"rate<0.1"},
		"http_req_duration": {"p(95)<500", "p(99)<1000"},
		"checks":            {"rate>0.9"},
	})
	require.NoError(t, err)

	var exprs []string
	for _, th := range thresholds {
		exprs = append(exprs, th.Metric+":"+th.Expression)
	}
	assert.Equal(t, []string{
		"checks:rate>0.9",
		"http_req_duration:p(95)<500",
		"http_req_duration:p(99)<1000",
		"http_req_failed:rate<0.1",
	}, exprs)
	assert.Equal(t, []float64{0.95, 0.99}, Quantiles(thresholds))

	_, err = ParseThresholds(map[string][]string{"checks": {"rate>"}})
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	s := Snapshot{
		Requests:     100,
		Failed:       5,
		Iterations:   100,
		ChecksPassed: 90,
		ChecksFailed: 10,
		Duration: DurationStats{
			Count:     95,
			Avg:       120,
			Min:       10,
			Max:       900,
			Quantiles: map[float64]float64{0.5: 100, 0.95: 450, 0.99: 800},
		},
	}

	tests := []struct {
		metric, expr string
		passed       bool
		observed     float64
	}{
		{"http_req_duration", "p(95)<500", true, 450},
		{"http_req_duration", "p(99)<500", false, 800},
		{"http_req_duration", "med<=100", true, 100},
		{"http_req_duration", "avg<100", false, 120},
		{"http_req_duration", "max<1000", true, 900},
		{"http_req_duration", "min>=10", true, 10},
		{"http_req_failed", "rate<0.1", true, 0.05},
		{"http_req_failed", "rate<0.01", false, 0.05},
		{"checks", "rate>0.95", false, 0.9},
		{"checks", "rate>0.5", true, 0.9},
		{"http_reqs", "count==100", true, 100},
		{"iterations", "count!=100", false, 100},
	}
	for _, tc := range tests {
		t.Run(tc.metric+" "+tc.expr, func(t *testing.T) {
			th, err := ParseThreshold(tc.metric, tc.expr)
			require.NoError(t, err)
			results := Evaluate([]Threshold{th}, s)
			require.Len(t, results, 1)
			assert.NoError(t, results[0].Err)
			assert.Equal(t, tc.observed, results[0].Observed)
			assert.Equal(t, tc.passed, results[0].Passed)
			assert.Equal(t, tc.passed, AllPassed(results))
		})
	}
}

func TestEvaluateUntrackedQuantile(t *testing.T) {
	th, err := ParseThreshold("http_req_duration", "p(75)<100")
	require.NoError(t, err)

	results := Evaluate([]Threshold{th}, Snapshot{Duration: DurationStats{Quantiles: map[float64]float64{}}})
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.EqualError(t, results[0].Err, "quantile 0.75 is not tracked")
}

func TestAllPassedEmpty(t *testing.T) {
	assert.True(t, AllPassed(nil))
}
