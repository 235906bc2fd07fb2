// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestParseIterationRate(t *testing.T) {
	tests := []struct {
		name     string
		rate     string
		expected IterationRate
		wantErr  bool
	}{
		{name: "valid rate", rate: "10/1s", expected: IterationRate{Iterations: 10, Interval: time.Second}},
		{name: "milliseconds", rate: "100/1ms", expected: IterationRate{Iterations: 100, Interval: time.Millisecond}},
		{name: "implicit unit count", rate: "5/m", expected: IterationRate{Iterations: 5, Interval: time.Minute}},
		{name: "zero disables the cap", rate: "0/s", expected: IterationRate{}},
		{name: "negative count", rate: "-1/s", wantErr: true},
		{name: "invalid interval", rate: "0/abc", wantErr: true},
		{name: "invalid count", rate: "abc/1s", wantErr: true},
		{name: "missing slash", rate: "100000", wantErr: true},
		{name: "zero interval", rate: "1/0s", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseIterationRate(tt.rate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
		})
	}
}

func TestIterationRateLimiter(t *testing.T) {
	r := IterationRate{Iterations: 100, Interval: 5 * time.Second}
	assert.Equal(t, 20.0, r.PerSecond())
	l := r.Limiter()
	require.NotNil(t, l)
	assert.Equal(t, rate.Limit(20), l.Limit())
	assert.Equal(t, 100, l.Burst())

	assert.Nil(t, IterationRate{}.Limiter())
	assert.Nil(t, IterationRate{Iterations: 10}.Limiter())
}

func TestIterationRateFlagValue(t *testing.T) {
	var r IterationRate
	assert.Equal(t, "0/s", r.String())

	require.NoError(t, r.Set("30/2s"))
	assert.Equal(t, IterationRate{Iterations: 30, Interval: 2 * time.Second}, r)
	assert.Equal(t, "30/2s", r.String())

	assert.Error(t, r.Set("fast"))
	assert.Equal(t, "30/2s", r.String())
}
