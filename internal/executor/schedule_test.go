// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/loadreplay/internal/config"
)

func TestScheduleTarget(t *testing.T) {
	s, err := NewSchedule([]config.Stage{
		{Duration: "10s", Target: 10},
		{Duration: "10s", Target: 10},
		{Duration: "10s", Target: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, s.Duration())
	assert.Equal(t, 10, s.MaxVUs())

	tests := []struct {
		elapsed time.Duration
		target  int
		done    bool
	}{
		{0, 0, false},
		{100 * time.Millisecond, 1, false},
		{time.Second, 1, false},
		{5 * time.Second, 5, false},
		{5500 * time.Millisecond, 6, false},
		{10 * time.Second, 10, false},
		{15 * time.Second, 10, false},
		{25 * time.Second, 5, false},
		{29 * time.Second, 1, false},
		{30 * time.Second, 0, true},
		{time.Minute, 0, true},
	}
	for _, tc := range tests {
		target, done := s.Target(tc.elapsed)
		assert.Equal(t, tc.target, target, "elapsed %s", tc.elapsed)
		assert.Equal(t, tc.done, done, "elapsed %s", tc.elapsed)
	}
}

func TestScheduleSingleVU(t *testing.T) {
	s, err := NewSchedule([]config.Stage{{Duration: "30s", Target: 1}})
	require.NoError(t, err)

	target, done := s.Target(10 * time.Millisecond)
	assert.Equal(t, 1, target)
	assert.False(t, done)
}

func TestScheduleZeroDurationStage(t *testing.T) {
	s, err := NewSchedule([]config.Stage{
		{Duration: "0s", Target: 5},
		{Duration: "1m", Target: 5},
	})
	require.NoError(t, err)

	target, _ := s.Target(0)
	assert.Equal(t, 5, target)
}

func TestScheduleErrors(t *testing.T) {
	_, err := NewSchedule(nil)
	assert.EqualError(t, err, "no stages to run")

	_, err = NewSchedule([]config.Stage{{Duration: "ten", Target: 1}})
	assert.ErrorContains(t, err, "invalid duration of stage 0")

	_, err = NewSchedule([]config.Stage{{Duration: "1s", Target: 1}, {Duration: "-1s", Target: 1}})
	assert.EqualError(t, err, "invalid duration of stage 1: -1s is negative")

	_, err = NewSchedule([]config.Stage{{Duration: "1s", Target: -2}})
	assert.EqualError(t, err, "invalid target of stage 0: -2 is negative")
}
