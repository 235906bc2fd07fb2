// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package executor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/elastic/loadreplay/internal/config"
)

type step struct {
	start    time.Duration
	duration time.Duration
	from, to int
}

// Schedule is the virtual user plan of a run: stages ramp linearly from
// the previous target, starting at zero.
type Schedule struct {
	steps []step
	total time.Duration
}

// NewSchedule parses stages. Durations use time.ParseDuration syntax.
func NewSchedule(stages []config.Stage) (Schedule, error) {
	if len(stages) == 0 {
		return Schedule{}, errors.New("no stages to run")
	}
	var s Schedule
	from := 0
	for i, stage := range stages {
		d, err := time.ParseDuration(stage.Duration)
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid duration of stage %d: %w", i, err)
		}
		if d < 0 {
			return Schedule{}, fmt.Errorf("invalid duration of stage %d: %s is negative", i, stage.Duration)
		}
		if stage.Target < 0 {
			return Schedule{}, fmt.Errorf("invalid target of stage %d: %d is negative", i, stage.Target)
		}
		s.steps = append(s.steps, step{start: s.total, duration: d, from: from, to: stage.Target})
		s.total += d
		from = stage.Target
	}
	return s, nil
}

// Duration is the total duration of the run.
func (s Schedule) Duration() time.Duration {
	return s.total
}

// MaxVUs is the highest stage target.
func (s Schedule) MaxVUs() int {
	max := 0
	for _, st := range s.steps {
		if st.to > max {
			max = st.to
		}
	}
	return max
}

// Target returns the number of virtual users at elapsed, rounded up, and
// whether the run is over.
func (s Schedule) Target(elapsed time.Duration) (int, bool) {
	if elapsed >= s.total {
		return 0, true
	}
	for _, st := range s.steps {
		end := st.start + st.duration
		if elapsed >= end {
			continue
		}
		frac := float64(elapsed-st.start) / float64(st.duration)
		v := float64(st.from) + float64(st.to-st.from)*frac
		return int(math.Ceil(v - 1e-9)), false
	}
	return 0, true
}
