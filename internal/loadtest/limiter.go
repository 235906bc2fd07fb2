// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// IterationRate caps how many iterations all virtual users of a run start
// per Interval. The zero value means no cap.
//
// It implements pflag.Value so it can be bound to a flag directly.
type IterationRate struct {
	Iterations int
	Interval   time.Duration
}

// Unlimited reports whether r does not cap anything.
func (r IterationRate) Unlimited() bool {
	return r.Iterations <= 0 || r.Interval <= 0
}

// PerSecond returns the sustained iteration rate.
func (r IterationRate) PerSecond() float64 {
	if r.Unlimited() {
		return 0
	}
	return float64(r.Iterations) / r.Interval.Seconds()
}

// Limiter returns a limiter shared by the virtual users, nil when r is
// unlimited. Up to Iterations iterations may start at once, so 100/5s
// allows bursts of 100 and 20 iterations per second on average.
func (r IterationRate) Limiter() *rate.Limiter {
	if r.Unlimited() {
		return nil
	}
	return rate.NewLimiter(rate.Limit(r.PerSecond()), r.Iterations)
}

func (r IterationRate) String() string {
	if r.Unlimited() {
		return "0/s"
	}
	return strconv.Itoa(r.Iterations) + "/" + r.Interval.String()
}

func (r *IterationRate) Set(s string) error {
	parsed, err := ParseIterationRate(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r *IterationRate) Type() string { return "iterations/interval" }

// ParseIterationRate parses "<iterations>/<interval>" such as "50/1s" or
// "50/s". Zero iterations disables the cap.
func ParseIterationRate(s string) (IterationRate, error) {
	count, interval, ok := strings.Cut(s, "/")
	if !ok || count == "" || interval == "" {
		return IterationRate{}, fmt.Errorf("invalid rate %q, expected format <iterations>/<interval>", s)
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return IterationRate{}, fmt.Errorf("invalid iteration count %s in rate: %w", count, err)
	}
	if n < 0 {
		return IterationRate{}, fmt.Errorf("invalid iteration count %d in rate, must not be negative", n)
	}
	if interval[0] < '0' || interval[0] > '9' {
		interval = "1" + interval
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		return IterationRate{}, fmt.Errorf("invalid interval %q in rate: %w", interval, err)
	}
	if d <= 0 {
		return IterationRate{}, fmt.Errorf("invalid interval %q in rate, must be positive", interval)
	}
	if n == 0 {
		return IterationRate{}, nil
	}
	return IterationRate{Iterations: n, Interval: d}, nil
}
