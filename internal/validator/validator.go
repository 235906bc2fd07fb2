// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package validator turns a declarative validation config into a set of
// named checks and evaluates them against HTTP responses.
package validator

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/elastic/loadreplay/internal/config"
)

// previewLen is the number of body characters logged on failure.
const previewLen = 200

// Response is the part of an HTTP exchange the checks look at.
type Response struct {
	// Status is 0 when the request never produced a response.
	Status   int
	Body     []byte
	Duration time.Duration
	// Err holds the transport error, including timeouts.
	Err error

	// Checks is filled by Validate.
	Checks []CheckResult
}

// Check is a single named assertion over a response.
type Check struct {
	Name string
	Test func(r *Response) bool
}

// CheckResult is the outcome of one Check.
type CheckResult struct {
	Name   string
	Passed bool
}

// Result is the outcome of a whole CheckSet.
type Result struct {
	Passed bool
	Checks []CheckResult
}

// Validator evaluates the checks derived from a ValidationConfig.
//
// It is safe for concurrent use.
type Validator struct {
	logger *zap.Logger
	checks []Check
}

// New returns a Validator for cfg.
func New(cfg config.ValidationConfig, logger *zap.Logger) *Validator {
	return &Validator{
		logger: logger.Named("validator"),
		checks: BuildChecks(cfg),
	}
}

// BuildChecks returns the CheckSet for cfg, in declaration order: status,
// required fields, success field, max duration.
func BuildChecks(cfg config.ValidationConfig) []Check {
	var checks []Check
	if cfg.StatusCode != nil {
		want := *cfg.StatusCode
		checks = append(checks, Check{
			Name: fmt.Sprintf("status is %d", want),
			Test: func(r *Response) bool { return r.Status == want },
		})
	}
	for _, path := range cfg.RequiredFields {
		path := path
		checks = append(checks, Check{
			Name: fmt.Sprintf("has field '%s'", path),
			Test: func(r *Response) bool { return Resolve(r.Body, path).Exists() },
		})
	}
	if cfg.SuccessField != "" {
		path := cfg.SuccessField
		expected := gjson.Result{Type: gjson.True, Raw: "true"}
		if len(cfg.SuccessValue) > 0 {
			expected = gjson.ParseBytes(cfg.SuccessValue)
		}
		checks = append(checks, Check{
			Name: fmt.Sprintf("%s is %s", path, expected.Raw),
			Test: func(r *Response) bool { return strictEqual(Resolve(r.Body, path), expected) },
		})
	}
	if cfg.MaxDuration != nil {
		max := *cfg.MaxDuration
		checks = append(checks, Check{
			Name: fmt.Sprintf("duration < %sms", strconv.FormatFloat(max, 'f', -1, 64)),
			Test: func(r *Response) bool { return milliseconds(r.Duration) < max },
		})
	}
	return checks
}

// Checks returns the names of the configured checks.
func (v *Validator) Checks() []string {
	names := make([]string, len(v.checks))
	for i, c := range v.checks {
		names[i] = c.Name
	}
	return names
}

// Evaluate runs every check independently and reports their conjunction.
// A response without checks passes.
func (v *Validator) Evaluate(r *Response) Result {
	result := Result{Passed: true, Checks: make([]CheckResult, len(v.checks))}
	for i, c := range v.checks {
		ok := c.Test(r)
		result.Checks[i] = CheckResult{Name: c.Name, Passed: ok}
		result.Passed = result.Passed && ok
	}
	return result
}

// Validate evaluates r, records the per-check results in r.Checks and
// logs a diagnostic line when any check fails.
func (v *Validator) Validate(r *Response) bool {
	result := v.Evaluate(r)
	r.Checks = result.Checks
	if !result.Passed {
		fields := []zap.Field{
			zap.Int("status", r.Status),
			zap.Float64("duration_ms", milliseconds(r.Duration)),
			zap.String("body_preview", Preview(r.Body)),
			zap.Strings("failed_checks", failedNames(result.Checks)),
		}
		if r.Err != nil {
			fields = append(fields, zap.Error(r.Err))
		}
		v.logger.Warn("response validation failed", fields...)
	}
	return result.Passed
}

// Preview returns at most the first 200 characters of body.
func Preview(body []byte) string {
	if utf8.RuneCount(body) <= previewLen {
		return string(body)
	}
	n, i := 0, 0
	for i < len(body) && n < previewLen {
		_, size := utf8.DecodeRune(body[i:])
		i += size
		n++
	}
	return string(body[:i])
}

func failedNames(results []CheckResult) []string {
	var names []string
	for _, c := range results {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	return names
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// strictEqual compares a resolved value with the expected one without
// any type coercion. Objects and arrays never compare equal.
func strictEqual(got, want gjson.Result) bool {
	if !got.Exists() || got.Type != want.Type {
		return false
	}
	switch got.Type {
	case gjson.True, gjson.False, gjson.Null:
		return true
	case gjson.Number:
		return got.Num == want.Num
	case gjson.String:
		return got.Str == want.Str
	}
	return false
}
