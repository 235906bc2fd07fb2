// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"strconv"

	"github.com/elastic/loadreplay/internal/config"
	"github.com/elastic/loadreplay/pkg/testtype"
)

// Metric names thresholds are keyed by.
const (
	MetricHTTPReqDuration = "http_req_duration"
	MetricHTTPReqFailed   = "http_req_failed"
	MetricChecks          = "checks"
)

// DefaultErrorRateThreshold applies when an endpoint declares no thresholds.
const DefaultErrorRateThreshold = "rate<0.1"

// Options is the scheduler plan of a test: the stages of its load
// profile and the pass/fail thresholds.
type Options struct {
	Stages     []config.Stage      `json:"stages"`
	Thresholds map[string][]string `json:"thresholds"`
}

// BuildOptions derives the Options of endpoint for the given test type.
// It has no side effects.
func BuildOptions(name string, endpoint config.EndpointConfig, tt testtype.TestType) (Options, error) {
	profile, ok := endpoint.LoadProfiles[string(tt)]
	if !ok {
		return Options{}, &MissingLoadProfileError{Endpoint: name, TestType: tt}
	}
	stages := make([]config.Stage, len(profile.Stages))
	copy(stages, profile.Stages)

	return Options{
		Stages:     stages,
		Thresholds: buildThresholds(endpoint.Thresholds),
	}, nil
}

func buildThresholds(cfg *config.ThresholdConfig) map[string][]string {
	if cfg == nil {
		return map[string][]string{
			MetricHTTPReqFailed: {DefaultErrorRateThreshold},
		}
	}
	thresholds := make(map[string][]string)
	var durations []string
	if cfg.P95Duration != nil {
		durations = append(durations, "p(95)<"+formatFloat(*cfg.P95Duration))
	}
	if cfg.P99Duration != nil {
		durations = append(durations, "p(99)<"+formatFloat(*cfg.P99Duration))
	}
	if len(durations) > 0 {
		thresholds[MetricHTTPReqDuration] = durations
	}
	if cfg.ErrorRate != nil {
		thresholds[MetricHTTPReqFailed] = []string{"rate<" + formatFloat(*cfg.ErrorRate)}
	}
	if cfg.CheckPassRate != nil {
		thresholds[MetricChecks] = []string{"rate>" + formatFloat(*cfg.CheckPassRate)}
	}
	return thresholds
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
