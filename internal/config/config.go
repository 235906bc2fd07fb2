// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package config contains the service document model read by the factory:
// one service, its base URL, and the endpoints that can be replayed.
package config

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// DefaultMethod is used when an endpoint does not declare a method.
const DefaultMethod = "POST"

// DefaultThinkTime is the pause between two iterations of a virtual user
// when the endpoint does not declare one.
const DefaultThinkTime = time.Second

// Document is a whole service config file.
type Document struct {
	Service   *ServiceConfig            `json:"service"`
	Endpoints map[string]EndpointConfig `json:"endpoints"`
}

// ServiceConfig identifies the service under test.
type ServiceConfig struct {
	Name        string `json:"name"`
	BaseURL     string `json:"baseUrl"`
	Environment string `json:"environment"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s ServiceConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", s.Name)
	enc.AddString("base_url", s.BaseURL)
	enc.AddString("environment", s.Environment)
	return nil
}

// EndpointConfig describes how one endpoint is replayed and checked.
//
// Pointer and map fields distinguish an absent section from an empty one,
// the factory rejects endpoints missing any of Path, DataSource, Validation
// or LoadProfiles.
type EndpointConfig struct {
	Path         string                 `json:"path"`
	Method       string                 `json:"method"`
	DataSource   *DataSourceConfig      `json:"dataSource"`
	Headers      map[string]string      `json:"headers"`
	Validation   *ValidationConfig      `json:"validation"`
	Thresholds   *ThresholdConfig       `json:"thresholds"`
	LoadProfiles map[string]LoadProfile `json:"loadProfiles"`
	// ThinkTime is expressed in seconds.
	ThinkTime *float64 `json:"thinkTime"`

	// ContentEncoding compresses request bodies, one of gzip, zstd or deflate.
	ContentEncoding string `json:"contentEncoding"`
	// FreshFields lists payload dot paths that receive a new UUID on
	// every iteration when the fresh-value runner is used.
	FreshFields []string `json:"freshFields"`
}

// HTTPMethod returns the upper-cased method, defaulting to POST.
func (e EndpointConfig) HTTPMethod() string {
	if e.Method == "" {
		return DefaultMethod
	}
	return strings.ToUpper(e.Method)
}

// ThinkTimeDuration returns the configured think time. An explicit zero
// disables the pause.
func (e EndpointConfig) ThinkTimeDuration() time.Duration {
	if e.ThinkTime == nil {
		return DefaultThinkTime
	}
	if *e.ThinkTime <= 0 {
		return 0
	}
	return time.Duration(*e.ThinkTime * float64(time.Second))
}

// DataSourceConfig points at the CSV file holding recorded requests.
type DataSourceConfig struct {
	Path             string `json:"path"`
	RequestColumn    string `json:"requestColumn"`
	FilterByEndpoint string `json:"filterByEndpoint"`
	// Delimiter overrides the CSV field separator, defaults to ",".
	Delimiter string `json:"delimiter"`
	// Deduplicate drops payloads already seen in the file.
	Deduplicate bool `json:"deduplicate"`
}

// ValidationConfig declares the checks applied to every response.
type ValidationConfig struct {
	StatusCode     *int     `json:"statusCode"`
	RequiredFields []string `json:"requiredFields"`
	SuccessField   string   `json:"successField"`
	// SuccessValue holds the raw JSON value SuccessField must equal.
	// When absent the expected value is true.
	SuccessValue json.RawMessage `json:"successValue"`
	// MaxDuration is expressed in milliseconds.
	MaxDuration *float64 `json:"maxDuration"`
}

// ThresholdConfig holds the pass/fail criteria of a run. Durations are
// in milliseconds, rates are fractions between 0 and 1.
type ThresholdConfig struct {
	P95Duration   *float64 `json:"p95Duration"`
	P99Duration   *float64 `json:"p99Duration"`
	ErrorRate     *float64 `json:"errorRate"`
	CheckPassRate *float64 `json:"checkPassRate"`
}

// LoadProfile is the ordered list of stages of one test type.
type LoadProfile struct {
	Stages []Stage `json:"stages"`
}

// Stage ramps the number of virtual users to Target over Duration.
type Stage struct {
	Duration string `json:"duration"`
	Target   int    `json:"target"`
}
