// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/loadreplay/internal/config"
	"github.com/elastic/loadreplay/pkg/testtype"
)

func floatPtr(f float64) *float64 { return &f }

func TestBuildOptions(t *testing.T) {
	smoke := config.LoadProfile{Stages: []config.Stage{{Duration: "30s", Target: 1}}}

	tests := map[string]struct {
		thresholds *config.ThresholdConfig
		expected   map[string][]string
	}{
		"all thresholds": {
			thresholds: &config.ThresholdConfig{
				P95Duration:   floatPtr(500),
				P99Duration:   floatPtr(1000),
				ErrorRate:     floatPtr(0.01),
				CheckPassRate: floatPtr(0.95),
			},
			expected: map[string][]string{
				"http_req_duration": {"p(95)<500", "p(99)<1000"},
				"http_req_failed":   {"rate<0.01"},
				"checks":            {"rate>0.95"},
			},
		},
		"p99 only": {
			thresholds: &config.ThresholdConfig{P99Duration: floatPtr(750.5)},
			expected: map[string][]string{
				"http_req_duration": {"p(99)<750.5"},
			},
		},
		"no thresholds": {
			expected: map[string][]string{
				"http_req_failed": {"rate<0.1"},
			},
		},
		"empty thresholds": {
			thresholds: &config.ThresholdConfig{},
			expected:   map[string][]string{},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			endpoint := config.EndpointConfig{
				Thresholds:   tc.thresholds,
				LoadProfiles: map[string]config.LoadProfile{"smoke": smoke},
			}
			opts, err := BuildOptions("login", endpoint, testtype.Smoke)
			require.NoError(t, err)
			assert.Equal(t, smoke.Stages, opts.Stages)
			assert.Equal(t, tc.expected, opts.Thresholds)
		})
	}
}

func TestBuildOptionsMissingProfile(t *testing.T) {
	endpoint := config.EndpointConfig{
		LoadProfiles: map[string]config.LoadProfile{"smoke": {}},
	}
	_, err := BuildOptions("login", endpoint, testtype.Load)

	var missing *MissingLoadProfileError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "login", missing.Endpoint)
	assert.Equal(t, testtype.Load, missing.TestType)
}

func TestBuildOptionsDoesNotAlias(t *testing.T) {
	endpoint := config.EndpointConfig{
		LoadProfiles: map[string]config.LoadProfile{
			"load": {Stages: []config.Stage{{Duration: "1m", Target: 10}}},
		},
	}
	opts, err := BuildOptions("login", endpoint, testtype.Load)
	require.NoError(t, err)
	opts.Stages[0].Target = 99

	again, err := BuildOptions("login", endpoint, testtype.Load)
	require.NoError(t, err)
	assert.Equal(t, 10, again.Stages[0].Target)
}

func TestOptionsIsIdempotent(t *testing.T) {
	doc := testDocument()
	login := doc.Endpoints["login"]
	login.Thresholds = &config.ThresholdConfig{
		P95Duration:   floatPtr(500),
		P99Duration:   floatPtr(1000),
		ErrorRate:     floatPtr(0.01),
		CheckPassRate: floatPtr(0.95),
	}
	doc.Endpoints["login"] = login

	test, err := NewFactory(nil, nil, nil).CreateTest(doc, "login", "smoke", nil)
	require.NoError(t, err)

	first, err := test.Options()
	require.NoError(t, err)
	second, err := test.Options()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"p(95)<500", "p(99)<1000"}, first.Thresholds[MetricHTTPReqDuration])
	assert.Equal(t, StateUninitialized, test.State())
}

func TestOptionsJSON(t *testing.T) {
	opts := Options{
		Stages:     []config.Stage{{Duration: "30s", Target: 5}},
		Thresholds: map[string][]string{"http_req_failed": {"rate<0.1"}},
	}
	b, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"stages":[{"duration":"30s","target":5}],"thresholds":{"http_req_failed":["rate<0.1"]}}`,
		string(b),
	)
}
