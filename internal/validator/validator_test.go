// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package validator

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/elastic/loadreplay/internal/config"
)

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func loginValidation() config.ValidationConfig {
	return config.ValidationConfig{
		StatusCode:     intPtr(200),
		RequiredFields: []string{"success", "data.accessToken"},
		SuccessField:   "success",
		SuccessValue:   json.RawMessage(`true`),
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		path   string
		exists bool
		value  string
	}{
		{"nested", `{"data":{"token":"abc"}}`, "data.token", true, "abc"},
		{"missing leaf", `{"data":{}}`, "data.missing", false, ""},
		{"null root", `null`, "a.b", false, ""},
		{"non object intermediate", `{"a":"text"}`, "a.b", false, ""},
		{"null leaf exists", `{"a":null}`, "a", true, ""},
		{"array index", `{"items":[{"id":7}]}`, "items.0.id", true, "7"},
		{"invalid json", `{"a":`, "a", false, ""},
		{"empty body", ``, "a", false, ""},
		{"literal wildcard key", `{"a*":{"b":1},"ab":{"b":2}}`, "a*.b", true, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve([]byte(tt.body), tt.path)
			assert.Equal(t, tt.exists, got.Exists())
			if tt.value != "" {
				assert.Equal(t, tt.value, got.String())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	v := New(loginValidation(), zap.NewNop())
	assert.Equal(t, []string{
		"status is 200",
		"has field 'success'",
		"has field 'data.accessToken'",
		"success is true",
	}, v.Checks())

	ok := &Response{Status: 200, Body: []byte(`{"success":true,"data":{"accessToken":"xyz"}}`)}
	assert.True(t, v.Validate(ok))
	require.Len(t, ok.Checks, 4)

	missing := &Response{Status: 200, Body: []byte(`{"success":true,"data":{}}`)}
	assert.False(t, v.Validate(missing))
	assert.Equal(t, []CheckResult{
		{Name: "status is 200", Passed: true},
		{Name: "has field 'success'", Passed: true},
		{Name: "has field 'data.accessToken'", Passed: false},
		{Name: "success is true", Passed: true},
	}, missing.Checks)
}

func TestValidateNonJSONBody(t *testing.T) {
	cfg := loginValidation()
	cfg.MaxDuration = floatPtr(100)
	v := New(cfg, zap.NewNop())

	r := &Response{Status: 200, Body: []byte("<html>bad gateway</html>"), Duration: 20 * time.Millisecond}
	result := v.Evaluate(r)
	assert.False(t, result.Passed)
	for _, c := range result.Checks {
		switch c.Name {
		case "status is 200", "duration < 100ms":
			assert.True(t, c.Passed, c.Name)
		default:
			assert.False(t, c.Passed, c.Name)
		}
	}
}

func TestSuccessValueStrictEquality(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		body     string
		passed   bool
	}{
		{"default true", "", `{"ok":true}`, true},
		{"default true rejects truthy string", "", `{"ok":"true"}`, false},
		{"number", `1`, `{"ok":1}`, true},
		{"number rejects string", `1`, `{"ok":"1"}`, false},
		{"string", `"done"`, `{"ok":"done"}`, true},
		{"false", `false`, `{"ok":false}`, true},
		{"null", `null`, `{"ok":null}`, true},
		{"missing", `null`, `{}`, false},
		{"objects never equal", `{}`, `{"ok":{}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.ValidationConfig{SuccessField: "ok"}
			if tt.expected != "" {
				cfg.SuccessValue = json.RawMessage(tt.expected)
			}
			v := New(cfg, zap.NewNop())
			assert.Equal(t, tt.passed, v.Validate(&Response{Body: []byte(tt.body)}))
		})
	}
}

func TestMaxDurationIsStrict(t *testing.T) {
	v := New(config.ValidationConfig{MaxDuration: floatPtr(250)}, zap.NewNop())
	assert.Equal(t, []string{"duration < 250ms"}, v.Checks())
	assert.True(t, v.Validate(&Response{Duration: 249 * time.Millisecond}))
	assert.False(t, v.Validate(&Response{Duration: 250 * time.Millisecond}))
}

func TestEmptyCheckSetPasses(t *testing.T) {
	v := New(config.ValidationConfig{}, zap.NewNop())
	assert.Empty(t, v.Checks())
	assert.True(t, v.Validate(&Response{Status: 500}))
}

func TestValidateLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	v := New(loginValidation(), zap.New(core))

	body := `{"success":false,"message":"` + strings.Repeat("x", 300) + `"}`
	assert.False(t, v.Validate(&Response{
		Status:   401,
		Body:     []byte(body),
		Duration: 1500 * time.Millisecond,
		Err:      errors.New("boom"),
	}))

	entries := logs.FilterMessage("response validation failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(401), fields["status"])
	assert.Equal(t, 1500.0, fields["duration_ms"])
	assert.Equal(t, body[:200], fields["body_preview"])
	assert.Equal(t, "boom", fields["error"])
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview([]byte("short")))
	long := strings.Repeat("é", 250)
	assert.Equal(t, strings.Repeat("é", 200), Preview([]byte(long)))
}
