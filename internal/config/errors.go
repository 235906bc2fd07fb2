// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package config

import "fmt"

// ConfigError reports a missing or invalid configuration field. It is
// always fatal: no traffic is sent once one is returned.
type ConfigError struct {
	// Field is the dotted name of the offending field, e.g. "service.baseUrl".
	Field string
	// Reason is empty when the field is missing.
	Reason string
}

// Missing returns a ConfigError for an absent required field.
func Missing(field string) *ConfigError {
	return &ConfigError{Field: field}
}

// Invalid returns a ConfigError for a field holding an unusable value.
func Invalid(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config: missing required field %q", e.Field)
	}
	return fmt.Sprintf("config: invalid field %q: %s", e.Field, e.Reason)
}
