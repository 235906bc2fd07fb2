// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package testtype exposes the load profiles a replay run can be started with.
//
// This is a separate package to allow reusing it across the CLI, the factory
// and the executor without forcing dependencies between them.
package testtype

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned when a string does not name a known test type.
var ErrInvalid = errors.New("invalid test type")

// TestType selects which load profile of an endpoint is executed.
type TestType string

const (
	// Smoke runs the short, low-concurrency profile used to verify
	// that an endpoint and its data set work at all.
	Smoke TestType = "smoke"
	// Load runs the sustained ramp-up/plateau/ramp-down profile.
	Load TestType = "load"
)

// All lists the supported test types in display order.
func All() []TestType {
	return []TestType{Smoke, Load}
}

// FromString returns the TestType matching s.
//
// Valid values are "smoke" and "load"; anything else returns an error
// wrapping ErrInvalid.
func FromString(s string) (TestType, error) {
	switch TestType(s) {
	case Smoke:
		return Smoke, nil
	case Load:
		return Load, nil
	}
	return "", fmt.Errorf("%w %q, expected one of: smoke, load", ErrInvalid, s)
}

func (t TestType) String() string {
	return string(t)
}
