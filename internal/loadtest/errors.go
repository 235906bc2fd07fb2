// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/loadreplay/pkg/testtype"
)

// ErrNotReady is returned by RunIteration when the test was not
// initialized or has already been torn down.
var ErrNotReady = errors.New("test is not ready to run iterations")

// UnsupportedMethodError is returned for endpoint methods other than
// GET, POST, PUT, PATCH and DELETE.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported HTTP method %q", e.Method)
}

// InvalidTestTypeError is returned by the factory for unknown test types.
type InvalidTestTypeError struct {
	Value string
}

func (e *InvalidTestTypeError) Error() string {
	return fmt.Sprintf("invalid test type %q, expected one of: smoke, load", e.Value)
}

// Unwrap allows matching the error with testtype.ErrInvalid.
func (e *InvalidTestTypeError) Unwrap() error {
	return testtype.ErrInvalid
}

// EndpointNotFoundError is returned when the requested endpoint is not
// declared in the service document.
type EndpointNotFoundError struct {
	Name      string
	Available []string
}

func (e *EndpointNotFoundError) Error() string {
	return fmt.Sprintf("endpoint %q not found, available endpoints: %s",
		e.Name, strings.Join(e.Available, ", "))
}

// MissingLoadProfileError is returned by Options when the endpoint has no
// load profile for the requested test type.
type MissingLoadProfileError struct {
	Endpoint string
	TestType testtype.TestType
}

func (e *MissingLoadProfileError) Error() string {
	return fmt.Sprintf("endpoint %q has no %q load profile", e.Endpoint, e.TestType)
}
