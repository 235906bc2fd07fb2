// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package loadtest contains the per-endpoint replay runner: the hooks an
// iteration is made of, their default implementation, and the factory
// building runners from a service document.
package loadtest

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/loadreplay/internal/dataset"
	"github.com/elastic/loadreplay/internal/validator"
)

// State is the lifecycle position of a Test.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateTornDown:
		return "torn down"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Test is the set of hooks an iteration is made of. BaseTest implements
// all of them, specializations embed *BaseTest and override the hooks
// they need; RunIteration always calls them through this interface.
type Test interface {
	// Init builds the validator and loads the data set. It must run
	// once, before any iteration.
	Init(ctx context.Context) error
	// Teardown ends the lifecycle, no iteration runs afterwards.
	Teardown(ctx context.Context) error
	State() State

	SelectData() dataset.Payload
	// PrepareRequest may transform the payload. It must return a new
	// value instead of modifying p, which is shared.
	PrepareRequest(p dataset.Payload) (dataset.Payload, error)
	BuildHeaders() map[string]string
	BuildURL() string
	MakeRequest(ctx context.Context, url string, p dataset.Payload, headers map[string]string) *validator.Response
	ValidateResponse(r *validator.Response) bool
	HandleError(r *validator.Response)
	// ThinkTime is the pause the caller takes after each iteration.
	ThinkTime() time.Duration

	// Options returns the stage plan and thresholds of the test type the
	// test was created for.
	Options() (Options, error)
}

// Iteration is the outcome of a single RunIteration call.
type Iteration struct {
	URL      string
	Payload  dataset.Payload
	Response *validator.Response
	Passed   bool
}

type runningMarker interface {
	markRunning()
}

// RunIteration executes one iteration of t: select a payload, prepare it,
// build headers and URL, send the request, validate the response and
// handle a failed validation. A failed validation is not an error, it is
// reported through Iteration.Passed.
//
// RunIteration does not pause for the think time, the caller does.
func RunIteration(ctx context.Context, t Test) (Iteration, error) {
	switch state := t.State(); state {
	case StateInitialized, StateRunning:
	default:
		return Iteration{}, fmt.Errorf("%w: state is %s", ErrNotReady, state)
	}
	if m, ok := t.(runningMarker); ok {
		m.markRunning()
	}

	payload, err := t.PrepareRequest(t.SelectData())
	if err != nil {
		return Iteration{}, fmt.Errorf("failed to prepare request: %w", err)
	}
	headers := t.BuildHeaders()
	url := t.BuildURL()

	resp := t.MakeRequest(ctx, url, payload, headers)
	passed := t.ValidateResponse(resp)
	if !passed {
		t.HandleError(resp)
	}
	return Iteration{
		URL:      url,
		Payload:  payload,
		Response: resp,
		Passed:   passed,
	}, nil
}
