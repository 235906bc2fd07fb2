// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/elastic/loadreplay/internal/dataset"
)

// FreshValueTest replays payloads with a new random UUID written at each
// of the endpoint FreshFields paths, for endpoints rejecting duplicate
// identifiers.
type FreshValueTest struct {
	*BaseTest
}

// NewFreshValueTest is a Constructor for FreshValueTest.
func NewFreshValueTest(p Params) Test {
	return &FreshValueTest{BaseTest: NewBaseTest(p)}
}

// PrepareRequest returns a copy of p with the fresh fields rewritten.
func (t *FreshValueTest) PrepareRequest(p dataset.Payload) (dataset.Payload, error) {
	out := make([]byte, len(p))
	copy(out, p)
	for _, path := range t.Endpoint.FreshFields {
		var err error
		out, err = sjson.SetBytes(out, path, uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("failed to set fresh value at %q: %w", path, err)
		}
	}
	return out, nil
}
