// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/elastic/loadreplay/internal/config"
	"github.com/elastic/loadreplay/internal/dataset"
)

func TestFreshValuePrepareRequest(t *testing.T) {
	test := NewFreshValueTest(Params{
		Endpoint: config.EndpointConfig{FreshFields: []string{"requestId", "device.id"}},
	})

	original := dataset.Payload(`{"requestId":"old","device":{"id":"d1","os":"ios"}}`)
	first, err := test.PrepareRequest(original)
	require.NoError(t, err)
	second, err := test.PrepareRequest(original)
	require.NoError(t, err)

	assert.Equal(t, `{"requestId":"old","device":{"id":"d1","os":"ios"}}`, original.String())

	for _, p := range []dataset.Payload{first, second} {
		_, err := uuid.Parse(gjson.GetBytes(p, "requestId").String())
		assert.NoError(t, err)
		_, err = uuid.Parse(gjson.GetBytes(p, "device.id").String())
		assert.NoError(t, err)
		assert.Equal(t, "ios", gjson.GetBytes(p, "device.os").String())
	}
	assert.NotEqual(t,
		gjson.GetBytes(first, "requestId").String(),
		gjson.GetBytes(second, "requestId").String(),
	)
}

func TestFreshValueRunIteration(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{}`)
	csv := writeCSV(t, `/orders,"{""orderId"":""o-1"",""amount"":3}"`)

	params := newTestParams(t, srv.URL, csv, config.EndpointConfig{
		Path:        "/orders",
		FreshFields: []string{"orderId"},
	})
	test := NewFreshValueTest(params)
	require.NoError(t, test.Init(context.Background()))

	it, err := RunIteration(context.Background(), test)
	require.NoError(t, err)
	assert.True(t, it.Passed)

	body := rec.last(t).Body
	assert.NotEqual(t, "o-1", gjson.GetBytes(body, "orderId").String())
	assert.Equal(t, int64(3), gjson.GetBytes(body, "amount").Int())
	assert.Equal(t, StateRunning, test.State())
}
