// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClientIgnoresAgentTimeout(t *testing.T) {
	t.Setenv("ELASTIC_APM_SERVER_TIMEOUT", "2s")

	client, err := NewHTTPClient()
	require.NoError(t, err)
	assert.Equal(t, RequestTimeout, client.Timeout)
}

func TestNewHTTPClientKeepsIdleConnsPerHost(t *testing.T) {
	client, err := NewHTTPClient()
	require.NoError(t, err)

	ht, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Positive(t, ht.MaxIdleConnsPerHost)
	assert.Equal(t, ht.MaxIdleConns, ht.MaxIdleConnsPerHost)
}

func TestNewHTTPClientReusesConnections(t *testing.T) {
	var dialed atomic.Int64
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			dialed.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	client, err := NewHTTPClient()
	require.NoError(t, err)

	const (
		workers  = 10
		requests = 20
	)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < requests; j++ {
				req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
				if !assert.NoError(t, err) {
					return
				}
				res, err := client.Do(req)
				if !assert.NoError(t, err) {
					return
				}
				io.Copy(io.Discard, res.Body)
				res.Body.Close()
				time.Sleep(5 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	// One connection per worker, with some slack for dial races.
	assert.LessOrEqual(t, dialed.Load(), int64(2*workers))
}
