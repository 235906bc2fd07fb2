// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package telemetry instruments loadreplay itself with Elastic APM.
package telemetry

import (
	"fmt"
	"net/url"

	"go.elastic.co/apm/v2"
	"go.elastic.co/apm/v2/transport"

	"github.com/elastic/loadreplay/internal/version"
)

// ServiceName is the APM service name runs are reported under.
const ServiceName = "loadreplay"

// TransactionType is the type of the transaction recorded per iteration.
const TransactionType = "loadtest.iteration"

// Config points at the APM Server receiving the self-instrumentation.
type Config struct {
	ServerURL   *url.URL
	SecretToken string
	APIKey      string
	// Environment is reported as the service environment, usually the
	// environment of the service under test.
	Environment string
}

// NewTracer returns a tracer sending to cfg.ServerURL. The caller must
// close it.
func NewTracer(cfg Config) (*apm.Tracer, error) {
	if cfg.ServerURL == nil {
		return nil, fmt.Errorf("apm server url is required")
	}
	httpTransport, err := transport.NewHTTPTransport(transport.HTTPTransportOptions{
		ServerURLs:  []*url.URL{cfg.ServerURL},
		APIKey:      cfg.APIKey,
		SecretToken: cfg.SecretToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create apm transport: %w", err)
	}
	tracer, err := apm.NewTracerOptions(apm.TracerOptions{
		ServiceName:        ServiceName,
		ServiceVersion:     version.Version,
		ServiceEnvironment: cfg.Environment,
		Transport:          httpTransport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create apm tracer: %w", err)
	}
	return tracer, nil
}
