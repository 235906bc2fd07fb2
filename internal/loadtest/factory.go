// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"fmt"
	"net/http"
	"sort"

	"go.elastic.co/apm/v2/transport"
	"go.uber.org/zap"

	"github.com/elastic/loadreplay/internal/config"
	"github.com/elastic/loadreplay/internal/dataset"
	"github.com/elastic/loadreplay/pkg/testtype"
)

// maxIdleConns bounds the idle connections of the replay client when the
// transport does not set a limit.
const maxIdleConns = 100

// NewHTTPClient returns the client tests send requests with. The client
// timeout is RequestTimeout whatever the APM agent environment says, and
// idle connections are kept per host so virtual users reuse them instead
// of dialing between iterations.
func NewHTTPClient() (*http.Client, error) {
	// We call the HTTPTransport constructor to reuse its TLS and proxy
	// configuration (ELASTIC_APM_VERIFY_SERVER_CERT, HTTPS_PROXY, ...).
	t, err := transport.NewHTTPTransport(transport.HTTPTransportOptions{
		ServerTimeout: RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create http transport: %w", err)
	}
	client := t.Client
	if ht, ok := client.Transport.(*http.Transport); ok {
		ht = ht.Clone()
		if ht.MaxIdleConns <= 0 {
			ht.MaxIdleConns = maxIdleConns
		}
		ht.MaxIdleConnsPerHost = ht.MaxIdleConns
		client.Transport = ht
	}
	return client, nil
}

// Factory builds tests from a service document. All tests it creates
// share its HTTP client and data set cache.
type Factory struct {
	logger   *zap.Logger
	client   *http.Client
	datasets *dataset.Cache
}

// NewFactory returns a Factory. A nil client uses http.DefaultClient and
// a nil cache is replaced by a new one.
func NewFactory(logger *zap.Logger, client *http.Client, datasets *dataset.Cache) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if datasets == nil {
		datasets = dataset.NewCache(logger)
	}
	return &Factory{
		logger:   logger,
		client:   client,
		datasets: datasets,
	}
}

// CreateTest validates doc, looks up endpointName and builds an
// uninitialized test of the given type with ctor, or NewTest when ctor
// is nil.
func (f *Factory) CreateTest(doc *config.Document, endpointName, testType string, ctor Constructor) (Test, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	tt, err := testtype.FromString(testType)
	if err != nil {
		return nil, &InvalidTestTypeError{Value: testType}
	}
	endpoint, ok := doc.Endpoints[endpointName]
	if !ok {
		return nil, &EndpointNotFoundError{
			Name:      endpointName,
			Available: endpointNames(doc),
		}
	}
	if err := validateEndpoint(endpointName, endpoint); err != nil {
		return nil, err
	}

	if ctor == nil {
		ctor = NewTest
	}
	f.logger.Debug("creating test",
		zap.Object("service", doc.Service),
		zap.String("endpoint", endpointName),
		zap.Stringer("test_type", tt),
	)
	return ctor(Params{
		Service:      *doc.Service,
		EndpointName: endpointName,
		Endpoint:     endpoint,
		TestType:     tt,
		Logger:       f.logger,
		Client:       f.client,
		Datasets:     f.datasets,
	}), nil
}

func validateDocument(doc *config.Document) error {
	switch {
	case doc == nil || doc.Service == nil:
		return config.Missing("service")
	case doc.Service.Name == "":
		return config.Missing("service.name")
	case doc.Service.BaseURL == "":
		return config.Missing("service.baseUrl")
	case len(doc.Endpoints) == 0:
		return config.Missing("endpoints")
	}
	return nil
}

func validateEndpoint(name string, e config.EndpointConfig) error {
	field := func(f string) string {
		return fmt.Sprintf("endpoints.%s.%s", name, f)
	}
	switch {
	case e.Path == "":
		return config.Missing(field("path"))
	case e.DataSource == nil:
		return config.Missing(field("dataSource"))
	case e.Validation == nil:
		return config.Missing(field("validation"))
	case len(e.LoadProfiles) == 0:
		return config.Missing(field("loadProfiles"))
	}
	switch e.ContentEncoding {
	case "", "gzip", "deflate", "zstd":
	default:
		return config.Invalid(field("contentEncoding"), "expected one of gzip, deflate, zstd")
	}
	return nil
}

func endpointNames(doc *config.Document) []string {
	names := make([]string, 0, len(doc.Endpoints))
	for name := range doc.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runners maps runner names to their constructors.
var Runners = map[string]Constructor{
	"default": NewTest,
	"fresh":   NewFreshValueTest,
}

// RunnerByName returns the constructor registered under name.
func RunnerByName(name string) (Constructor, error) {
	ctor, ok := Runners[name]
	if !ok {
		names := make([]string, 0, len(Runners))
		for n := range Runners {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown runner %q, expected one of: %v", name, names)
	}
	return ctor, nil
}
