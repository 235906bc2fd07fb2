// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/elastic/loadreplay/internal/config"
)

// testOptions selects the endpoint and test type a command works on.
type testOptions struct {
	ConfigPath string
	Endpoint   string
	TestType   string
	Runner     string
	BaseURL    string
	Headers    map[string]string
}

func (o *testOptions) register(flags *pflag.FlagSet) {
	o.Headers = make(map[string]string)
	flags.StringVar(&o.ConfigPath, "config", "", "Path of the service config, JSON or YAML")
	flags.StringVar(&o.Endpoint, "endpoint", "", "Name of the endpoint to test")
	flags.StringVar(&o.TestType, "type", "smoke", "Test type. Supported values: smoke, load")
	flags.StringVar(&o.Runner, "runner", "default", "Runner to use. Supported values: default, fresh")
	flags.StringVar(&o.BaseURL, "base-url", "", "Override the base URL of the service")
	flags.Var(headersFlag(o.Headers), "header", "Extra headers to send. Can be specified multiple times")
}

// document loads the service config and applies the overrides.
func (o *testOptions) document() (*config.Document, error) {
	if o.ConfigPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	if o.Endpoint == "" {
		return nil, fmt.Errorf("--endpoint is required")
	}
	doc, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.BaseURL != "" && doc.Service != nil {
		doc.Service.BaseURL = o.BaseURL
	}
	if e, ok := doc.Endpoints[o.Endpoint]; ok && len(o.Headers) > 0 {
		headers := make(map[string]string, len(e.Headers)+len(o.Headers))
		for k, v := range e.Headers {
			headers[k] = v
		}
		for k, v := range o.Headers {
			headers[k] = v
		}
		e.Headers = headers
		doc.Endpoints[o.Endpoint] = e
	}
	return doc, nil
}
