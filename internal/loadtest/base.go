// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.elastic.co/apm/v2"
	"go.uber.org/zap"

	"github.com/elastic/loadreplay/internal/config"
	"github.com/elastic/loadreplay/internal/dataset"
	"github.com/elastic/loadreplay/internal/validator"
	"github.com/elastic/loadreplay/pkg/testtype"
)

// RequestTimeout bounds every request, including reading the body.
const RequestTimeout = 30 * time.Second

// Params holds everything a Constructor needs to build a Test.
type Params struct {
	Service      config.ServiceConfig
	EndpointName string
	Endpoint     config.EndpointConfig
	TestType     testtype.TestType

	Logger   *zap.Logger
	Client   *http.Client
	Datasets *dataset.Cache
}

// Constructor builds a Test. The factory uses NewTest when none is given.
type Constructor func(Params) Test

// NewTest is the default Constructor.
func NewTest(p Params) Test {
	return NewBaseTest(p)
}

// BaseTest is the default implementation of every Test hook.
// Specializations embed *BaseTest and override single hooks.
type BaseTest struct {
	Service      config.ServiceConfig
	EndpointName string
	Endpoint     config.EndpointConfig
	TestType     testtype.TestType

	logger   *zap.Logger
	client   *http.Client
	datasets *dataset.Cache

	state     atomic.Int32
	validator *validator.Validator
	data      *dataset.Dataset
}

// NewBaseTest returns an uninitialized BaseTest.
func NewBaseTest(p Params) *BaseTest {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	datasets := p.Datasets
	if datasets == nil {
		datasets = dataset.NewCache(logger)
	}
	return &BaseTest{
		Service:      p.Service,
		EndpointName: p.EndpointName,
		Endpoint:     p.Endpoint,
		TestType:     p.TestType,
		logger: logger.Named("loadtest").With(
			zap.String("service", p.Service.Name),
			zap.String("endpoint", p.EndpointName),
			zap.Stringer("test_type", p.TestType),
		),
		client:   client,
		datasets: datasets,
	}
}

// Logger returns the test logger.
func (b *BaseTest) Logger() *zap.Logger {
	return b.logger
}

// Dataset returns the loaded data set, nil before Init.
func (b *BaseTest) Dataset() *dataset.Dataset {
	return b.data
}

// Validator returns the response validator, nil before Init.
func (b *BaseTest) Validator() *validator.Validator {
	return b.validator
}

func (b *BaseTest) State() State {
	return State(b.state.Load())
}

// DatasetName identifies the endpoint data set in the shared cache.
func (b *BaseTest) DatasetName() string {
	return b.Service.Name + "/" + b.EndpointName
}

func (b *BaseTest) Init(ctx context.Context) error {
	if state := b.State(); state != StateUninitialized {
		return fmt.Errorf("cannot initialize test: state is %s", state)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	method := b.Endpoint.HTTPMethod()
	if !supportedMethod(method) {
		return &UnsupportedMethodError{Method: method}
	}
	if b.Endpoint.DataSource == nil {
		return config.Missing(fmt.Sprintf("endpoints.%s.dataSource", b.EndpointName))
	}

	var cfg config.ValidationConfig
	if b.Endpoint.Validation != nil {
		cfg = *b.Endpoint.Validation
	}
	b.validator = validator.New(cfg, b.logger)

	data, err := b.datasets.Load(*b.Endpoint.DataSource, b.DatasetName())
	if err != nil {
		return fmt.Errorf("failed to load data for endpoint %s: %w", b.EndpointName, err)
	}
	b.data = data
	b.state.Store(int32(StateInitialized))

	b.logger.Info("test initialized",
		zap.String("url", b.BuildURL()),
		zap.String("method", method),
		zap.Int("payloads", data.Len()),
		zap.Strings("checks", b.validator.Checks()),
	)
	return nil
}

func (b *BaseTest) markRunning() {
	b.state.CompareAndSwap(int32(StateInitialized), int32(StateRunning))
}

func (b *BaseTest) Teardown(ctx context.Context) error {
	prev := State(b.state.Swap(int32(StateTornDown)))
	if prev != StateTornDown {
		b.logger.Info("test torn down")
	}
	return nil
}

// SelectData returns a uniformly random payload of the data set.
func (b *BaseTest) SelectData() dataset.Payload {
	return b.data.At(rand.IntN(b.data.Len()))
}

// PrepareRequest returns p unchanged.
func (b *BaseTest) PrepareRequest(p dataset.Payload) (dataset.Payload, error) {
	return p, nil
}

// BuildHeaders returns a copy of the endpoint headers.
func (b *BaseTest) BuildHeaders() map[string]string {
	headers := make(map[string]string, len(b.Endpoint.Headers))
	for k, v := range b.Endpoint.Headers {
		headers[k] = v
	}
	return headers
}

// BuildURL joins the service base URL and the endpoint path with exactly
// one slash.
func (b *BaseTest) BuildURL() string {
	return joinURL(b.Service.BaseURL, b.Endpoint.Path)
}

func joinURL(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// MakeRequest sends p to url. Transport failures, timeouts included, are
// reported through Response.Err with a zero status.
func (b *BaseTest) MakeRequest(ctx context.Context, url string, p dataset.Payload, headers map[string]string) *validator.Response {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	method := b.Endpoint.HTTPMethod()
	span, ctx := apm.StartSpan(ctx, method+" "+b.Endpoint.Path, "external.http")
	defer span.End()

	req, err := newRequest(ctx, method, url, p, headers, b.Endpoint.ContentEncoding)
	if err != nil {
		return &validator.Response{Err: err}
	}
	span.Context.SetHTTPRequest(req)

	start := time.Now()
	res, err := b.client.Do(req)
	if err != nil {
		return &validator.Response{Err: err, Duration: time.Since(start)}
	}
	defer res.Body.Close()
	span.Context.SetHTTPStatusCode(res.StatusCode)

	body, err := io.ReadAll(res.Body)
	resp := &validator.Response{
		Status:   res.StatusCode,
		Body:     body,
		Duration: time.Since(start),
	}
	if err != nil {
		resp.Err = fmt.Errorf("failed to read response body: %w", err)
	}
	return resp
}

func (b *BaseTest) ValidateResponse(r *validator.Response) bool {
	return b.validator.Validate(r)
}

// HandleError logs the failed iteration. It never retries.
func (b *BaseTest) HandleError(r *validator.Response) {
	fields := []zap.Field{
		zap.Int("status", r.Status),
		zap.Float64("duration_ms", float64(r.Duration)/float64(time.Millisecond)),
	}
	if r.Err != nil {
		fields = append(fields, zap.Error(r.Err))
		var deadline interface{ Timeout() bool }
		if errors.As(r.Err, &deadline) && deadline.Timeout() {
			fields = append(fields, zap.Bool("timeout", true))
		}
	}
	b.logger.Error("request failed", fields...)
}

func (b *BaseTest) ThinkTime() time.Duration {
	return b.Endpoint.ThinkTimeDuration()
}

func (b *BaseTest) Options() (Options, error) {
	return BuildOptions(b.EndpointName, b.Endpoint, b.TestType)
}
