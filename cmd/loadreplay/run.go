// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elastic/loadreplay/internal/dataset"
	"github.com/elastic/loadreplay/internal/executor"
	"github.com/elastic/loadreplay/internal/loadtest"
	"github.com/elastic/loadreplay/internal/metrics"
	"github.com/elastic/loadreplay/internal/telemetry"
)

type runOptions struct {
	testOptions
	MaxRate        loadtest.IterationRate
	MetricsAddr    string
	SummaryExport  string
	APMServerURL   string
	APMSecretToken string
	APMAPIKey      string
}

func newRunCmd(newLogger loggerFunc) *cobra.Command {
	options := &runOptions{}
	cmd := cobra.Command{
		Use:   "run",
		Short: "Replays the recorded requests of an endpoint and checks the run thresholds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd)
			defer logger.Sync()
			return run(cmd.Context(), logger, options)
		},
	}
	options.register(cmd.Flags())
	cmd.Flags().Var(&options.MaxRate, "max-rate", "Cap the iteration rate across virtual users, in the format <iterations>/<time>. 0 disables the cap")
	cmd.Flags().StringVar(&options.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics of the run on this address")
	cmd.Flags().StringVar(&options.SummaryExport, "summary-export", "", "Write the run summary as JSON to this file")
	cmd.Flags().StringVar(&options.APMServerURL, "apm-server-url", "", "Trace iterations to this APM Server")
	cmd.Flags().StringVar(&options.APMSecretToken, "apm-secret-token", "", "Secret token for the APM Server")
	cmd.Flags().StringVar(&options.APMAPIKey, "apm-api-key", "", "API key for the APM Server")
	return &cmd
}

func run(ctx context.Context, logger *zap.Logger, options *runOptions) error {
	doc, err := options.document()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return err
	}
	ctor, err := loadtest.RunnerByName(options.Runner)
	if err != nil {
		return err
	}
	client, err := loadtest.NewHTTPClient()
	if err != nil {
		return err
	}

	factory := loadtest.NewFactory(logger, client, dataset.NewCache(logger))
	test, err := factory.CreateTest(doc, options.Endpoint, options.TestType, ctor)
	if err != nil {
		logger.Error("failed to create test", zap.Error(err))
		return err
	}
	opts, err := test.Options()
	if err != nil {
		logger.Error("failed to build options", zap.Error(err))
		return err
	}
	thresholds, err := metrics.ParseThresholds(opts.Thresholds)
	if err != nil {
		logger.Error("invalid thresholds", zap.Error(err))
		return err
	}

	labels := metrics.Labels{
		Service:  doc.Service.Name,
		Endpoint: options.Endpoint,
		TestType: options.TestType,
	}
	recorder := metrics.NewRecorder(labels, metrics.Quantiles(thresholds)...)
	if options.MetricsAddr != "" {
		stop, err := serveMetrics(options.MetricsAddr, recorder, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	cfg := executor.Config{
		Stages:   opts.Stages,
		Limiter:  options.MaxRate.Limiter(),
		Recorder: recorder,
		Logger:   logger,
	}
	if options.APMServerURL != "" {
		serverURL, err := url.Parse(options.APMServerURL)
		if err != nil {
			return fmt.Errorf("invalid apm server url: %w", err)
		}
		tracer, err := telemetry.NewTracer(telemetry.Config{
			ServerURL:   serverURL,
			SecretToken: options.APMSecretToken,
			APIKey:      options.APMAPIKey,
			Environment: doc.Service.Environment,
		})
		if err != nil {
			return err
		}
		defer tracer.Close()
		defer tracer.Flush(nil)
		cfg.Tracer = tracer
	}
	exec, err := executor.New(test, options.Endpoint, cfg)
	if err != nil {
		logger.Error("invalid load profile", zap.Error(err))
		return err
	}

	if err := test.Init(ctx); err != nil {
		logger.Error("failed to initialize test", zap.Error(err))
		return err
	}
	runErr := exec.Run(ctx)
	if err := test.Teardown(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("failed to tear down test", zap.Error(err))
	}
	switch {
	case errors.Is(runErr, context.Canceled):
		logger.Warn("run interrupted, evaluating thresholds on partial results")
	case runErr != nil:
		return runErr
	}

	snapshot := recorder.Snapshot()
	results := metrics.Evaluate(thresholds, snapshot)
	for _, r := range results {
		if r.Passed {
			logger.Info("threshold passed", zap.Object("threshold", r))
		} else {
			logger.Error("threshold failed", zap.Object("threshold", r))
		}
	}
	if options.SummaryExport != "" {
		if err := metrics.ExportSummary(options.SummaryExport, labels, snapshot, results); err != nil {
			return err
		}
	}
	if !metrics.AllPassed(results) {
		return errThresholdsFailed
	}
	return runErr
}

func serveMetrics(addr string, recorder *metrics.Recorder, logger *zap.Logger) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", lis.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
