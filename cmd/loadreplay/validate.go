// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elastic/loadreplay/internal/config"
	"github.com/elastic/loadreplay/internal/dataset"
	"github.com/elastic/loadreplay/internal/executor"
	"github.com/elastic/loadreplay/internal/loadtest"
	"github.com/elastic/loadreplay/internal/metrics"
	"github.com/elastic/loadreplay/pkg/testtype"
)

func newValidateCmd(newLogger loggerFunc) *cobra.Command {
	var configPath string
	cmd := cobra.Command{
		Use:   "validate",
		Short: "Checks a service config against the schema and instantiates every endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd)
			defer logger.Sync()
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			problems, err := validateConfig(configPath, logger)
			if err != nil {
				return err
			}
			for _, p := range problems {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("config %s has %d problem(s)", configPath, len(problems))
			}
			logger.Info("config is valid", zap.String("path", configPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path of the service config, JSON or YAML")
	return &cmd
}

// validateConfig returns schema violations followed by the errors of
// instantiating every endpoint with every test type it declares.
// Datasets are not loaded.
func validateConfig(path string, logger *zap.Logger) ([]string, error) {
	raw, err := config.ReadJSON(path)
	if err != nil {
		return nil, err
	}
	problems, err := config.Lint(raw)
	if err != nil {
		return nil, err
	}
	doc, err := config.Parse(raw)
	if err != nil {
		return append(problems, err.Error()), nil
	}

	factory := loadtest.NewFactory(logger, nil, dataset.NewCache(logger))
	names := make([]string, 0, len(doc.Endpoints))
	for name := range doc.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		if _, err := factory.CreateTest(doc, "", testtype.Smoke.String(), nil); err != nil {
			problems = append(problems, err.Error())
		}
	}
	for _, name := range names {
		var testTypes []string
		for _, tt := range testtype.All() {
			if _, ok := doc.Endpoints[name].LoadProfiles[tt.String()]; ok {
				testTypes = append(testTypes, tt.String())
			}
		}
		if len(testTypes) == 0 {
			testTypes = []string{testtype.Smoke.String()}
		}
		for _, tt := range testTypes {
			test, err := factory.CreateTest(doc, name, tt, nil)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s/%s: %v", name, tt, err))
				continue
			}
			opts, err := test.Options()
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s/%s: %v", name, tt, err))
				continue
			}
			if _, err := executor.NewSchedule(opts.Stages); err != nil {
				problems = append(problems, fmt.Sprintf("%s/%s: %v", name, tt, err))
			}
			if _, err := metrics.ParseThresholds(opts.Thresholds); err != nil {
				problems = append(problems, fmt.Sprintf("%s/%s: %v", name, tt, err))
			}
		}
	}
	return problems, nil
}
