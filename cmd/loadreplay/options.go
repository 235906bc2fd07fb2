// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/elastic/loadreplay/internal/dataset"
	"github.com/elastic/loadreplay/internal/loadtest"
)

func newOptionsCmd(newLogger loggerFunc) *cobra.Command {
	options := &testOptions{}
	cmd := cobra.Command{
		Use:   "options",
		Short: "Prints the stages and thresholds of an endpoint without running it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd)
			defer logger.Sync()

			doc, err := options.document()
			if err != nil {
				return err
			}
			ctor, err := loadtest.RunnerByName(options.Runner)
			if err != nil {
				return err
			}
			factory := loadtest.NewFactory(logger, nil, dataset.NewCache(logger))
			test, err := factory.CreateTest(doc, options.Endpoint, options.TestType, ctor)
			if err != nil {
				logger.Error("failed to create test", zap.Error(err))
				return err
			}
			opts, err := test.Options()
			if err != nil {
				return err
			}
			out, err := json.Marshal(opts)
			if err != nil {
				return fmt.Errorf("failed to encode options: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(pretty.Pretty(out))
			return err
		},
	}
	options.register(cmd.Flags())
	return &cmd
}
