// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elastic/loadreplay/internal/logextract"
)

func newExtractCmd(newLogger loggerFunc) *cobra.Command {
	var input, output string
	cmd := cobra.Command{
		Use:   "extract",
		Short: "Builds a replay CSV from API_LOGGING lines of a JSON lines log export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd)
			defer logger.Sync()
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			if output == "" {
				output = defaultExtractOutput(time.Now())
			}

			f, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("failed to open logs: %w", err)
			}
			defer f.Close()
			records, _, err := logextract.New(logger).Extract(f)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				logger.Warn("no api logs found, nothing written", zap.String("input", input))
				return nil
			}

			if output == "-" {
				return logextract.WriteCSV(cmd.OutOrStdout(), records)
			}
			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := logextract.WriteCSV(out, records); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", output, err)
			}
			logger.Info("saved api logs", zap.String("output", output), zap.Int("records", len(records)))
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "JSON lines log export to read")
	cmd.Flags().StringVar(&output, "output", "", "CSV file to write, - for stdout. Defaults to api_logs_<timestamp>.csv")
	return &cmd
}

func defaultExtractOutput(now time.Time) string {
	return "api_logs_" + now.Format("20060102_150405") + ".csv"
}
