// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/elastic/loadreplay/internal/version"
)

const envVarPrefix = "LOADREPLAY_"

// thresholdsExitCode is the exit code of a run whose thresholds failed.
const thresholdsExitCode = 99

var errThresholdsFailed = errors.New("some thresholds have failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		switch {
		case errors.Is(err, errThresholdsFailed):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(thresholdsExitCode)
		case errors.Is(err, context.Canceled):
		default:
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	rootCmd := &cobra.Command{
		Use:              "loadreplay",
		Short:            "Replays recorded production requests against HTTP endpoints",
		TraverseChildren: true,
		SilenceUsage:     true,
		SilenceErrors:    true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmd.Flags().VisitAll(func(flag *pflag.Flag) {
				optionName := strings.ToUpper(flag.Name)
				optionName = strings.ReplaceAll(optionName, "-", "_")
				envVar := envVarPrefix + optionName
				if val, ok := os.LookupEnv(envVar); !flag.Changed && ok {
					if flagErr := flag.Value.Set(val); flagErr != nil {
						err = fmt.Errorf("invalid environment variable %s: %w", envVar, flagErr)
					}
				}
			})
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Specify the log level to use. Supported values: debug, info, warn, error")

	newLogger := func(cmd *cobra.Command) *zap.Logger {
		return getLogger(cmd.ErrOrStderr(), logLevel)
	}
	rootCmd.AddCommand(newRunCmd(newLogger))
	rootCmd.AddCommand(newOptionsCmd(newLogger))
	rootCmd.AddCommand(newValidateCmd(newLogger))
	rootCmd.AddCommand(newExtractCmd(newLogger))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show current version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s/%s)\n",
				version.String(), runtime.GOOS, runtime.GOARCH,
			)
		},
	})
	return rootCmd
}

type loggerFunc func(cmd *cobra.Command) *zap.Logger

func getLogger(out io.Writer, logLevel string) *zap.Logger {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zap.InfoLevel
	}

	return zap.New(ecszap.NewCore(
		ecszap.NewDefaultEncoderConfig(), zapcore.AddSync(out), level,
	), zap.AddCaller())
}

type headersFlag map[string]string

func (f headersFlag) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		keys[i] = fmt.Sprintf("%s=%s", k, f[k])
	}
	return strings.Join(keys, ",")
}

func (f headersFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected k=v, got %q", s)
	}
	f[k] = v
	return nil
}

func (f headersFlag) Type() string { return "k=v" }
