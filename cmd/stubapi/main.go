// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"flag"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/elastic/loadreplay/internal/config"
	"github.com/elastic/loadreplay/internal/stubapi"
)

func main() {
	logLevel := zap.LevelFlag(
		"loglevel", zapcore.InfoLevel,
		"set log level to one of: DEBUG, INFO (default), WARN, ERROR, DPANIC, PANIC, FATAL",
	)
	configPath := flag.String("config", "", "service config whose endpoints are served, all paths are served when empty")
	username := flag.String("username", "", "basic authentication username")
	password := flag.String("password", "", "basic authentication password")
	latency := flag.Duration("latency", 0, "delay added to every response")
	errorRate := flag.Float64("error-rate", 0, "fraction of requests answered with a 500")
	port := flag.Int("port", 8080, "http port to listen on")
	flag.Parse()
	zapcfg := zap.NewProductionConfig()
	zapcfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	zapcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapcfg.Encoding = "console"
	zapcfg.Level = zap.NewAtomicLevelAt(*logLevel)
	logger, err := zapcfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	options := []stubapi.Option{
		stubapi.WithLogger(logger),
		stubapi.WithLatency(*latency),
		stubapi.WithErrorRate(*errorRate),
	}
	if *configPath != "" {
		doc, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
		options = append(options, stubapi.WithDocument(doc))
	}
	if *username != "" && *password != "" {
		options = append(options, stubapi.WithAuth(*username, *password))
	}
	s := http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: stubapi.NewHandler(options...),
	}
	logger.Info("listening", zap.String("addr", s.Addr))
	if err := s.ListenAndServe(); err != nil {
		logger.Fatal("listen error", zap.Error(err))
	}
}
