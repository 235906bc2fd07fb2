// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package dataset loads recorded production requests from CSV files into
// immutable, shareable data sets used as replay fixtures.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/elastic/loadreplay/internal/config"
)

// EndpointColumn is the CSV column matched against DataSourceConfig.FilterByEndpoint.
const EndpointColumn = "api_endpoint"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Payload is one JSON-encoded request body. It is shared between all
// virtual users and must never be modified in place.
type Payload []byte

// String returns the JSON text of the payload.
func (p Payload) String() string {
	return string(p)
}

// Dataset is an ordered, read-only sequence of payloads.
//
// It is safe for concurrent use since nothing mutates it after load.
type Dataset struct {
	name     string
	payloads []Payload
}

// Name returns the identity the data set was loaded under.
func (d *Dataset) Name() string {
	return d.name
}

// Len returns the number of payloads.
func (d *Dataset) Len() int {
	return len(d.payloads)
}

// At returns the i-th payload.
func (d *Dataset) At(i int) Payload {
	return d.payloads[i]
}

// EmptyDatasetError is returned when no payload survives filtering and
// parsing. A runner without data cannot execute iterations.
type EmptyDatasetError struct {
	Name   string
	Path   string
	Filter string
}

func (e *EmptyDatasetError) Error() string {
	msg := fmt.Sprintf("dataset %q: no valid payloads in %s", e.Name, e.Path)
	if e.Filter != "" {
		msg += fmt.Sprintf(" matching endpoint %q", e.Filter)
	}
	return msg
}

// IOError is returned when the CSV file cannot be read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to read data source %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// load reads cfg.Path in one go and turns it into a Dataset.
func load(cfg config.DataSourceConfig, name string, logger *zap.Logger) (*Dataset, error) {
	switch {
	case cfg.Path == "":
		return nil, config.Missing("dataSource.path")
	case cfg.RequestColumn == "":
		return nil, config.Missing("dataSource.requestColumn")
	case name == "":
		return nil, config.Missing("dataset name")
	}
	comma := ','
	if cfg.Delimiter != "" {
		if len(cfg.Delimiter) != 1 {
			return nil, config.Invalid("dataSource.delimiter", "must be a single character")
		}
		comma = rune(cfg.Delimiter[0])
	}

	content, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, &IOError{Path: cfg.Path, Err: err}
	}
	content = bytes.TrimPrefix(content, utf8BOM)

	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &EmptyDatasetError{Name: name, Path: cfg.Path, Filter: cfg.FilterByEndpoint}
		}
		return nil, &IOError{Path: cfg.Path, Err: err}
	}
	requestIdx := indexOf(header, cfg.RequestColumn)
	if requestIdx < 0 {
		return nil, config.Invalid("dataSource.requestColumn",
			fmt.Sprintf("column %q not found in %s", cfg.RequestColumn, cfg.Path))
	}
	endpointIdx := -1
	if cfg.FilterByEndpoint != "" {
		if endpointIdx = indexOf(header, EndpointColumn); endpointIdx < 0 {
			return nil, config.Invalid("dataSource.filterByEndpoint",
				fmt.Sprintf("column %q not found in %s", EndpointColumn, cfg.Path))
		}
	}

	var (
		payloads []Payload
		seen     map[string]struct{}
		rows     int
	)
	if cfg.Deduplicate {
		seen = make(map[string]struct{})
	}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &IOError{Path: cfg.Path, Err: err}
		}
		rows++
		if endpointIdx >= 0 && !matchesEndpoint(field(row, endpointIdx), cfg.FilterByEndpoint) {
			continue
		}
		cell := strings.TrimSpace(field(row, requestIdx))
		if cell == "" {
			continue
		}
		if !gjson.Valid(cell) {
			line, _ := r.FieldPos(0)
			logger.Warn("skipping row with invalid JSON payload",
				zap.String("dataset", name),
				zap.Int("line", line),
			)
			continue
		}
		payload := Payload(cell)
		if seen != nil {
			key := string(pretty.Ugly(payload))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		payloads = append(payloads, payload)
	}

	if len(payloads) == 0 {
		return nil, &EmptyDatasetError{Name: name, Path: cfg.Path, Filter: cfg.FilterByEndpoint}
	}
	logger.Info("loaded dataset",
		zap.String("dataset", name),
		zap.Int("rows", rows),
		zap.Int("payloads", len(payloads)),
	)
	return &Dataset{name: name, payloads: payloads}, nil
}

// matchesEndpoint accepts an exact match first and falls back to a
// substring match, so "/login" also selects "/auth/v2/login?x=1".
func matchesEndpoint(value, filter string) bool {
	return value == filter || strings.Contains(value, filter)
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
