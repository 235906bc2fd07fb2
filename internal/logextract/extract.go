// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package logextract turns JSON lines exports of application logs into
// the CSV files load tests replay. API calls are logged by the services
// as an "API_LOGGING: {request_url=..., api_method=..., request_body=...}"
// message, shipped either through CloudWatch or Coralogix.
package logextract

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

const (
	marker = "API_LOGGING:"

	maxLineSize = 16 * 1024 * 1024
)

// Columns is the header of the generated CSV.
var Columns = []string{
	"timestamp",
	"log_id",
	"request_id",
	"trace_id",
	"pod_name",
	"thread",
	"api_endpoint",
	"http_method",
	"request_json",
	"response_json",
	"status_code",
	"duration_ms",
}

// Record is one logged API call.
type Record struct {
	Timestamp    string
	LogID        string
	RequestID    string
	TraceID      string
	PodName      string
	Thread       string
	APIEndpoint  string
	HTTPMethod   string
	RequestJSON  string
	ResponseJSON string
	StatusCode   string
	DurationMS   string
}

// Row returns the record fields in Columns order.
func (r Record) Row() []string {
	return []string{
		r.Timestamp,
		r.LogID,
		r.RequestID,
		r.TraceID,
		r.PodName,
		r.Thread,
		r.APIEndpoint,
		r.HTTPMethod,
		r.RequestJSON,
		r.ResponseJSON,
		r.StatusCode,
		r.DurationMS,
	}
}

// Stats counts what an extraction went through.
type Stats struct {
	Lines   int
	Entries int
	Records int
	Skipped int
}

// Extractor reads JSON lines log exports.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger.Named("logextract")}
}

// Extract returns the API calls found in r. Lines that are not valid
// JSON or entries that cannot be decoded are logged and skipped.
func (e *Extractor) Extract(r io.Reader) ([]Record, Stats, error) {
	var (
		records []Record
		stats   Stats
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0
	add := func(rec Record, ok bool, err error) {
		stats.Entries++
		if err != nil {
			e.logger.Warn("skipping log entry", zap.Int("line", lineNum), zap.Error(err))
			stats.Skipped++
			return
		}
		if !ok {
			return
		}
		records = append(records, rec)
		stats.Records++
		if stats.Records%100 == 0 {
			e.logger.Debug("extraction progress",
				zap.Int("lines", stats.Lines),
				zap.Int("entries", stats.Entries),
				zap.Int("records", stats.Records),
			)
		}
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		stats.Lines++
		if !gjson.ValidBytes(line) {
			e.logger.Warn("skipping line with invalid JSON", zap.Int("line", lineNum))
			stats.Skipped++
			continue
		}

		entry := gjson.ParseBytes(line)
		if results := entry.Get("result.results").Array(); len(results) > 0 {
			for _, item := range results {
				add(parseCoralogix(item))
			}
			continue
		}
		add(parseCloudWatch(entry))
	}
	if err := scanner.Err(); err != nil {
		return records, stats, fmt.Errorf("failed to read logs at line %d: %w", lineNum+1, err)
	}
	e.logger.Info("extracted api logs",
		zap.Int("lines", stats.Lines),
		zap.Int("entries", stats.Entries),
		zap.Int("records", stats.Records),
		zap.Int("skipped", stats.Skipped),
	)
	return records, stats, nil
}

// parseCloudWatch decodes an entry of the form
// {"date": ..., "log_obj": {"log": ..., "X-Request-ID": ...}, "kubernetes.pod_name": ...}.
func parseCloudWatch(entry gjson.Result) (Record, bool, error) {
	logObj := entry.Get("log_obj")
	if !logObj.Exists() {
		return Record{}, false, nil
	}
	return parseMessage(logObj.Get("log").String(), Record{
		Timestamp: entry.Get("date").String(),
		LogID:     logObj.Get("X-Request-ID").String(),
		PodName:   entry.Get(`kubernetes\.pod_name`).String(),
	})
}

// parseCoralogix decodes one item of a Coralogix "result.results" array:
// metadata and labels are key/value lists, userData is a JSON string.
func parseCoralogix(item gjson.Result) (Record, bool, error) {
	metadata := make(map[string]string)
	for _, kv := range item.Get("metadata").Array() {
		metadata[kv.Get("key").String()] = kv.Get("value").String()
	}

	userData := "{}"
	if v := item.Get("userData"); v.Exists() {
		userData = v.String()
	}
	if !gjson.Valid(userData) {
		return Record{}, false, fmt.Errorf("invalid userData JSON")
	}
	data := gjson.Parse(userData)

	return parseMessage(data.Get("log").String(), Record{
		Timestamp: metadata["timestamp"],
		LogID:     metadata["logid"],
		PodName:   data.Get("kubernetes.pod_name").String(),
	})
}

func parseMessage(msg string, rec Record) (Record, bool, error) {
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return Record{}, false, nil
	}
	section := strings.TrimSpace(msg[idx+len(marker):])
	if len(section) >= 2 && section[0] == '{' && section[len(section)-1] == '}' {
		section = section[1 : len(section)-1]
	}

	kv := ParseKeyValues(section)
	rec.APIEndpoint = kv["request_url"]
	rec.HTTPMethod = kv["api_method"]
	rec.RequestJSON = compactJSON(kv["request_body"])
	rec.ResponseJSON = compactJSON(kv["response"])
	rec.DurationMS = kv["api_time"]
	return rec, true, nil
}

// compactJSON compacts s when it is valid JSON and returns it unchanged
// otherwise.
func compactJSON(s string) string {
	if s == "" || !gjson.Valid(s) {
		return s
	}
	return string(pretty.Ugly([]byte(s)))
}

// WriteCSV writes the header and records to w.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(rec.Row()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
