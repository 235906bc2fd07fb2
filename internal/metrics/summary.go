// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package metrics

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"go.elastic.co/fastjson"
)

// EncodeSummary renders the run summary as JSON.
func EncodeSummary(labels Labels, s Snapshot, results []ThresholdResult) []byte {
	var w fastjson.Writer
	w.RawByte('{')
	w.RawString(`"service":`)
	w.String(labels.Service)
	w.RawString(`,"endpoint":`)
	w.String(labels.Endpoint)
	w.RawString(`,"testType":`)
	w.String(labels.TestType)

	w.RawString(`,"metrics":{`)
	w.RawString(`"http_reqs":{"count":`)
	w.Uint64(s.Requests)
	w.RawString(`},"http_req_failed":{"count":`)
	w.Uint64(s.Failed)
	w.RawString(`,"rate":`)
	w.Float64(s.FailedRate())
	w.RawString(`},"iterations":{"count":`)
	w.Uint64(s.Iterations)
	w.RawString(`,"dropped":`)
	w.Uint64(s.Dropped)
	w.RawString(`},"checks":{"passes":`)
	w.Uint64(s.ChecksPassed)
	w.RawString(`,"fails":`)
	w.Uint64(s.ChecksFailed)
	w.RawString(`,"rate":`)
	w.Float64(s.ChecksRate())
	w.RawString(`},"http_req_duration":`)
	encodeDuration(&w, s.Duration)
	w.RawByte('}')

	w.RawString(`,"checks":[`)
	for i, c := range s.Checks {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawString(`{"name":`)
		w.String(c.Name)
		w.RawString(`,"passes":`)
		w.Uint64(c.Passes)
		w.RawString(`,"fails":`)
		w.Uint64(c.Fails)
		w.RawByte('}')
	}
	w.RawByte(']')

	w.RawString(`,"thresholds":[`)
	for i, r := range results {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawString(`{"metric":`)
		w.String(r.Metric)
		w.RawString(`,"threshold":`)
		w.String(r.Expression)
		w.RawString(`,"observed":`)
		w.Float64(r.Observed)
		w.RawString(`,"passed":`)
		w.Bool(r.Passed)
		if r.Err != nil {
			w.RawString(`,"error":`)
			w.String(r.Err.Error())
		}
		w.RawByte('}')
	}
	w.RawString(`],"passed":`)
	w.Bool(AllPassed(results))
	w.RawByte('}')
	return w.Bytes()
}

func encodeDuration(w *fastjson.Writer, d DurationStats) {
	w.RawString(`{"count":`)
	w.Uint64(d.Count)
	w.RawString(`,"avg":`)
	w.Float64(d.Avg)
	w.RawString(`,"min":`)
	w.Float64(d.Min)
	w.RawString(`,"max":`)
	w.Float64(d.Max)

	quantiles := make([]float64, 0, len(d.Quantiles))
	for q := range d.Quantiles {
		quantiles = append(quantiles, q)
	}
	sort.Float64s(quantiles)
	for _, q := range quantiles {
		w.RawString(`,"p(`)
		w.RawString(strconv.FormatFloat(q*100, 'f', -1, 64))
		w.RawString(`)":`)
		w.Float64(d.Quantiles[q])
	}
	w.RawByte('}')
}

// WriteSummary writes the JSON summary to out.
func WriteSummary(out io.Writer, labels Labels, s Snapshot, results []ThresholdResult) error {
	if _, err := out.Write(EncodeSummary(labels, s, results)); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// ExportSummary writes the JSON summary to the file at path.
func ExportSummary(path string, labels Labels, s Snapshot, results []ThresholdResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	if err := WriteSummary(f, labels, s, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
