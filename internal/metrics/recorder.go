// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package metrics records the outcome of every iteration of a run in a
// prometheus registry, and evaluates the run thresholds against it.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/elastic/loadreplay/internal/validator"
)

const namespace = "loadreplay"

// DefaultQuantiles are always tracked for request durations.
var DefaultQuantiles = []float64{0.5, 0.9, 0.95, 0.99}

// Labels identify the run in every exported metric.
type Labels struct {
	Service  string
	Endpoint string
	TestType string
}

func (l Labels) constLabels() prometheus.Labels {
	return prometheus.Labels{
		"service":   l.Service,
		"endpoint":  l.Endpoint,
		"test_type": l.TestType,
	}
}

// Recorder accumulates the metrics of one run.
//
// It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	requests   prometheus.Counter
	failed     prometheus.Counter
	iterations prometheus.Counter
	dropped    prometheus.Counter
	checks     *prometheus.CounterVec
	duration   prometheus.Summary
	maxDur     prometheus.Gauge
	vus        prometheus.Gauge

	mu         sync.Mutex
	min, max   float64
	checkNames []string
	checkStats map[string]*CheckStats
	quantiles  []float64
}

// NewRecorder registers the run metrics in a new registry. Extra
// quantiles, in the 0..1 range, are tracked in addition to
// DefaultQuantiles.
func NewRecorder(labels Labels, quantiles ...float64) *Recorder {
	objectives := make(map[float64]float64)
	for _, q := range append(append([]float64{}, DefaultQuantiles...), quantiles...) {
		objectives[q] = quantileError(q)
	}
	tracked := make([]float64, 0, len(objectives))
	for q := range objectives {
		tracked = append(tracked, q)
	}
	sort.Float64s(tracked)

	constLabels := labels.constLabels()
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_reqs_total",
			Help:        "Number of HTTP requests sent.",
			ConstLabels: constLabels,
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_req_failed_total",
			Help:        "Number of HTTP requests with a transport error or a status outside 200-399.",
			ConstLabels: constLabels,
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "iterations_total",
			Help:        "Number of completed iterations.",
			ConstLabels: constLabels,
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "iterations_dropped_total",
			Help:        "Number of iterations aborted before a request was sent.",
			ConstLabels: constLabels,
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "checks_total",
			Help:        "Number of evaluated checks by name and result.",
			ConstLabels: constLabels,
		}, []string{"check", "result"}),
		duration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace:   namespace,
			Name:        "http_req_duration_milliseconds",
			Help:        "HTTP request duration.",
			ConstLabels: constLabels,
			Objectives:  objectives,
			MaxAge:      24 * time.Hour,
			AgeBuckets:  1,
		}),
		maxDur: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "http_req_duration_max_milliseconds",
			Help:        "Slowest HTTP request of the run.",
			ConstLabels: constLabels,
		}),
		vus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "vus",
			Help:        "Number of active virtual users.",
			ConstLabels: constLabels,
		}),
		min:        math.Inf(1),
		max:        math.Inf(-1),
		checkStats: make(map[string]*CheckStats),
		quantiles:  tracked,
	}
	r.registry.MustRegister(
		r.requests, r.failed, r.iterations, r.dropped,
		r.checks, r.duration, r.maxDur, r.vus,
	)
	return r
}

func quantileError(q float64) float64 {
	return math.Min(0.01, (1-q)/10)
}

// Registry returns the registry the run metrics are registered in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveResponse records one request and its check results.
func (r *Recorder) ObserveResponse(resp *validator.Response) {
	r.requests.Inc()
	if Failed(resp) {
		r.failed.Inc()
	}
	if resp.Status != 0 {
		ms := float64(resp.Duration) / float64(time.Millisecond)
		r.duration.Observe(ms)

		r.mu.Lock()
		r.min = math.Min(r.min, ms)
		if ms > r.max {
			r.max = ms
			r.maxDur.Set(ms)
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range resp.Checks {
		stats, ok := r.checkStats[c.Name]
		if !ok {
			stats = &CheckStats{Name: c.Name}
			r.checkStats[c.Name] = stats
			r.checkNames = append(r.checkNames, c.Name)
		}
		result := "fail"
		if c.Passed {
			stats.Passes++
			result = "pass"
		} else {
			stats.Fails++
		}
		r.checks.WithLabelValues(c.Name, result).Inc()
	}
}

// ObserveIteration records a completed iteration.
func (r *Recorder) ObserveIteration() {
	r.iterations.Inc()
}

// ObserveDropped records an iteration aborted before its request.
func (r *Recorder) ObserveDropped() {
	r.dropped.Inc()
}

// SetVUs records the number of active virtual users.
func (r *Recorder) SetVUs(n int) {
	r.vus.Set(float64(n))
}

// Failed reports whether resp counts as a failed request: a transport
// error or a status outside 200-399.
func Failed(resp *validator.Response) bool {
	return resp.Err != nil || resp.Status < 200 || resp.Status >= 400
}

// Snapshot returns the aggregated metrics recorded so far.
func (r *Recorder) Snapshot() Snapshot {
	var summary dto.Metric
	// Write only fails for invalid label values, which cannot happen
	// with constant labels.
	_ = r.duration.Write(&summary)

	s := Snapshot{
		Requests:   uint64(counterValue(r.requests)),
		Failed:     uint64(counterValue(r.failed)),
		Iterations: uint64(counterValue(r.iterations)),
		Dropped:    uint64(counterValue(r.dropped)),
		Duration: DurationStats{
			Count:     summary.GetSummary().GetSampleCount(),
			Quantiles: make(map[float64]float64, len(r.quantiles)),
		},
	}
	if count := s.Duration.Count; count > 0 {
		s.Duration.Avg = summary.GetSummary().GetSampleSum() / float64(count)
	}
	for _, q := range summary.GetSummary().GetQuantile() {
		v := q.GetValue()
		if math.IsNaN(v) {
			v = 0
		}
		s.Duration.Quantiles[q.GetQuantile()] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Duration.Count > 0 {
		s.Duration.Min = r.min
		s.Duration.Max = r.max
	}
	for _, name := range r.checkNames {
		stats := *r.checkStats[name]
		s.Checks = append(s.Checks, stats)
		s.ChecksPassed += stats.Passes
		s.ChecksFailed += stats.Fails
	}
	return s
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	_ = c.Write(&m)
	return m.GetCounter().GetValue()
}
