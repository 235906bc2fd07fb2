// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package executor drives a load test with a ramping number of virtual
// users, each running iterations back to back.
package executor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.elastic.co/apm/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/elastic/loadreplay/internal/config"
	"github.com/elastic/loadreplay/internal/loadtest"
	"github.com/elastic/loadreplay/internal/metrics"
	"github.com/elastic/loadreplay/internal/telemetry"
)

// DefaultTick is the default interval between two virtual user
// adjustments.
const DefaultTick = 100 * time.Millisecond

// Config holds the optional collaborators of an Executor.
type Config struct {
	Stages []config.Stage
	// Limiter caps the iteration rate across all virtual users.
	Limiter *rate.Limiter
	// Recorder receives every iteration outcome. A new one is created
	// when nil.
	Recorder *metrics.Recorder
	// Tracer records one transaction per iteration when set.
	Tracer *apm.Tracer
	Logger *zap.Logger
	Tick   time.Duration
}

// Executor runs iterations of a single test following a Schedule.
type Executor struct {
	test     loadtest.Test
	name     string
	schedule Schedule
	limiter  *rate.Limiter
	recorder *metrics.Recorder
	tracer   *apm.Tracer
	logger   *zap.Logger
	tick     time.Duration
}

// New returns an Executor for test. The test must be initialized before
// Run.
func New(test loadtest.Test, name string, cfg Config) (*Executor, error) {
	schedule, err := NewSchedule(cfg.Stages)
	if err != nil {
		return nil, err
	}
	e := &Executor{
		test:     test,
		name:     name,
		schedule: schedule,
		limiter:  cfg.Limiter,
		recorder: cfg.Recorder,
		tracer:   cfg.Tracer,
		logger:   cfg.Logger,
		tick:     cfg.Tick,
	}
	if e.recorder == nil {
		e.recorder = metrics.NewRecorder(metrics.Labels{Endpoint: name})
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("executor")
	if e.tick <= 0 {
		e.tick = DefaultTick
	}
	return e, nil
}

// Recorder returns the recorder iterations are reported to.
func (e *Executor) Recorder() *metrics.Recorder {
	return e.recorder
}

type vu struct {
	id   int
	stop chan struct{}
}

// Run blocks until the schedule completes, ctx is done, or an iteration
// reports the test is no longer runnable. Virtual users removed by the
// schedule finish their current iteration first. Run returns ctx.Err()
// when interrupted.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("starting run",
		zap.Duration("duration", e.schedule.Duration()),
		zap.Int("max_vus", e.schedule.MaxVUs()),
	)
	g, gctx := errgroup.WithContext(ctx)

	var (
		active []*vu
		nextID = 1
	)
	adjust := func(target int) {
		if target == len(active) {
			return
		}
		for len(active) < target {
			v := &vu{id: nextID, stop: make(chan struct{})}
			nextID++
			active = append(active, v)
			g.Go(func() error {
				return e.runVU(gctx, v)
			})
		}
		for len(active) > target {
			last := active[len(active)-1]
			active = active[:len(active)-1]
			close(last.stop)
		}
		e.recorder.SetVUs(len(active))
		e.logger.Debug("adjusted virtual users", zap.Int("vus", len(active)))
	}

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	start := time.Now()
loop:
	for {
		target, done := e.schedule.Target(time.Since(start))
		if done {
			break
		}
		adjust(target)
		select {
		case <-gctx.Done():
			break loop
		case <-ticker.C:
		}
	}
	adjust(0)

	err := g.Wait()
	e.logger.Info("run finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Object("summary", e.recorder.Snapshot()),
	)
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (e *Executor) runVU(ctx context.Context, v *vu) error {
	logger := e.logger.With(zap.Int("vu", v.id))

	// Pauses end when the virtual user is removed, requests do not.
	pauseCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-v.stop:
			cancel()
		case <-pauseCtx.Done():
		}
	}()

	for pauseCtx.Err() == nil {
		if e.limiter != nil {
			if err := e.limiter.Wait(pauseCtx); err != nil {
				return nil
			}
		}
		if err := e.iterate(ctx, logger); err != nil {
			return err
		}

		think := e.test.ThinkTime()
		if think <= 0 {
			continue
		}
		timer := time.NewTimer(think)
		select {
		case <-pauseCtx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	return nil
}

func (e *Executor) iterate(ctx context.Context, logger *zap.Logger) error {
	var tx *apm.Transaction
	if e.tracer != nil {
		tx = e.tracer.StartTransaction(e.name, telemetry.TransactionType)
		defer tx.End()
		ctx = apm.ContextWithTransaction(ctx, tx)
	}

	it, err := loadtest.RunIteration(ctx, e.test)
	if err != nil {
		if errors.Is(err, loadtest.ErrNotReady) {
			return err
		}
		if ctx.Err() == nil {
			logger.Warn("iteration dropped", zap.Error(err))
			e.recorder.ObserveDropped()
		}
		if tx != nil {
			tx.Result = "dropped"
		}
		return nil
	}
	// Requests cut short by the end of the run are not measured.
	if ctx.Err() != nil && it.Response.Err != nil {
		return nil
	}
	e.recorder.ObserveResponse(it.Response)
	e.recorder.ObserveIteration()

	if tx != nil {
		tx.Result = "failed"
		if it.Passed {
			tx.Result = "passed"
		}
		tx.Context.SetLabel("status", strconv.Itoa(it.Response.Status))
	}
	return nil
}
