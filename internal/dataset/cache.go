// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package dataset

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/elastic/loadreplay/internal/config"
)

// Cache owns the data sets of a process, keyed by name. Each name is
// read from disk at most once, concurrent callers asking for the same
// name share the in-flight load.
//
// A Cache is created during startup and handed to the runners that need
// it, there is no package level instance.
type Cache struct {
	logger *zap.Logger
	group  singleflight.Group

	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewCache returns an empty Cache.
func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		logger:   logger.Named("dataset"),
		datasets: make(map[string]*Dataset),
	}
}

// Load returns the data set registered under name, reading cfg.Path the
// first time the name is requested. Failed loads are not cached.
func (c *Cache) Load(cfg config.DataSourceConfig, name string) (*Dataset, error) {
	c.mu.RLock()
	ds, ok := c.datasets[name]
	c.mu.RUnlock()
	if ok {
		return ds, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		c.mu.RLock()
		ds, ok := c.datasets[name]
		c.mu.RUnlock()
		if ok {
			return ds, nil
		}
		ds, err := load(cfg, name, c.logger)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.datasets[name] = ds
		c.mu.Unlock()
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}
