// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLinkerFlags(t *testing.T) {
	defer func(sha, bt, v string) { commitSha, buildTime, Version = sha, bt, v }(commitSha, buildTime, Version)

	commitSha = "abc123"
	buildTime = "2024-05-01T10:00:00Z"
	Version = "1.2.0"

	assert.Equal(t, "abc123", CommitSha())
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), BuildTime())
	assert.Equal(t, "loadreplay 1.2.0 (abc123 2024-05-01T10:00:00Z)", String())
}

func TestBuildTimeInvalid(t *testing.T) {
	defer func(bt string) { buildTime = bt }(buildTime)

	buildTime = "yesterday"
	assert.True(t, BuildTime().IsZero())
}
