// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package version contains metadata for commands.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version is the release of the build, set with -ldflags.
var Version = "dev"

var (
	commitSha string
	buildTime string
)

// CommitSha returns the hash of the git commit used for the build. It
// falls back to the VCS revision recorded by the Go toolchain.
func CommitSha() string {
	if commitSha != "" {
		return commitSha
	}
	return buildSetting("vcs.revision")
}

// BuildTime returns the timestamp of the commit used for the build, the
// zero time when unknown.
func BuildTime() time.Time {
	value := buildTime
	if value == "" {
		value = buildSetting("vcs.time")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// String describes the build in one line.
func String() string {
	s := "loadreplay " + Version
	if sha := CommitSha(); sha != "" {
		s += fmt.Sprintf(" (%s", sha)
		if t := BuildTime(); !t.IsZero() {
			s += " " + t.UTC().Format(time.RFC3339)
		}
		s += ")"
	}
	return s
}

func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
