// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package validator

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Resolve returns the value found at the dot separated path of a JSON
// document. The result does not exist when body is not valid JSON, when a
// segment is missing, or when an intermediate value is not an object or
// array. JSON null values exist.
func Resolve(body []byte, path string) gjson.Result {
	if path == "" || !gjson.ValidBytes(body) {
		return gjson.Result{}
	}
	return gjson.GetBytes(body, escapePath(path))
}

// escapePath neutralises the gjson wildcard, query and modifier syntax so
// every segment is looked up as a literal key.
func escapePath(path string) string {
	if !strings.ContainsAny(path, `\*?|#@!{}[]=<>%`) {
		return path
	}
	var b strings.Builder
	b.Grow(len(path) + 8)
	for _, r := range path {
		switch r {
		case '\\', '*', '?', '|', '#', '@', '!', '{', '}', '[', ']', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
