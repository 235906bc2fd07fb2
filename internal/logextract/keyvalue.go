// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package logextract

import "strings"

// ParseKeyValues parses a "k1=v1, k2={...}, k3=v3" section. Values are
// split on commas outside of braces, so JSON object values are kept
// whole. Keys and values are trimmed.
func ParseKeyValues(section string) map[string]string {
	result := make(map[string]string)
	var (
		key     string
		haveKey bool
		value   strings.Builder
		depth   int
	)
	for i := 0; i < len(section); i++ {
		c := section[i]
		if !haveKey {
			if c != '=' {
				continue
			}
			j := i - 1
			for j >= 0 && !strings.ContainsRune(", {", rune(section[j])) {
				j--
			}
			key = strings.TrimSpace(section[j+1 : i])
			haveKey = key != ""
			continue
		}

		switch {
		case c == '{':
			depth++
			value.WriteByte(c)
		case c == '}':
			value.WriteByte(c)
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			result[key] = strings.TrimSpace(value.String())
			haveKey = false
			value.Reset()
		default:
			value.WriteByte(c)
		}
	}
	if haveKey && value.Len() > 0 {
		result[key] = strings.TrimSpace(value.String())
	}
	return result
}
