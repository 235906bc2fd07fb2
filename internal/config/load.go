// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and decodes the service document at path. Files ending in
// .yaml or .yml are decoded as YAML, everything else as JSON.
//
// Only syntax is checked here, required fields are validated by the
// factory when an endpoint is instantiated.
func Load(path string) (*Document, error) {
	raw, err := ReadJSON(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// ReadJSON returns the document at path as JSON bytes, converting YAML
// documents on the way.
func ReadJSON(path string) ([]byte, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(f, &v); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to convert config %s to json: %w", path, err)
		}
		return out, nil
	}
	return f, nil
}

// Parse decodes a JSON service document.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &doc, nil
}
