// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package loadtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/gjson"

	"github.com/elastic/loadreplay/internal/dataset"
)

var gzipPool = sync.Pool{
	New: func() any {
		return gzip.NewWriter(io.Discard)
	},
}

var zlibPool = sync.Pool{
	New: func() any {
		zw, err := zlib.NewWriterLevel(io.Discard, zlib.BestSpeed)
		if err != nil {
			panic(err)
		}
		return zw
	},
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdErr     error
)

func supportedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func newRequest(ctx context.Context, method, target string, p dataset.Payload, headers map[string]string, encoding string) (*http.Request, error) {
	var body []byte
	switch method {
	case http.MethodGet:
		target = appendQuery(target, p)
	case http.MethodDelete:
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		encoded, err := encodeBody(p, encoding)
		if err != nil {
			return nil, err
		}
		body = encoded
	default:
		return nil, &UnsupportedMethodError{Method: method}
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if encoding != "" {
			req.Header.Set("Content-Encoding", encoding)
		}
	}
	return req, nil
}

// appendQuery encodes the top-level members of a JSON object payload as
// query parameters. Null members are omitted; non-object payloads add
// nothing.
func appendQuery(target string, p dataset.Payload) string {
	q := queryString(p)
	if q == "" {
		return target
	}
	if strings.Contains(target, "?") {
		return target + "&" + q
	}
	return target + "?" + q
}

func queryString(p dataset.Payload) string {
	obj := gjson.ParseBytes(p)
	if !obj.IsObject() {
		return ""
	}
	var parts []string
	obj.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Null {
			return true
		}
		parts = append(parts, escapeComponent(k.String())+"="+escapeComponent(queryValue(v)))
		return true
	})
	return strings.Join(parts, "&")
}

// queryValue renders strings unquoted and everything else as raw JSON.
func queryValue(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	return v.Raw
}

// componentUnescaper restores the characters encodeURIComponent leaves
// alone but url.QueryEscape encodes.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

func encodeBody(p dataset.Payload, encoding string) ([]byte, error) {
	switch encoding {
	case "":
		return p, nil
	case "gzip":
		zw := gzipPool.Get().(*gzip.Writer)
		defer gzipPool.Put(zw)
		return compress(zw, p)
	case "deflate":
		zw := zlibPool.Get().(*zlib.Writer)
		defer zlibPool.Put(zw)
		return compress(zw, p)
	case "zstd":
		zstdOnce.Do(func() {
			zstdEncoder, zstdErr = zstd.NewWriter(nil)
		})
		if zstdErr != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", zstdErr)
		}
		return zstdEncoder.EncodeAll(p, nil), nil
	}
	return nil, fmt.Errorf("unsupported content encoding %q", encoding)
}

type resetWriter interface {
	io.WriteCloser
	Reset(io.Writer)
}

func compress(zw resetWriter, p []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw.Reset(&buf)
	if _, err := zw.Write(p); err != nil {
		return nil, fmt.Errorf("failed to compress body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress body: %w", err)
	}
	return buf.Bytes(), nil
}
