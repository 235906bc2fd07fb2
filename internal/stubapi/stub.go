// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package stubapi contains a stub HTTP API standing in for a service
// under test. It answers the endpoints of a service document with a
// success envelope echoing the request.
package stubapi

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/elastic/loadreplay/internal/config"
)

// RequestIDHeader carries the id generated for every request.
const RequestIDHeader = "X-Request-ID"

const (
	successBody = `{"success":true,"data":{}}`
	failureBody = `{"success":false,"error":"injected failure"}`
)

type stubAPI struct {
	logger              *zap.Logger
	auth                string
	routes              map[string]struct{}
	latency             time.Duration
	errorRate           float64
	unknownPathCallback http.HandlerFunc

	requests atomic.Int64
}

// Handler is the stub API http.Handler.
type Handler interface {
	http.Handler
	// Requests returns the number of requests served.
	Requests() int64
}

// NewHandler returns a stub API. Without routes every path is served.
func NewHandler(options ...Option) Handler {
	h := &stubAPI{}
	options = append([]Option{
		WithLogger(zap.NewNop()),
		WithUnknownPathCallback(func(w http.ResponseWriter, req *http.Request) {
			h.logger.Error("unknown path", zap.String("method", req.Method), zap.String("path", req.URL.Path))
			http.Error(w, "unknown path", http.StatusNotFound)
		}),
	}, options...)
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *stubAPI) Requests() int64 {
	return h.requests.Load()
}

func (h *stubAPI) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.requests.Add(1)
	requestID := uuid.NewString()
	w.Header().Set(RequestIDHeader, requestID)
	w.Header().Set("Content-Type", "application/json")

	auth, _ := strings.CutPrefix(req.Header.Get("Authorization"), "Basic ")
	if len(h.auth) > 0 && auth != h.auth {
		h.logger.Error("authentication failed", zap.String("request_id", requestID))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if h.routes != nil {
		if _, ok := h.routes[routeKey(req.Method, req.URL.Path)]; !ok {
			h.unknownPathCallback(w, req)
			return
		}
	}

	payload, err := h.readPayload(req)
	if err != nil {
		h.logger.Error("invalid payload", zap.String("request_id", requestID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.latency > 0 {
		select {
		case <-time.After(h.latency):
		case <-req.Context().Done():
			return
		}
	}
	if h.errorRate > 0 && rand.Float64() < h.errorRate {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, failureBody)
		return
	}

	body := []byte(successBody)
	body, _ = sjson.SetBytes(body, "data.token", requestID)
	body, _ = sjson.SetBytes(body, "data.method", req.Method)
	body, _ = sjson.SetBytes(body, "data.path", req.URL.Path)
	if len(payload) > 0 {
		body, _ = sjson.SetRawBytes(body, "data.echo", payload)
	}
	_, _ = w.Write(body)
}

// readPayload returns the JSON request body, or the query parameters as
// a JSON object for requests without a body.
func (h *stubAPI) readPayload(req *http.Request) ([]byte, error) {
	var body io.Reader
	switch enc := req.Header.Get("Content-Encoding"); enc {
	case "gzip":
		r, err := gzip.NewReader(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reader error: %w", err)
		}
		defer r.Close()
		body = r
	case "deflate":
		r, err := zlib.NewReader(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reader error: %w", err)
		}
		defer r.Close()
		body = r
	case "zstd":
		r, err := zstd.NewReader(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reader error: %w", err)
		}
		defer r.Close()
		body = r
	case "":
		body = req.Body
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reader error: %w", err)
	}
	if len(bytes.TrimSpace(b)) > 0 {
		if !gjson.ValidBytes(b) {
			return nil, fmt.Errorf("request body is not valid JSON")
		}
		return b, nil
	}
	return queryObject(req.URL.Query()), nil
}

func queryObject(q url.Values) []byte {
	if len(q) == 0 {
		return nil
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := []byte(`{}`)
	for _, k := range keys {
		obj, _ = sjson.SetBytes(obj, escapeKey(k), q.Get(k))
	}
	return obj
}

// escapeKey turns a query parameter name into a literal sjson object key.
func escapeKey(k string) string {
	var b strings.Builder
	if _, err := strconv.Atoi(k); err == nil {
		b.WriteByte(':')
	}
	for _, c := range k {
		switch c {
		case '.', '*', '?', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func routeKey(method, path string) string {
	return method + " " + path
}

// Option configures the stub API.
type Option func(*stubAPI)

func WithLogger(logger *zap.Logger) Option {
	return func(h *stubAPI) {
		h.logger = logger
	}
}

// WithAuth requires HTTP basic authentication.
func WithAuth(username, password string) Option {
	return func(h *stubAPI) {
		h.auth = base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", username, password)))
	}
}

// WithRoute serves method and path only, together with other routes.
func WithRoute(method, path string) Option {
	return func(h *stubAPI) {
		if h.routes == nil {
			h.routes = make(map[string]struct{})
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		h.routes[routeKey(strings.ToUpper(method), path)] = struct{}{}
	}
}

// WithDocument serves the endpoints of doc, under the path of the
// service base URL.
func WithDocument(doc *config.Document) Option {
	return func(h *stubAPI) {
		prefix := ""
		if doc.Service != nil {
			if u, err := url.Parse(doc.Service.BaseURL); err == nil {
				prefix = strings.TrimSuffix(u.Path, "/")
			}
		}
		for _, e := range doc.Endpoints {
			path, _, _ := strings.Cut(e.Path, "?")
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			WithRoute(e.HTTPMethod(), prefix+path)(h)
		}
	}
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(h *stubAPI) {
		h.latency = d
	}
}

// WithErrorRate answers the given fraction of requests with a 500.
func WithErrorRate(rate float64) Option {
	return func(h *stubAPI) {
		h.errorRate = rate
	}
}

func WithUnknownPathCallback(callback http.HandlerFunc) Option {
	return func(h *stubAPI) {
		h.unknownPathCallback = callback
	}
}
