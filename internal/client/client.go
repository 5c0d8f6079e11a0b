// Package client sends requests to the users API under test and checks
// what comes back.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FairForge/userjourney/internal/logger"
	"github.com/FairForge/userjourney/internal/metrics"
)

// ErrTransport marks failures where no HTTP response was received.
var ErrTransport = errors.New("transport failure")

// Request represents an API request.
type Request struct {
	Method  string
	Path    string
	Route   string // metrics label; defaults to Path
	Headers map[string]string
	Body    any
}

// Options configures a Client. All fields are optional.
type Options struct {
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	Logger            *zap.Logger
	Metrics           *metrics.Collector
}

// Client is a users API client bound to one RequestSpec.
type Client struct {
	spec       RequestSpec
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Collector
}

// New creates a client. A zero Timeout keeps the http.Client default.
func New(spec RequestSpec, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		spec:       spec,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.OrNop(opts.Logger),
		metrics:    opts.Metrics,
	}
}

// Spec returns the request spec the client was built with.
func (c *Client) Spec() RequestSpec {
	return c.spec
}

// Do executes an API request.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	route := req.Route
	if route == "" {
		route = req.Path
	}

	var bodyReader io.Reader
	if req.Body != nil {
		switch b := req.Body.(type) {
		case string:
			bodyReader = strings.NewReader(b)
		case []byte:
			bodyReader = bytes.NewReader(b)
		default:
			jsonBody, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("marshaling request body: %w", err)
			}
			bodyReader = bytes.NewReader(jsonBody)
		}
	}

	url := c.spec.URL(req.Path)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range c.spec.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, url, err)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordTransportError(req.Method, route)
		c.logger.Error("request failed",
			zap.String("method", req.Method),
			zap.String("url", url),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, url, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.metrics.RecordTransportError(req.Method, route)
		return nil, fmt.Errorf("%w: reading response body: %v", ErrTransport, err)
	}
	duration := time.Since(start)

	c.metrics.RecordRequest(req.Method, route, httpResp.StatusCode, duration)
	c.logger.Info("request",
		zap.String("method", req.Method),
		zap.String("url", url),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", duration))
	c.logger.Debug("response body", zap.ByteString("body", body))

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Duration:   duration,
	}, nil
}

// GET performs a GET request.
func (c *Client) GET(ctx context.Context, path, route string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Route: route})
}

// POST performs a POST request.
func (c *Client) POST(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// PATCH performs a PATCH request.
func (c *Client) PATCH(ctx context.Context, path, route string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Route: route, Body: body})
}

// DELETE performs a DELETE request.
func (c *Client) DELETE(ctx context.Context, path, route string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Route: route})
}
