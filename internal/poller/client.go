package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultMaxBodySize caps how much of a poll source response is read.
	DefaultMaxBodySize = 1 << 20 // 1MB

	userAgent = "votewatch/1.0"
)

// connection pooling for a single long-lived source host
const (
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 2
	defaultIdleConnTimeout     = 90 * time.Second // outlives the default 30s poll interval
)

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, truncated at the client's size limit.
	Body []byte

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any transport-level error.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// OK reports whether the request completed with a 2xx status.
func (r Response) OK() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client fetches the poll source over HTTP.
//
// Timeouts are applied per request via context rather than globally, and
// response bodies are limited to protect memory from a misbehaving source.
type Client struct {
	httpClient  *http.Client
	maxBodySize int64
}

// NewClient creates a new polling [Client].
//
// The transport keeps a couple of idle connections to the source alive
// between cycles. Pass maxBodySize <= 0 to use [DefaultMaxBodySize].
func NewClient(maxBodySize int64) *Client {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		maxBodySize: maxBodySize,
	}
}

// Fetch performs a GET request and returns a structured [Response].
//
// Custom headers are applied after the defaults (Accept: application/json and
// a votewatch User-Agent), so they can override them. The timeout bounds the
// whole request including reading the body; zero means no timeout beyond ctx.
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately. This simplifies handling in the scheduler.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times and on a nil client. The client remains usable
// afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
