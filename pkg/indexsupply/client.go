// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Version is reported in the User-Agent header.
const Version = "0.3.0"

// DefaultRequestTimeout bounds one one-shot attempt and the connect phase of
// a live attempt.
const DefaultRequestTimeout = 30 * time.Second

// Doer sends an HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Metrics receives driver events. Implementations must be safe for
// concurrent use when one Client serves several streams.
type Metrics interface {
	// Request is called once per HTTP exchange with the endpoint path, the
	// status code (0 on transport failure) and the time to headers.
	Request(path string, status int, elapsed time.Duration)
	// State is called on every live driver transition.
	State(from, to State)
	// Frame is called for every decoded live frame.
	Frame(rows int, blockHeight uint64)
	// Retry is called before a retry with the failure kind and the delay.
	Retry(kind Kind, delay time.Duration)
	// Bytes is called with the size of every chunk read from a live stream.
	Bytes(n int)
}

type nopMetrics struct{}

func (nopMetrics) Request(string, int, time.Duration) {}
func (nopMetrics) State(State, State) {}
func (nopMetrics) Frame(int, uint64) {}
func (nopMetrics) Retry(Kind, time.Duration) {}
func (nopMetrics) Bytes(int) {}

// Config configures a Client. The zero value talks to DefaultAPIURL with
// http.DefaultClient and slog.Default().
type Config struct {
	APIURL string
	APIKey string

	HTTPClient Doer
	Logger     *slog.Logger
	Metrics    Metrics

	Retry RetryPolicy
	// RequestTimeout bounds each attempt. Live streams only apply it until
	// the response headers arrive.
	RequestTimeout time.Duration
	UserAgent      string
}

// Client issues queries against the API. It holds no per-query state and is
// safe for concurrent use.
type Client struct {
	apiURL    string
	apiKey    string
	http      Doer
	logger    *slog.Logger
	metrics   Metrics
	retry     RetryPolicy
	timeout   time.Duration
	userAgent string
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	c := &Client{
		apiURL:    cfg.APIURL,
		apiKey:    cfg.APIKey,
		http:      cfg.HTTPClient,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		retry:     cfg.Retry,
		timeout:   cfg.RequestTimeout,
		userAgent: cfg.UserAgent,
	}
	if c.apiURL == "" {
		c.apiURL = DefaultAPIURL
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultRequestTimeout
	}
	if c.userAgent == "" {
		c.userAgent = "indexsupply-go/" + Version
	}
	return c
}

// APIURL returns the endpoint the client talks to.
func (c *Client) APIURL() string { return c.apiURL }

// requestURL resolves the per-request overrides and the cursor into a URL.
func requestURL[T any](ctx context.Context, c *Client, req Request[T], path string, last *uint64) (string, error) {
	p := urlParams{
		chain:      req.ChainID,
		query:      req.Query,
		signatures: req.EventSignatures,
		apiKey:     c.apiKey,
		cursor:     last,
	}
	if req.APIKey != "" {
		p.apiKey = req.APIKey
	}
	if req.StartBlock != nil {
		h, err := req.StartBlock(ctx)
		if err != nil {
			return "", fmt.Errorf("start block: %w", err)
		}
		p.cursor = &h
	}
	base := c.apiURL
	if req.APIURL != "" {
		base = req.APIURL
	}
	return buildURL(base, path, p)
}

func (c *Client) policy(override *RetryPolicy) RetryPolicy {
	if override != nil {
		return override.withDefaults()
	}
	return c.retry.withDefaults()
}

// get performs one GET and classifies the outcome. On success the caller
// owns the returned body; on failure it has already been closed.
func (c *Client) get(ctx context.Context, path, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if path == livePath {
		req.Header.Set("Accept", "text/event-stream")
	}

	c.logger.Debug("sending request", "url", redactURL(rawURL))
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Request(path, 0, time.Since(start))
		return nil, ClassifyTransport(err)
	}
	c.metrics.Request(path, resp.StatusCode, time.Since(start))

	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		c.logger.Debug("reading error body", "error", err)
	}
	return nil, ClassifyStatus(resp.StatusCode, body, redactURL(rawURL))
}
