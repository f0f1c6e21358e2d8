// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Query runs req once against the /query endpoint and returns the first
// result set. Wait errors are retried with backoff and Retry errors right
// away, up to the policy's MaxAttempts (DefaultQueryAttempts when zero); the
// last error is returned when attempts run out. User and decode errors are
// returned immediately.
func Query[T any](ctx context.Context, c *Client, req Request[T]) (Response[T], error) {
	mapRow, err := mapperFor(req.FormatRow)
	if err != nil {
		return Response[T]{}, err
	}
	policy := c.policy(req.Retry)
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultQueryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := queryOnce(ctx, c, req, mapRow)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response[T]{}, ctx.Err()
		}
		lastErr = err

		kind := KindOf(err)
		if kind != KindWait && kind != KindRetry {
			c.logger.Error("user error. will not retry", "error", err)
			return Response[T]{}, err
		}
		if attempt == maxAttempts {
			break
		}

		var delay time.Duration
		if kind == KindWait {
			delay = policy.Delay(attempt)
			c.logger.Error("server error. will wait before retry", "error", err, "attempt", attempt, "delay", delay)
		} else {
			c.logger.Error("server error. will retry now", "error", err, "attempt", attempt)
		}
		c.metrics.Retry(kind, delay)
		if err := Wait(ctx, delay); err != nil {
			return Response[T]{}, err
		}
	}
	return Response[T]{}, fmt.Errorf("query failed after %d attempts: %w", maxAttempts, lastErr)
}

func queryOnce[T any](ctx context.Context, c *Client, req Request[T], mapRow rowMapper[T]) (Response[T], error) {
	rawURL, err := requestURL(ctx, c, req, queryPath, nil)
	if err != nil {
		return Response[T]{}, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.get(attemptCtx, queryPath, rawURL)
	if err != nil {
		return Response[T]{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response[T]{}, ClassifyTransport(err)
	}
	c.logger.Debug("received response", "bytes", len(body))

	out, err := decode(body, mapRow, c.logger)
	var de *DecodeError
	if errors.As(err, &de) {
		c.logger.Debug("response body", "body", string(body))
	}
	return out, err
}
