// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"time"

	"indexsupply/cli/internal/frame"
)

// State is the phase of a live stream.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateRetrying
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateRetrying:
		return "retrying"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var errStopped = errors.New("consumer stopped")

// Live streams results for req from the /query-live endpoint. Each decoded
// frame is yielded as a Response. Dropped connections and transient errors
// are retried, resuming from req.StartBlock when set and from the last seen
// block height otherwise, so rows at a reconnect boundary may be delivered
// twice.
//
// When the server closes a stream after at least one frame, Live reconnects
// at once. A stream that closes before its first frame counts as a failed
// attempt and is retried after the backoff delay.
//
// The sequence ends without an error when ctx is cancelled or the consumer
// stops iterating; no response is yielded once ctx is done, even if more
// frames are already buffered. A fatal error is yielded once as the final
// element: user errors, undecodable frames, a failing StartBlock, or
// MaxAttempts consecutive failed attempts when MaxAttempts is non-zero.
func Live[T any](ctx context.Context, c *Client, req Request[T]) iter.Seq2[Response[T], error] {
	return func(yield func(Response[T], error) bool) {
		mapRow, err := mapperFor(req.FormatRow)
		if err != nil {
			yield(Response[T]{}, err)
			return
		}
		d := &liveDriver[T]{
			c:      c,
			req:    req,
			mapRow: mapRow,
			policy: c.policy(req.Retry),
		}
		d.run(ctx, yield)
	}
}

type liveDriver[T any] struct {
	c      *Client
	req    Request[T]
	mapRow rowMapper[T]
	policy RetryPolicy

	state    State
	attempts int
	// last is the block height of the most recent frame, nil until one arrives.
	last *uint64
}

func (d *liveDriver[T]) transition(to State) {
	if d.state == to {
		return
	}
	d.c.logger.Debug("live state", "from", d.state, "to", to)
	d.c.metrics.State(d.state, to)
	d.state = to
}

func (d *liveDriver[T]) run(ctx context.Context, yield func(Response[T], error) bool) {
	for {
		if ctx.Err() != nil {
			d.transition(StateCancelled)
			return
		}
		d.transition(StateConnecting)

		resp, cancel, err := d.connect(ctx)
		if err == nil {
			d.transition(StateStreaming)
			err = d.stream(ctx, resp, yield)
			resp.Body.Close()
			cancel()
			if err == nil {
				d.c.logger.Debug("stream closed by server. reconnecting")
				continue
			}
		}

		switch {
		case errors.Is(err, errStopped), ctx.Err() != nil:
			d.transition(StateCancelled)
			return
		case !retryable(err):
			d.c.logger.Error("will not retry", "kind", KindOf(err), "error", err)
			d.fail(yield, err)
			return
		}
		if !d.backoff(ctx, yield, err) {
			return
		}
	}
}

// connect opens one live connection. RequestTimeout applies until the
// response headers arrive; after that the stream may stay open indefinitely.
func (d *liveDriver[T]) connect(ctx context.Context) (*http.Response, context.CancelFunc, error) {
	rawURL, err := requestURL(ctx, d.c, d.req, livePath, d.last)
	if err != nil {
		return nil, nil, err
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(d.c.timeout, cancel)
	resp, err := d.c.get(attemptCtx, livePath, rawURL)
	fired := !timer.Stop()
	if fired && ctx.Err() == nil {
		// The headers may have arrived just as the timer fired; the body is
		// bound to a cancelled context either way.
		if resp != nil {
			resp.Body.Close()
		}
		cancel()
		return nil, nil, &Error{Kind: KindRetry, Message: "timeout", Err: err}
	}
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

// stream yields every frame of one connection. It returns nil when the
// server closes the stream cleanly after at least one frame; a stream that
// ends before its first frame counts as a Wait failure.
func (d *liveDriver[T]) stream(ctx context.Context, resp *http.Response, yield func(Response[T], error) bool) error {
	r := frame.NewReader(resp.Body)
	r.OnRead = func(n int) {
		d.c.logger.Debug("read bytes", "n", n)
		d.c.metrics.Bytes(n)
	}

	frames := 0
	for payload, err := range r.Frames() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return ClassifyTransport(err)
		}
		out, err := decode([]byte(payload), d.mapRow, d.c.logger)
		if err != nil {
			return err
		}

		frames++
		d.attempts = 0
		height := out.BlockNumber
		d.last = &height
		d.c.metrics.Frame(len(out.Result), height)
		if !yield(out, nil) {
			return errStopped
		}
	}
	if frames == 0 {
		return &Error{Kind: KindWait, Status: resp.StatusCode, Message: "stream closed before the first frame"}
	}
	return nil
}

// backoff records a failed attempt and waits before the next one. It
// reports false when the stream must end.
func (d *liveDriver[T]) backoff(ctx context.Context, yield func(Response[T], error) bool, err error) bool {
	d.transition(StateRetrying)
	d.attempts++
	if d.policy.MaxAttempts > 0 && d.attempts >= d.policy.MaxAttempts {
		d.fail(yield, fmt.Errorf("live query failed after %d attempts: %w", d.policy.MaxAttempts, err))
		return false
	}

	var delay time.Duration
	kind := KindOf(err)
	if kind == KindWait {
		delay = d.policy.Delay(d.attempts)
		d.c.logger.Error("server error. will wait before retry", "error", err, "attempt", d.attempts, "delay", delay)
	} else {
		d.c.logger.Error("server error. will retry now", "error", err, "attempt", d.attempts)
	}
	d.c.metrics.Retry(kind, delay)

	if Wait(ctx, delay) != nil {
		d.transition(StateCancelled)
		return false
	}
	return true
}

func (d *liveDriver[T]) fail(yield func(Response[T], error) bool, err error) {
	d.transition(StateFailed)
	yield(Response[T]{}, err)
}

func retryable(err error) bool {
	k := KindOf(err)
	return k == KindWait || k == KindRetry
}
