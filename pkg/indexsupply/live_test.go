// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func heightFrame(h string) string {
	return `{"block_height":` + h + `,"result":[[["n"],[` + h + `]]]}`
}

func respondReader(r io.Reader) reply {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(r), Request: req}, nil
	}
}

// collect drains up to limit responses, stopping early on an error.
func collect(ctx context.Context, c *Client, req Request[Row], limit int) ([]uint64, error) {
	var heights []uint64
	for resp, err := range Live(ctx, c, req) {
		if err != nil {
			return heights, err
		}
		heights = append(heights, resp.BlockNumber)
		if len(heights) == limit {
			break
		}
	}
	return heights, nil
}

// Live query resumed from a caller cursor yields the matching block and
// stops cleanly when the caller cancels.
func TestLiveCancelAfterFirstResponse(t *testing.T) {
	var gotHeight atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query-live" {
			http.NotFound(w, r)
			return
		}
		gotHeight.Store(r.URL.Query().Get("block_height"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sse(transferBody))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c := New(Config{APIURL: srv.URL, HTTPClient: srv.Client(), Logger: discard})
	req := transferRequest()
	req.StartBlock = func(context.Context) (uint64, error) { return 2397612, nil }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var responses []Response[Row]
	for resp, err := range Live(ctx, c, req) {
		require.NoError(t, err)
		responses = append(responses, resp)
		cancel()
	}

	require.Len(t, responses, 1)
	assert.Equal(t, uint64(2397613), responses[0].BlockNumber)
	require.Len(t, responses[0].Result, 1)
	assert.Equal(t, "71817150413", responses[0].Result[0]["value"])
	assert.Equal(t, "2397612", gotHeight.Load())
}

func TestLiveReconnectsFromLastCursor(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(
		respond(http.StatusOK, sse(heightFrame("5"), heightFrame("6"))),
		respond(http.StatusOK, sse(heightFrame("6"), heightFrame("7"))),
	)
	c := newTestClient(doer, fastRetry)

	heights, err := collect(context.Background(), c, transferRequest(), 4)
	require.NoError(t, err)

	// The frame at the reconnect boundary is delivered twice.
	assert.Equal(t, []uint64{5, 6, 6, 7}, heights)
	assert.Equal(t, 2, doer.count())
	assert.False(t, doer.request(0).URL.Query().Has("block_height"))
	assert.Equal(t, "6", doer.request(1).URL.Query().Get("block_height"))
	assert.Equal(t, "text/event-stream", doer.request(0).Header.Get("Accept"))
	assert.True(t, doer.allClosed())
}

func TestLiveReadErrorRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(
		respondReader(io.MultiReader(
			strings.NewReader(sse(heightFrame("1"))+"data: {\"block_hei"),
			iotest.ErrReader(errors.New("connection reset by peer")),
		)),
		respond(http.StatusOK, sse(heightFrame("2"))),
	)
	m := &recordingMetrics{}
	c := New(Config{APIURL: "http://indexsupply.test", HTTPClient: doer, Logger: discard, Retry: fastRetry, Metrics: m})

	heights, err := collect(context.Background(), c, transferRequest(), 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, heights)
	assert.Equal(t, "1", doer.request(1).URL.Query().Get("block_height"))
	assert.Equal(t, []Kind{KindWait}, m.retries)
	assert.True(t, doer.allClosed())
}

// The attempt counter resets after every decoded frame, so MaxAttempts
// bounds consecutive failures only.
func TestLiveResetsAttemptsAfterFrame(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(
		respond(http.StatusServiceUnavailable, ""),
		respond(http.StatusOK, sse(heightFrame("1"))),
		respond(http.StatusServiceUnavailable, ""),
		respond(http.StatusOK, sse(heightFrame("2"))),
	)
	retry := fastRetry
	retry.MaxAttempts = 2
	c := newTestClient(doer, retry)

	heights, err := collect(context.Background(), c, transferRequest(), 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, heights)
	assert.Equal(t, 4, doer.count())
}

func TestLiveMaxAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(respond(http.StatusServiceUnavailable, "busy"))
	retry := fastRetry
	retry.MaxAttempts = 2
	c := newTestClient(doer, retry)

	_, err := collect(context.Background(), c, transferRequest(), 1)
	require.Error(t, err)
	assert.True(t, IsWait(err))
	assert.Equal(t, 2, doer.count())
	assert.True(t, doer.allClosed())
}

// Query and Live make the same number of requests for one RetryPolicy.
func TestLiveMaxAttemptsMatchesQuery(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		retry := fastRetry
		retry.MaxAttempts = n

		queryDoer := newFakeDoer(respond(http.StatusServiceUnavailable, "busy"))
		_, qerr := Query(context.Background(), newTestClient(queryDoer, retry), transferRequest())
		require.Error(t, qerr)

		liveDoer := newFakeDoer(respond(http.StatusServiceUnavailable, "busy"))
		_, lerr := collect(context.Background(), newTestClient(liveDoer, retry), transferRequest(), 1)
		require.Error(t, lerr)

		assert.Equal(t, n, queryDoer.count(), "query requests with MaxAttempts=%d", n)
		assert.Equal(t, n, liveDoer.count(), "live requests with MaxAttempts=%d", n)
	}
}

// Frames that arrived in the same read as the one being consumed are not
// yielded after the caller cancels.
func TestLiveCancelSkipsBufferedFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(respond(http.StatusOK, sse(heightFrame("1"), heightFrame("2"), heightFrame("3"))))
	m := &recordingMetrics{}
	c := New(Config{APIURL: "http://indexsupply.test", HTTPClient: doer, Logger: discard, Retry: fastRetry, Metrics: m})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var heights []uint64
	for resp, err := range Live(ctx, c, transferRequest()) {
		require.NoError(t, err)
		heights = append(heights, resp.BlockNumber)
		cancel()
	}

	assert.Equal(t, []uint64{1}, heights)
	assert.Equal(t, 1, doer.count())
	assert.True(t, doer.allClosed())
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, StateCancelled, m.states[len(m.states)-1])
}

// Headers that arrive after the connect timeout fired are discarded and the
// attempt counts as a timeout.
func TestLiveHeadersAfterTimeoutAreRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	late := func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return respond(http.StatusOK, sse(heightFrame("1")))(req)
	}
	doer := newFakeDoer(late)
	c := New(Config{
		APIURL:         "http://indexsupply.test",
		HTTPClient:     doer,
		Logger:         discard,
		RequestTimeout: 5 * time.Millisecond,
		Retry:          RetryPolicy{BaseDelay: time.Millisecond, MaxAttempts: 1},
	})

	heights, err := collect(context.Background(), c, transferRequest(), 1)
	assert.Empty(t, heights)
	assert.True(t, IsRetry(err), "got %v", err)
	assert.Equal(t, 1, doer.count())
	assert.True(t, doer.allClosed())
}

func TestLiveFatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
		check func(t *testing.T, err error)
	}{
		{
			name:  "user status",
			reply: respond(http.StatusBadRequest, `{"message":"column \"bar\" does not exist"}`),
			check: func(t *testing.T, err error) {
				assert.True(t, IsUser(err))
				assert.ErrorContains(t, err, `column "bar" does not exist`)
			},
		},
		{
			name:  "in-band user error",
			reply: respond(http.StatusOK, sse(`{"error":"user","message":"bad query"}`)),
			check: func(t *testing.T, err error) { assert.True(t, IsUser(err)) },
		},
		{
			name:  "malformed frame",
			reply: respond(http.StatusOK, sse(`{"block_height":1,"result":[[["a"],[1,2]]]}`)),
			check: func(t *testing.T, err error) {
				var de *DecodeError
				assert.True(t, errors.As(err, &de))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			doer := newFakeDoer(tt.reply)
			m := &recordingMetrics{}
			c := New(Config{APIURL: "http://indexsupply.test", HTTPClient: doer, Logger: discard, Retry: fastRetry, Metrics: m})

			var errs []error
			for _, err := range Live(context.Background(), c, transferRequest()) {
				require.Error(t, err)
				errs = append(errs, err)
			}
			require.Len(t, errs, 1)
			tt.check(t, errs[0])
			assert.Equal(t, 1, doer.count())
			assert.Equal(t, StateFailed, m.states[len(m.states)-1])
			assert.True(t, doer.allClosed())
		})
	}
}

func TestLiveInBandServerErrorRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(
		respond(http.StatusOK, sse(`{"error":"server","message":"try later"}`)),
		respond(http.StatusOK, sse(heightFrame("3"))),
	)
	c := newTestClient(doer, fastRetry)

	heights, err := collect(context.Background(), c, transferRequest(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, heights)
	assert.Equal(t, 2, doer.count())
}

func TestLiveEmptyStreamBacksOff(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(
		respond(http.StatusOK, ": keep-alive\n\n"),
		respond(http.StatusOK, sse(heightFrame("9"))),
	)
	m := &recordingMetrics{}
	c := New(Config{APIURL: "http://indexsupply.test", HTTPClient: doer, Logger: discard, Retry: fastRetry, Metrics: m})

	heights, err := collect(context.Background(), c, transferRequest(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{9}, heights)
	assert.Equal(t, []Kind{KindWait}, m.retries)
}

func TestLiveCancelDuringBackoff(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(respond(http.StatusServiceUnavailable, ""))
	c := newTestClient(doer, RetryPolicy{BaseDelay: time.Hour, MaxDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	n := 0
	for range Live(ctx, c, transferRequest()) {
		n++
	}
	assert.Zero(t, n)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, doer.count())
}

func TestLiveCancelledBeforeStart(t *testing.T) {
	doer := newFakeDoer(respond(http.StatusOK, sse(heightFrame("1"))))
	c := newTestClient(doer, fastRetry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range Live(ctx, c, transferRequest()) {
		t.Fatal("no element expected")
	}
	assert.Zero(t, doer.count())
}

func TestLiveConsumerBreakClosesBody(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(respond(http.StatusOK, sse(heightFrame("1"), heightFrame("2"), heightFrame("3"))))
	m := &recordingMetrics{}
	c := New(Config{APIURL: "http://indexsupply.test", HTTPClient: doer, Logger: discard, Metrics: m})

	heights, err := collect(context.Background(), c, transferRequest(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, heights)
	assert.True(t, doer.allClosed())
	assert.Equal(t, []State{StateConnecting, StateStreaming, StateCancelled}, m.states)
	assert.Equal(t, 1, m.frames)
	assert.Positive(t, m.bytes)
}

func TestLiveStartBlockEachAttempt(t *testing.T) {
	defer goleak.VerifyNone(t)

	doer := newFakeDoer(
		respond(http.StatusServiceUnavailable, ""),
		respond(http.StatusOK, sse(heightFrame("101"))),
	)
	c := newTestClient(doer, fastRetry)

	var calls atomic.Uint64
	req := transferRequest()
	req.StartBlock = func(context.Context) (uint64, error) { return 100 + calls.Add(1) - 1, nil }

	heights, err := collect(context.Background(), c, req, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{101}, heights)
	assert.Equal(t, "100", doer.request(0).URL.Query().Get("block_height"))
	assert.Equal(t, "101", doer.request(1).URL.Query().Get("block_height"))
}

func TestLiveStartBlockErrorIsFatal(t *testing.T) {
	doer := newFakeDoer(respond(http.StatusOK, sse(heightFrame("1"))))
	c := newTestClient(doer, fastRetry)

	boom := errors.New("progress table missing")
	req := transferRequest()
	req.StartBlock = func(context.Context) (uint64, error) { return 0, boom }

	_, err := collect(context.Background(), c, req, 1)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, doer.count())
}

func TestLiveRequiresFormatter(t *testing.T) {
	c := newTestClient(newFakeDoer(respond(http.StatusOK, "")), fastRetry)
	req := Request[transfer]{ChainID: ChainBase, Query: "select 1"}

	var errs []error
	for _, err := range Live(context.Background(), c, req) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errNoFormatter)
}

func TestLiveConnectTimeoutIsRetry(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(Config{
		APIURL:         srv.URL,
		HTTPClient:     srv.Client(),
		Logger:         discard,
		RequestTimeout: 20 * time.Millisecond,
		Retry:          RetryPolicy{BaseDelay: time.Millisecond, MaxAttempts: 1},
	})
	_, err := collect(context.Background(), c, transferRequest(), 1)
	assert.True(t, IsRetry(err), "got %v", err)
}
