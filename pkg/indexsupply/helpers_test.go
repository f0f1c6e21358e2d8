// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const transferSig = "Transfer(address indexed from, address indexed to, uint256 value)"

const transferQuery = `select block_num, log_idx, "from", "to", "value" from transfer where block_num = 2397613 and log_idx = 1997`

const transferBody = `{"block_height":2397613,"result":[[` +
	`["block_num","log_idx","from","to","value"],` +
	`[2397613,1997,"0x8ab39456f5c35910f30c391311806c06310b49fc","0x4cf76043b3f97ba06917cbd90f9e3a2aac1b306e","71817150413"]` +
	`]]}`

// trackedBody records whether it was closed.
type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

type reply func(req *http.Request) (*http.Response, error)

func respond(status int, body string) reply {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

func fail(err error) reply {
	return func(*http.Request) (*http.Response, error) { return nil, err }
}

// fakeDoer replays scripted replies in order, repeating the last one.
type fakeDoer struct {
	mu       sync.Mutex
	replies  []reply
	requests []*http.Request
	bodies   []*trackedBody
}

func newFakeDoer(replies ...reply) *fakeDoer {
	return &fakeDoer{replies: replies}
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, req)
	r := f.replies[min(n, len(f.replies)-1)]
	f.mu.Unlock()

	resp, err := r(req)
	if err != nil {
		return nil, err
	}
	tb := &trackedBody{Reader: resp.Body}
	resp.Body = tb
	f.mu.Lock()
	f.bodies = append(f.bodies, tb)
	f.mu.Unlock()
	return resp, nil
}

func (f *fakeDoer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeDoer) request(i int) *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func (f *fakeDoer) allClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bodies {
		if !b.closed.Load() {
			return false
		}
	}
	return true
}

// fastRetry keeps backoff tests quick.
var fastRetry = RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}

func newTestClient(doer Doer, retry RetryPolicy) *Client {
	return New(Config{
		APIURL:     "http://indexsupply.test",
		HTTPClient: doer,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Retry:      retry,
	})
}

func sse(frames ...string) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString("data: ")
		b.WriteString(f)
		b.WriteString("\n\n")
	}
	return b.String()
}

// recordingMetrics captures driver events.
type recordingMetrics struct {
	mu       sync.Mutex
	states   []State
	frames   int
	retries  []Kind
	bytes    int
	requests int
}

func (m *recordingMetrics) Request(string, int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
}

func (m *recordingMetrics) State(_, to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, to)
}

func (m *recordingMetrics) Frame(int, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames++
}

func (m *recordingMetrics) Retry(k Kind, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries = append(m.retries, k)
}

func (m *recordingMetrics) Bytes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += n
}
