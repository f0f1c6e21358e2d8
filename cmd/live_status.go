// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"indexsupply/cli/pkg/indexsupply"
)

// liveStatus follows a live stream through the client's metrics hooks and
// renders a status panel for the terminal.
type liveStatus struct {
	mu      sync.Mutex
	started time.Time
	state   indexsupply.State
	block   uint64
	frames  int
	rows    int
	retries int
	delay   time.Duration
	latest  string
}

func newLiveStatus() *liveStatus {
	return &liveStatus{started: time.Now()}
}

func (s *liveStatus) Request(string, int, time.Duration) {}

func (s *liveStatus) Bytes(int) {}

func (s *liveStatus) State(_, to indexsupply.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = to
	if to == indexsupply.StateStreaming {
		s.delay = 0
	}
}

func (s *liveStatus) Frame(rows int, blockHeight uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.rows += rows
	s.block = blockHeight
}

func (s *liveStatus) Retry(_ indexsupply.Kind, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
	s.delay = delay
}

// setLatest stores the rendered rows of the most recent response.
func (s *liveStatus) setLatest(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = text
}

// render returns the panel text. spin is the current spinner frame.
func (s *liveStatus) render(spin string, now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	state := s.state.String()
	switch s.state {
	case indexsupply.StateStreaming:
		state = pterm.NewStyle(pterm.FgGreen).Sprint(state)
	case indexsupply.StateRetrying:
		state = pterm.NewStyle(pterm.FgYellow).Sprint(state)
		if s.delay > 0 {
			state += fmt.Sprintf(" (waiting %s)", s.delay)
		}
	case indexsupply.StateFailed:
		state = pterm.NewStyle(pterm.FgRed).Sprint(state)
	}
	fmt.Fprintf(&b, "%s %s  block %d · %d responses · %d rows · %d retries · %s\n",
		spin, state, s.block, s.frames, s.rows, s.retries,
		now.Sub(s.started).Truncate(time.Second))
	if s.latest != "" {
		b.WriteString("\n")
		b.WriteString(s.latest)
	}
	return b.String()
}
