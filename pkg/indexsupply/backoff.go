// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"context"
	"time"
)

const (
	DefaultBaseDelay = time.Second
	DefaultMaxDelay  = 10 * time.Second
	// DefaultQueryAttempts bounds one-shot queries. Live streams retry forever
	// unless the policy says otherwise.
	DefaultQueryAttempts = 5
)

// RetryPolicy controls how long to wait between failed attempts.
// A zero field takes its default.
type RetryPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts caps the number of consecutive failed attempts. Zero means
	// the driver's default: DefaultQueryAttempts for Query, unbounded for Live.
	MaxAttempts int
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Delay returns the wait before retry number attempt (1-based):
// BaseDelay doubled per earlier attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if d >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		d *= 2
	}
	return min(d, p.MaxDelay)
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
