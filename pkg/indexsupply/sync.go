// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"context"
	"fmt"
)

// SyncOptions describes a query whose results are persisted by the caller.
type SyncOptions[T any] struct {
	ChainID         uint64
	Query           string
	EventSignatures []string
	FormatRow       Formatter[T]
	Retry           *RetryPolicy

	// GetProgress returns the block height to resume from. It is called
	// before every connection.
	GetProgress func(ctx context.Context) (uint64, error)
	// SaveProgress stores one response. Returning an error stops the sync.
	SaveProgress func(ctx context.Context, blockHeight uint64, rows []T) error
}

// Sync streams opts.Query live and hands every response to SaveProgress
// until ctx is cancelled or an error occurs. It returns nil on cancellation.
func Sync[T any](ctx context.Context, c *Client, opts SyncOptions[T]) error {
	if opts.GetProgress == nil || opts.SaveProgress == nil {
		return fmt.Errorf("sync requires GetProgress and SaveProgress")
	}
	req := Request[T]{
		ChainID:         opts.ChainID,
		Query:           opts.Query,
		EventSignatures: opts.EventSignatures,
		StartBlock:      opts.GetProgress,
		FormatRow:       opts.FormatRow,
		Retry:           opts.Retry,
	}
	for resp, err := range Live(ctx, c, req) {
		if err != nil {
			return err
		}
		if err := opts.SaveProgress(ctx, resp.BlockNumber, resp.Result); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("save progress at block %d: %w", resp.BlockNumber, err)
		}
	}
	return nil
}
