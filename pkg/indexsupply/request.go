// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import "context"

// Row is the default result row: column name to value. Numbers are
// json.Number so large integers survive decoding.
type Row = map[string]any

// Formatter turns one data row into a T. Values are in column order.
type Formatter[T any] func(row []any) (T, error)

// CursorFunc supplies the block height to resume from. It is called before
// every connection attempt, so it should return the caller's latest
// persisted progress.
type CursorFunc func(ctx context.Context) (uint64, error)

// Request describes a query. T is the row type produced by FormatRow, or Row
// when FormatRow is nil.
type Request[T any] struct {
	ChainID         uint64
	Query           string
	EventSignatures []string

	// APIKey and APIURL override the client defaults when set.
	APIKey string
	APIURL string

	// StartBlock, when set, is asked for the cursor on every attempt. When
	// nil, Live resumes from the last block height it has seen.
	StartBlock CursorFunc

	FormatRow Formatter[T]

	// Retry overrides the client's retry policy.
	Retry *RetryPolicy
}

// Response is one decoded result set.
type Response[T any] struct {
	BlockNumber uint64
	Result      []T
}
