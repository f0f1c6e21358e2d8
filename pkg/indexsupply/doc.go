// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package indexsupply is a client for the Index Supply SQL API, which serves
// blockchain event logs through SQL queries.
//
// Query runs a request once. Live keeps a connection to the streaming
// endpoint open and yields a Response for every result the server pushes:
//
//	c := indexsupply.New(indexsupply.Config{APIKey: key})
//	req := indexsupply.Request[indexsupply.Row]{
//		ChainID:         indexsupply.ChainBase,
//		Query:           `select block_num, "from", "to", value from transfer`,
//		EventSignatures: []string{"Transfer(address indexed from, address indexed to, uint256 value)"},
//		StartBlock:      func(ctx context.Context) (uint64, error) { return store.Next(ctx) },
//	}
//	for resp, err := range indexsupply.Live(ctx, c, req) {
//		if err != nil {
//			return err
//		}
//		// resp.BlockNumber, resp.Result
//	}
//
// Failures are classified by Kind. KindUser errors end a query at once;
// KindWait errors are retried after an exponential delay and KindRetry
// errors straight away. A live stream reconnects until its context is
// cancelled, resuming from StartBlock when set and from the last block
// height seen otherwise. Delivery is at-least-once: rows near a reconnect
// may be seen twice.
package indexsupply
