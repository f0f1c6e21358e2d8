// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"fmt"
	"slices"
	"time"
)

const (
	ChainBase        uint64 = 8453
	ChainBaseSepolia uint64 = 84532
	ChainZora        uint64 = 7777777
)

type chainClock struct {
	// genesis is the unix time of block 0.
	genesis int64
	// rate is seconds per block.
	rate int64
}

var chainClocks = map[uint64]chainClock{
	ChainBase:        {genesis: 1686789347, rate: 2},
	ChainBaseSepolia: {genesis: 1695768288, rate: 2},
	ChainZora:        {genesis: 1686693839, rate: 2},
}

// GuessBlockTime estimates when block was produced on chain from the chain's
// genesis time and its fixed block interval.
func GuessBlockTime(chain, block uint64) (time.Time, error) {
	clk, ok := chainClocks[chain]
	if !ok {
		return time.Time{}, fmt.Errorf("chain %d has no known block clock; unable to guess timestamp", chain)
	}
	return time.Unix(clk.genesis+int64(block)*clk.rate, 0).UTC(), nil
}

// KnownChains lists the chains GuessBlockTime supports, in ascending order.
func KnownChains() []uint64 {
	chains := make([]uint64, 0, len(chainClocks))
	for id := range chainClocks {
		chains = append(chains, id)
	}
	slices.Sort(chains)
	return chains
}
