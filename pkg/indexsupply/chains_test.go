// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"testing"
	"time"
)

func TestGuessBlockTime(t *testing.T) {
	tests := []struct {
		chain   uint64
		block   uint64
		want    time.Time
		wantErr bool
	}{
		{chain: ChainBase, block: 0, want: time.Unix(1686789347, 0).UTC()},
		{chain: ChainBase, block: 2397613, want: time.Unix(1686789347+2*2397613, 0).UTC()},
		{chain: ChainBaseSepolia, block: 10, want: time.Unix(1695768308, 0).UTC()},
		{chain: ChainZora, block: 1, want: time.Unix(1686693841, 0).UTC()},
		{chain: 1, block: 1, wantErr: true},
	}
	for _, tt := range tests {
		got, err := GuessBlockTime(tt.chain, tt.block)
		if (err != nil) != tt.wantErr {
			t.Errorf("GuessBlockTime(%d, %d) error = %v, wantErr %v", tt.chain, tt.block, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("GuessBlockTime(%d, %d) = %v, want %v", tt.chain, tt.block, got, tt.want)
		}
	}
}

func TestKnownChains(t *testing.T) {
	got := KnownChains()
	want := []uint64{ChainBase, ChainBaseSepolia, ChainZora}
	if len(got) != len(want) {
		t.Fatalf("KnownChains() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("KnownChains()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
