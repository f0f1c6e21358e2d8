// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"indexsupply/cli/internal/config"
	"indexsupply/cli/pkg/indexsupply"
)

// blocktimeCmd estimates when a block was produced.
var blocktimeCmd = &cobra.Command{
	Use:   "blocktime <block>",
	Short: "Estimate the timestamp of a block",
	Long: `The blocktime command estimates when a block was produced from the chain's
genesis time and fixed block interval. Only chains with a constant block
time are supported.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		block, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid block number %q", args[0])
		}
		cfg, err := loadSettings(config.Overrides{})
		if err != nil {
			return err
		}
		t, err := indexsupply.GuessBlockTime(cfg.Chain, block)
		if err != nil {
			known := make([]string, 0)
			for _, c := range indexsupply.KnownChains() {
				known = append(known, strconv.FormatUint(c, 10))
			}
			return fmt.Errorf("%w (known chains: %s)", err, strings.Join(known, ", "))
		}
		fmt.Printf("%s (%s ago)\n", t.Format(time.RFC3339), time.Since(t).Truncate(time.Second))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blocktimeCmd)
}
