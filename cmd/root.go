// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the Index Supply CLI.
// It implements one-shot and live SQL queries over blockchain events, a
// Postgres sync, credential storage and configuration using the Cobra CLI
// framework.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	showVersion bool

	flagAPIURL   string
	flagAPIKey   string
	flagChain    uint64
	flagLogLevel string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "indexsupply",
	Short: "Query and stream blockchain events with SQL",
	Long: `indexsupply runs SQL queries over decoded EVM event logs served by the
Index Supply API. Results can be printed once, followed live as new blocks
arrive, or synced into a Postgres database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion()
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application. Interrupts cancel the command context so
// streams and syncs stop cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and client library version")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagAPIURL, "api-url", "", "Index Supply API base URL")
	pf.StringVar(&flagAPIKey, "api-key", "", "API key (defaults to INDEXSUPPLY_API_KEY or the saved key)")
	pf.Uint64Var(&flagChain, "chain", 0, "Chain ID to query")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}
