// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"indexsupply/cli/internal/config"
	"indexsupply/cli/pkg/indexsupply"
)

var (
	querySigs       []string
	queryFile       string
	queryOutput     string
	queryPretty     bool
	queryStartBlock uint64
)

// queryCmd runs one SQL query and prints the result.
var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Run a SQL query once",
	Long: `The query command runs a SQL query against the event signatures given
with --sig and prints the result. Transient failures are retried with
exponential backoff; invalid queries fail immediately.

Example:
  indexsupply query --chain 8453 \
    --sig 'Transfer(address indexed from, address indexed to, uint256 value)' \
    'select "from", "to", value from transfer limit 10'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := readQuery(args, queryFile)
		if err != nil {
			return err
		}
		a, err := newApp(config.Overrides{Output: queryOutput})
		if err != nil {
			return err
		}
		p, err := newPrinter(os.Stdout, a.cfg.Output, queryPretty)
		if err != nil {
			return err
		}

		req := indexsupply.Request[indexsupply.Row]{
			ChainID:         a.cfg.Chain,
			Query:           q,
			EventSignatures: querySigs,
			StartBlock:      startBlockFlag(cmd.Flags().Changed("start-block"), queryStartBlock),
		}
		stop := startSpinner(os.Stderr, "running query")
		resp, err := indexsupply.Query(cmd.Context(), a.client(nil), req)
		stop()
		if err != nil {
			return a.report(err, "running query")
		}
		return p.print(resp)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	f := queryCmd.Flags()
	f.StringArrayVarP(&querySigs, "sig", "s", nil, "Event signature the query reads from (repeatable)")
	f.StringVarP(&queryFile, "file", "f", "", "Read the query from a file, or - for stdin")
	f.StringVarP(&queryOutput, "output", "o", "", "Output format: table, json or cbor")
	f.BoolVar(&queryPretty, "pretty", false, "Indent JSON output")
	f.Uint64Var(&queryStartBlock, "start-block", 0, "Only return results from this block height on")
}
