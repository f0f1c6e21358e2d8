// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"os"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"indexsupply/cli/internal/config"
	"indexsupply/cli/internal/terminal"
	"indexsupply/cli/pkg/indexsupply"
)

var (
	liveSigs        []string
	liveFile        string
	liveOutput      string
	liveStartBlock  uint64
	liveMaxAttempts int
	liveMetricsAddr string
)

// liveCmd follows a query as new blocks arrive.
var liveCmd = &cobra.Command{
	Use:   "live [sql]",
	Short: "Stream query results as new blocks arrive",
	Long: `The live command keeps a streaming connection open and prints a result
every time the server pushes one. Dropped connections are re-established from
the last block height received, so results near a reconnect may repeat.

With --output table on a terminal the latest result is shown in a status
panel. json writes one document per line and cbor a CBOR sequence.

Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := readQuery(args, liveFile)
		if err != nil {
			return err
		}
		a, err := newApp(config.Overrides{Output: liveOutput, MetricsAddr: liveMetricsAddr})
		if err != nil {
			return err
		}
		p, err := newPrinter(os.Stdout, a.cfg.Output, false)
		if err != nil {
			return err
		}

		policy := a.cfg.Retry.Policy()
		policy.MaxAttempts = liveMaxAttempts
		req := indexsupply.Request[indexsupply.Row]{
			ChainID:         a.cfg.Chain,
			Query:           q,
			EventSignatures: liveSigs,
			StartBlock:      startBlockFlag(cmd.Flags().Changed("start-block"), liveStartBlock),
			Retry:           &policy,
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)
		a.serveMetrics(gctx, g)

		status := newLiveStatus()
		dashboard := a.cfg.Output == outputTable && terminal.IsTerminal(os.Stdout)
		if dashboard {
			g.Go(func() error { return runStatusArea(gctx, status) })
		}
		c := a.client(status)

		g.Go(func() error {
			defer cancel()
			for resp, err := range indexsupply.Live(gctx, c, req) {
				if err != nil {
					return err
				}
				if dashboard {
					status.setLatest(renderTable(resp))
					continue
				}
				if err := p.print(resp); err != nil {
					return err
				}
			}
			return nil
		})
		return a.report(g.Wait(), "streaming query")
	},
}

// runStatusArea redraws the status panel until ctx is done.
func runStatusArea(ctx context.Context, status *liveStatus) error {
	cursor.Hide()
	defer cursor.Show()

	area, err := pterm.DefaultArea.WithRemoveWhenDone(false).Start()
	if err != nil {
		return err
	}
	defer func() { _ = area.Stop() }()

	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		area.Update(status.render(spinnerFrames[i%len(spinnerFrames)], time.Now()))
		select {
		case <-ctx.Done():
			area.Update(status.render("■", time.Now()))
			return nil
		case <-ticker.C:
		}
	}
}

func init() {
	rootCmd.AddCommand(liveCmd)
	f := liveCmd.Flags()
	f.StringArrayVarP(&liveSigs, "sig", "s", nil, "Event signature the query reads from (repeatable)")
	f.StringVarP(&liveFile, "file", "f", "", "Read the query from a file, or - for stdin")
	f.StringVarP(&liveOutput, "output", "o", "", "Output format: table, json or cbor")
	f.Uint64Var(&liveStartBlock, "start-block", 0, "Block height to start streaming from")
	f.IntVar(&liveMaxAttempts, "max-attempts", 0, "Give up after this many consecutive failures (0 retries forever)")
	f.StringVar(&liveMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}
