// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"indexsupply/cli/internal/config"
	"indexsupply/cli/internal/dsn"
	"indexsupply/cli/internal/keychain"
	"indexsupply/cli/internal/progress"
	"indexsupply/cli/pkg/indexsupply"
)

var (
	syncSigs        []string
	syncFile        string
	syncDSN         string
	syncStartBlock  uint64
	syncMaxAttempts int
	syncMetricsAddr string
)

// syncCmd streams a query into Postgres, resuming from saved progress.
var syncCmd = &cobra.Command{
	Use:   "sync [sql]",
	Short: "Stream query results into a Postgres database",
	Long: `The sync command follows a query live and writes every result into the
indexsupply_rows table, recording the last block height in
indexsupply_progress within the same transaction. When restarted with the
same chain, query and signatures it resumes after the last saved block.

The database is taken from --dsn, INDEXSUPPLY_DSN, DATABASE_URL or the
connection saved by 'indexsupply connect'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := readQuery(args, syncFile)
		if err != nil {
			return err
		}
		a, err := newApp(config.Overrides{MetricsAddr: syncMetricsAddr})
		if err != nil {
			return err
		}

		var load dsn.Loader
		if km, err := keychain.GetManager(); err == nil {
			load = km.LoadDBDSN
		}
		conn, source, err := dsn.Resolve(syncDSN, load)
		if err != nil {
			return err
		}
		a.logger.Debug("database selected", "source", source)

		ctx := cmd.Context()
		openCtx, cancelOpen := context.WithTimeout(ctx, 10*time.Second)
		pool, err := progress.Open(openCtx, conn, 4)
		cancelOpen()
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		key := progress.Key{Chain: a.cfg.Chain, Query: q, EventSignatures: syncSigs}
		store := progress.New(pool, key, syncStartBlock)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		a.logger.Info("syncing", "query_id", store.ID(), "chain", a.cfg.Chain)

		policy := a.cfg.Retry.Policy()
		policy.MaxAttempts = syncMaxAttempts
		opts := indexsupply.SyncOptions[indexsupply.Row]{
			ChainID:         a.cfg.Chain,
			Query:           q,
			EventSignatures: syncSigs,
			Retry:           &policy,
			GetProgress:     store.Next,
			SaveProgress: func(ctx context.Context, block uint64, rows []indexsupply.Row) error {
				if err := store.Save(ctx, block, rows); err != nil {
					return err
				}
				a.logger.Info("saved", "block", block, "rows", len(rows))
				return nil
			},
		}

		g, gctx := errgroup.WithContext(ctx)
		syncCtx, cancel := context.WithCancel(gctx)
		defer cancel()
		a.serveMetrics(syncCtx, g)
		c := a.client(nil)
		g.Go(func() error {
			defer cancel()
			return indexsupply.Sync(syncCtx, c, opts)
		})
		return a.report(g.Wait(), "syncing query")
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	f := syncCmd.Flags()
	f.StringArrayVarP(&syncSigs, "sig", "s", nil, "Event signature the query reads from (repeatable)")
	f.StringVarP(&syncFile, "file", "f", "", "Read the query from a file, or - for stdin")
	f.StringVar(&syncDSN, "dsn", "", "Postgres connection string")
	f.Uint64Var(&syncStartBlock, "start-block", 0, "Block height to start from when nothing is saved yet")
	f.IntVar(&syncMaxAttempts, "max-attempts", 0, "Give up after this many consecutive failures (0 retries forever)")
	f.StringVar(&syncMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}
