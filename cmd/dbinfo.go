// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"indexsupply/cli/internal/dsn"
	"indexsupply/cli/internal/keychain"
	"indexsupply/cli/internal/logging"
	"indexsupply/cli/internal/progress"
)

var dbinfoDSN string

// dbinfoCmd shows the sync database and the queries synced into it.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show the sync database and its progress",
	Long: `The dbinfo command displays the database connection string sync would use,
with the password masked, and lists every query synced into it with its last
saved block.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var load dsn.Loader
		if km, err := keychain.GetManager(); err == nil {
			load = km.LoadDBDSN
		}
		conn, source, err := dsn.Resolve(dbinfoDSN, load)
		if errors.Is(err, dsn.ErrNoDSN) {
			pterm.Println("⚠️  No database connection configured")
			pterm.Println("   Please run: indexsupply connect")
			return nil
		}
		if err != nil {
			return err
		}

		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithPadding(1).
			Println(logging.Mask(conn))
		pterm.Printf("Source: %s\n\n", source)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		pool, err := progress.Open(ctx, conn, 1)
		if err != nil {
			pterm.Println(logging.PresentError("❌ Database unreachable", err))
			return nil
		}
		defer pool.Close()

		entries, err := progress.List(ctx, pool)
		if err != nil {
			pterm.Println("No sync progress yet. Run 'indexsupply connect' to create the tables.")
			return nil
		}
		if len(entries) == 0 {
			pterm.Println("No queries synced yet.")
			return nil
		}

		data := pterm.TableData{{"Query ID", "Chain", "Block", "Rows", "Updated", "Query"}}
		for _, e := range entries {
			data = append(data, []string{
				e.QueryID[:12],
				strconv.FormatUint(e.Chain, 10),
				strconv.FormatUint(e.BlockNum, 10),
				strconv.FormatInt(e.Rows, 10),
				e.UpdatedAt.Local().Format(time.DateTime),
				truncate(e.Query, 48),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
	dbinfoCmd.Flags().StringVar(&dbinfoDSN, "dsn", "", "Postgres connection string")
}
