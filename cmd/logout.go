// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"indexsupply/cli/internal/keychain"
)

var logoutOnly string

// logoutCmd removes saved credentials.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved API key and database connection",
	Long: `The logout command removes the API key and the database connection
string from the OS keychain. Settings in the config file are kept.
Use --only api-key or --only db to remove just one of them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return err
		}
		switch logoutOnly {
		case "":
			err = km.ClearAll()
		case "api-key":
			err = km.ClearAPIKey()
		case "db":
			err = km.ClearDB()
		default:
			return fmt.Errorf("--only must be api-key or db, got %q", logoutOnly)
		}
		if err != nil {
			return err
		}
		if logoutOnly == "" {
			fmt.Println("✅ All saved credentials have been removed")
		} else {
			fmt.Printf("✅ Saved %s has been removed\n", logoutOnly)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().StringVar(&logoutOnly, "only", "", "Remove only this credential: api-key or db")
}
