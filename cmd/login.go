// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"indexsupply/cli/internal/keychain"
	"indexsupply/cli/internal/terminal"
)

// loginCmd stores an API key in the OS keychain.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save an Index Supply API key",
	Long: `The login command reads an API key without echoing it and stores it in
the OS keychain. Later commands use it when neither --api-key nor
INDEXSUPPLY_API_KEY is set.

The key can also be piped in: echo "$KEY" | indexsupply login`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := "Enter API key: "
		key, err := terminal.ReadSecret(os.Stdout, os.Stdin, prompt)
		if err != nil {
			return fmt.Errorf("read API key: %w", err)
		}
		if terminal.IsTerminal(os.Stdin) {
			terminal.ClearPreviousLines(os.Stdout, len(prompt), terminal.Width(os.Stdout))
		}
		if key == "" {
			return errors.New("API key is required")
		}

		km, err := keychain.GetManager()
		if err != nil {
			fmt.Println("❌ Secure storage is not available on this system.")
			fmt.Println("   Set INDEXSUPPLY_KEYRING_PASSWORD to use an encrypted file instead,")
			fmt.Println("   or pass the key with INDEXSUPPLY_API_KEY.")
			return err
		}
		if err := km.SaveAPIKey(key); err != nil {
			fmt.Println("❌ Failed to save the API key securely.")
			return err
		}

		fmt.Println("✅ API key saved")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
