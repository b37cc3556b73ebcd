package cmd

import (
	"fmt"

	"github.com/ardanlabs/poagov/foundation/keystore"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage keystore accounts",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the accounts in the keystore with their balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		entries, err := keystore.New(keystorePath).List(cmd.Context(), client)
		if err != nil {
			return err
		}

		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s balance[%s] nonce[%d]\n", e.Address.Hex(), e.Balance, e.Nonce)
		}
		return nil
	},
}

var accountNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new account encrypted with the password file",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := keystore.ReadPassword(pwdPath)
		if err != nil {
			return err
		}

		entry, err := keystore.New(keystorePath).Generate(password)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", entry.Address.Hex(), entry.Path)
		return nil
	},
}

func init() {
	accountCmd.AddCommand(accountListCmd, accountNewCmd)
	rootCmd.AddCommand(accountCmd)
}
