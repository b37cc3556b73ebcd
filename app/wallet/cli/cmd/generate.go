package cmd

import (
	"fmt"

	"github.com/ardanlabs/poagov/foundation/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <key-file>",
	Short: "Encrypt a hex private key file into the keystore",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := crypto.LoadECDSA(args[0])
		if err != nil {
			return err
		}

		password, err := keystore.ReadPassword(pwdPath)
		if err != nil {
			return err
		}

		entry, err := keystore.New(keystorePath).Import(privateKey, password)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", entry.Address.Hex(), entry.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
