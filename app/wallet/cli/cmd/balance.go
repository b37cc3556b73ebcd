package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Print the balance of an address or of the selected account",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		var address common.Address
		switch {
		case len(args) == 1:
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid address %q", args[0])
			}
			address = common.HexToAddress(args[0])

		default:
			account, err := unlock(cmd.Context())
			if err != nil {
				return err
			}
			address = account.Address
		}

		acct, err := client.Account(cmd.Context(), address)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "For Account: %s\n%s\n", acct.Address.Hex(), acct.Balance)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
