package commands

import (
	"fmt"
	"sort"

	"github.com/ardanlabs/poagov/foundation/genesis"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// Balances returns the command that prints the starting balances of a
// genesis file.
func Balances() *cobra.Command {
	var path string

	cmd := cobra.Command{
		Use:   "bals [address]",
		Short: "Print the balances allocated at genesis",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := genesis.Load(path)
			if err != nil {
				return err
			}

			bals, err := gen.Balances()
			if err != nil {
				return err
			}

			var onlyAct common.Address
			if len(args) == 1 {
				onlyAct = common.HexToAddress(args[0])
			}

			accounts := make([]common.Address, 0, len(bals))
			for act := range bals {
				if len(args) == 1 && act != onlyAct {
					continue
				}
				accounts = append(accounts, act)
			}
			sort.Slice(accounts, func(i, j int) bool {
				return accounts[i].Hex() < accounts[j].Hex()
			})

			if gen.POA != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "POA: %s  Members: %d\n\n", gen.POAAddress().Hex(), len(gen.POA.Whitelist))
			}
			for _, act := range accounts {
				fmt.Fprintf(cmd.OutOrStdout(), "Account: %s  Balance: %s\n", act.Hex(), bals[act])
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "genesis", "g", "zblock/genesis.json", "Path to the genesis file.")

	return &cmd
}
