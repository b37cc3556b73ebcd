package cmd

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ardanlabs/poagov/foundation/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var govValue int64

var nominateCmd = &cobra.Command{
	Use:   "nominate <address> <moniker>",
	Short: "Propose an address for the whitelist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nominee, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		account, err := unlock(cmd.Context())
		if err != nil {
			return err
		}

		ctr, err := poa(cmd.Context(), client, account)
		if err != nil {
			return err
		}

		res, err := ctr.SubmitNominee(cmd.Context(), nominee, args[1], big.NewInt(govValue))
		if err != nil {
			return err
		}

		printResult(cmd, res)
		return nil
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <address> <yes|no>",
	Short: "Vote on a nominee",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nominee, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		accepted, err := parseVote(args[1])
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		account, err := unlock(cmd.Context())
		if err != nil {
			return err
		}

		ctr, err := poa(cmd.Context(), client, account)
		if err != nil {
			return err
		}

		res, err := ctr.CastNomineeVote(cmd.Context(), nominee, accepted, big.NewInt(govValue))
		if err != nil {
			return err
		}

		printResult(cmd, res)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <address>",
	Short: "Show where an address stands with the governance contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		// Queries need no signer.
		ctr, err := poa(cmd.Context(), client, keystore.Account{})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		whitelisted, err := ctr.IsWhitelisted(ctx, address)
		if err != nil {
			return err
		}
		nominee, err := ctr.IsNominee(ctx, address)
		if err != nil {
			return err
		}
		count, err := ctr.WhitelistCount(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "contract:    %s\n", ctr.Address().Hex())
		fmt.Fprintf(out, "whitelisted: %t\n", whitelisted)
		fmt.Fprintf(out, "nominee:     %t\n", nominee)
		fmt.Fprintf(out, "members:     %s\n", count)

		if nominee {
			votes, err := ctr.NomineeVotes(ctx, address)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "votes:       yes[%s] no[%s]\n", votes.Yes, votes.No)
		}

		return nil
	},
}

func init() {
	nominateCmd.Flags().Int64VarP(&govValue, "value", "v", 0, "Value attached to the call, non zero waits for the receipt.")
	voteCmd.Flags().Int64VarP(&govValue, "value", "v", 0, "Value attached to the call, non zero waits for the receipt.")
	rootCmd.AddCommand(nominateCmd, voteCmd, statusCmd)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseVote(s string) (bool, error) {
	switch s {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}
