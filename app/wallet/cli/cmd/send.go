package cmd

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	to    string
	value string
	wait  bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send value to another account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(to) {
			return fmt.Errorf("invalid to address %q", to)
		}

		amount, ok := new(big.Int).SetString(value, 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("invalid value %q", value)
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		account, err := unlock(cmd.Context())
		if err != nil {
			return err
		}

		hash, err := client.Transfer(cmd.Context(), account.PrivateKey, common.HexToAddress(to), amount)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash.Hex())

		if !wait {
			return nil
		}

		rcpt, err := client.WaitReceipt(cmd.Context(), hash, timeout)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "status[%d] gasUsed[%d]\n", rcpt.Status, rcpt.GasUsed)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address to send to.")
	sendCmd.Flags().StringVarP(&value, "value", "v", "0", "Value to send in wei.")
	sendCmd.Flags().BoolVarP(&wait, "wait", "w", true, "Wait for the receipt.")
}
