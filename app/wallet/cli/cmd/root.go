// Package cmd contains the governance wallet commands.
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ardanlabs/poagov/business/core/governance"
	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ardanlabs/poagov/foundation/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	keystorePath string
	accountAddr  string
	pwdPath      string
	nodeAddr     string
	chainID      int64
	timeout      time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&keystorePath, "keystore", "k", "zblock/keystore", "Path to the keystore directory.")
	rootCmd.PersistentFlags().StringVarP(&accountAddr, "account", "a", "", "Address of the account to use, the first key file when empty.")
	rootCmd.PersistentFlags().StringVarP(&pwdPath, "pwd", "p", "zblock/pwd.txt", "Path to the file holding the keystore password.")
	rootCmd.PersistentFlags().StringVarP(&nodeAddr, "node", "n", "127.0.0.1:8080", "Host and port of the node.")
	rootCmd.PersistentFlags().Int64Var(&chainID, "chain-id", evmlite.DefaultChainID, "Chain id used to sign transactions.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", governance.DefaultTimeout, "How long to wait for a receipt.")
}

var rootCmd = &cobra.Command{
	Use:          "wallet",
	Short:        "Governance wallet for a PoA network",
	SilenceUsage: true,
}

// Execute runs the wallet.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// =============================================================================

func newClient() (*evmlite.Client, error) {
	host, port, err := net.SplitHostPort(nodeAddr)
	if err != nil {
		return nil, fmt.Errorf("node address %q: %w", nodeAddr, err)
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("node port %q: %w", port, err)
	}

	return evmlite.New(evmlite.Config{Host: host, Port: p, ChainID: chainID}), nil
}

// unlock decrypts the selected account.
func unlock(ctx context.Context) (keystore.Account, error) {
	password, err := keystore.ReadPassword(pwdPath)
	if err != nil {
		return keystore.Account{}, err
	}

	ks := keystore.New(keystorePath)
	entries, err := ks.List(ctx, nil)
	if err != nil {
		return keystore.Account{}, err
	}

	for _, entry := range entries {
		if accountAddr != "" && entry.Address != common.HexToAddress(accountAddr) {
			continue
		}
		return ks.Decrypt(entry, password)
	}

	if accountAddr == "" {
		return keystore.Account{}, keystore.ErrNoAccounts
	}
	return keystore.Account{}, fmt.Errorf("account %s: %w", accountAddr, keystore.ErrNoAccounts)
}

// poa loads the governance contract of the node bound to the account.
func poa(ctx context.Context, client *evmlite.Client, account keystore.Account) (*governance.Contract, error) {
	ctr, err := client.POA(ctx)
	if err != nil {
		return nil, err
	}

	return governance.Load(governance.Config{
		Client:  client,
		ABI:     ctr.ABI,
		Address: ctr.Address,
		Account: account,
		Timeout: timeout,
	})
}

func printResult(cmd *cobra.Command, res governance.Result) {
	out := cmd.OutOrStdout()

	if !res.Waited() {
		fmt.Fprintf(out, "%s: %v\n", res.Method, res.Response())
		return
	}

	fmt.Fprintf(out, "%s: tx[%s] status[%d]\n", res.Method, res.TxHash.Hex(), res.Receipt.Status)
	for _, e := range res.Events {
		fmt.Fprintf(out, "  %s %v\n", e.Name, e.Args)
	}
}
