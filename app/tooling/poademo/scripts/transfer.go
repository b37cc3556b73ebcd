package scripts

import (
	"context"
	"math/big"

	"github.com/ardanlabs/poagov/business/core/workflow"
)

// Transfer sends value between the first two nodes and shows the balances
// before and after.
func Transfer(cfg Config) []workflow.Step {
	return []workflow.Step{
		{
			Name:    "STEP 1) Get ETH Accounts",
			Explain: "Each node controls one account which allows it to send and receive Ether.",
			Action:  workflow.ActionQuery,
			Run:     cfg.balances,
		},
		{
			Name: "STEP 2) Send 500 wei (10^-18 ether) from node1 to node2",
			Explain: "We created an EVM transaction to send 500 wei from node1 to node2. The\n" +
				"transaction was signed locally and waited on until the node committed it.",
			Action: workflow.ActionTransfer,
			Roles:  workflow.Only(workflow.ActionTransfer, 0),
			Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
				from, err := st.Registry.Signer(0)
				if err != nil {
					return st, err
				}

				to, err := address(st, 1)
				if err != nil {
					return st, err
				}

				hash, err := from.Client.Transfer(ctx, from.Account.PrivateKey, to, big.NewInt(500))
				if err != nil {
					return st, err
				}
				workflow.Info(cfg.out(), "Transaction: %s", hash.Hex())

				rcpt, err := from.Client.WaitReceipt(ctx, hash, cfg.timeout())
				if err != nil {
					return st, err
				}
				workflow.Info(cfg.out(), "Receipt: status[%d] gasUsed[%d]", rcpt.Status, rcpt.GasUsed)

				return st.With("transfer", hash), nil
			},
		},
		{
			Name:    "STEP 3) Check balances again",
			Explain: "Notice how the balances of node1 and node2 have changed.",
			Action:  workflow.ActionQuery,
			Run:     cfg.balances,
		},
	}
}
