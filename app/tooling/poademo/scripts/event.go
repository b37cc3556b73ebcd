package scripts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ardanlabs/poagov/business/core/governance"
	"github.com/ardanlabs/poagov/business/core/workflow"
	"github.com/ardanlabs/poagov/foundation/solc"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// eventContract is the contract the event demo compiles and deploys.
const eventContract = "POA_Event2"

// Every nomination in the event demo pays nominationValue and announces
// the nominee as "Nick", hex encoded to fill the bytes32 moniker.
const (
	nominationValue = 10000
	nomineeMoniker  = "0x4e69636b00000000000000000000000000000000000000000000000000000000"
)

// Event deploys a fresh governance contract from node 1 and admits nodes
// 2 and 4 through it.
func Event(cfg Config) []workflow.Step {
	steps := []workflow.Step{
		{
			Name:    "STEP 1) Get ETH Accounts",
			Explain: "Each node controls one account which allows it to send and receive Ether.",
			Action:  workflow.ActionQuery,
			Run:     cfg.balances,
		},
		{
			Name: "STEP 2) Deploy a POA_Event2 SmartContract for 1000 wei from node 1",
			Explain: "Here we compiled and deployed the POA_Event2 SmartContract.\n" +
				"The contract was written in the high-level Solidity language which compiles\n" +
				"down to EVM bytecode. The deploying account is the first member of its whitelist.",
			Action: workflow.ActionDeploy,
			Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
				ctr, err := cfg.deploy(ctx, st, 0, 1000)
				if err != nil {
					return st, err
				}
				return st.WithContract(ctr), nil
			},
		},
		count("STEP 3) Check Number of Nodes in the White List", cfg, "It should be one at this point."),
		nominee("STEP 4) Check if Node 2 is in nominee list", cfg, 1),
		{
			Name:    "STEP 5) Nominate Node 2",
			Explain: "Node 1 nominates node 2.",
			Action:  workflow.ActionNominate,
			Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
				addr, err := address(st, 1)
				if err != nil {
					return st, err
				}
				_, err = cfg.invoke(ctx, st, 0, "submitNominee", nominationValue, addr, nomineeMoniker)
				return st, err
			},
		},
		nominee("STEP 6) Check if Node 2 is in nominee list", cfg, 1),
		ballot("STEP 7) Node 1 votes for Node 2", cfg, 0, 1),
		whitelisted("STEP 8) Check if Node 2 is in whitelist", cfg, 1),
		nominee("STEP 9) Check if Node 2 is in nominee list", cfg, 1),
		count("STEP 10) Check Number of Nodes in the White List", cfg, "Node 2 has joined the whitelist."),
		nominee("STEP 11) Check if Node 4 is in nominee list", cfg, 3),
		{
			Name:    "STEP 12) Nominate Node 4",
			Explain: "Node 1 nominates node 4.",
			Action:  workflow.ActionNominate,
			Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
				addr, err := address(st, 3)
				if err != nil {
					return st, err
				}
				_, err = cfg.invoke(ctx, st, 0, "submitNominee", nominationValue, addr, nomineeMoniker)
				return st, err
			},
		},
		nominee("STEP 13) Check if Node 4 is in nominee list", cfg, 3),
		ballot("STEP 14) Node 2 votes for Node 4", cfg, 1, 3),
		whitelisted("STEP 15) Check if Node 4 is in whitelist", cfg, 3),
		nominee("STEP 16) Check if Node 4 is in nominee list", cfg, 3),
		count("STEP 17) Check Number of Nodes in the White List", cfg, "Node 4 still waits for node 1."),
		ballot("STEP 18) Node 1 votes for Node 4", cfg, 0, 3),
		whitelisted("STEP 19) Check if Node 4 is in whitelist", cfg, 3),
		nominee("STEP 20) Check if Node 4 is in nominee list", cfg, 3),
		count("STEP 21) Check Number of Nodes in the White List", cfg, "Node 4 has joined the whitelist."),
	}

	return steps
}

// deploy compiles the contract, or loads the precompiled artifact, and
// deploys it signed by the node at the index.
func (cfg Config) deploy(ctx context.Context, st workflow.State, node int, value int64) (*governance.Contract, error) {
	deployer, err := st.Registry.Signer(node)
	if err != nil {
		return nil, err
	}

	art, err := cfg.artifact(ctx)
	if err != nil {
		return nil, err
	}

	ctr, err := governance.Load(governance.Config{
		Client:    deployer.Client,
		ABI:       art.ABI,
		Bytecode:  art.Bytecode,
		Account:   deployer.Account,
		Timeout:   cfg.Timeout,
		EvHandler: cfg.EvHandler,
	})
	if err != nil {
		return nil, err
	}

	deployed, res, err := ctr.Deploy(ctx, big.NewInt(value), constructorArgs(ctr.Capabilities().ABI(), deployer.Name)...)
	if err != nil {
		return nil, err
	}

	workflow.Info(cfg.out(), "Contract: %s", deployed.Address().Hex())
	cfg.print(res)

	return deployed, nil
}

func (cfg Config) artifact(ctx context.Context) (solc.Artifact, error) {
	if cfg.ArtifactDir != "" {
		return solc.LoadArtifact(cfg.ArtifactDir, eventContract)
	}

	compile := cfg.Compile
	if compile == nil {
		compile = solc.Compile
	}

	arts, err := compile(ctx, cfg.ContractPath)
	if err != nil {
		return solc.Artifact{}, err
	}

	return arts.Lookup(":" + eventContract)
}

// constructorArgs supplies the deployer's name for a single text or bytes32
// constructor input.
func constructorArgs(a abi.ABI, name string) []any {
	inputs := a.Constructor.Inputs
	if len(inputs) != 1 {
		return nil
	}

	switch inputs[0].Type.T {
	case abi.FixedBytesTy, abi.StringTy:
		return []any{name}
	}

	return nil
}

// =============================================================================

func count(name string, cfg Config, explain string) workflow.Step {
	return workflow.Step{
		Name:    name,
		Explain: "Get number of nodes in the whitelist. " + explain,
		Action:  workflow.ActionQuery,
		Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
			n, err := st.Contract.WhitelistCount(ctx)
			if err != nil {
				return st, err
			}
			workflow.Info(cfg.out(), "Whitelist count: %s", n)
			return st, nil
		},
	}
}

func nominee(name string, cfg Config, node int) workflow.Step {
	return workflow.Step{
		Name:    name,
		Explain: fmt.Sprintf("Should return a boolean telling whether %s is a nominee.", moniker(node)),
		Action:  workflow.ActionQuery,
		Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
			addr, err := address(st, node)
			if err != nil {
				return st, err
			}

			ok, err := st.Contract.IsNominee(ctx, addr)
			if err != nil {
				return st, err
			}
			workflow.Info(cfg.out(), "%s nominee: %t", moniker(node), ok)
			return st, nil
		},
	}
}

func whitelisted(name string, cfg Config, node int) workflow.Step {
	return workflow.Step{
		Name:    name,
		Explain: fmt.Sprintf("Should return a boolean telling whether %s is whitelisted.", moniker(node)),
		Action:  workflow.ActionQuery,
		Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
			addr, err := address(st, node)
			if err != nil {
				return st, err
			}

			ok, err := st.Contract.IsWhitelisted(ctx, addr)
			if err != nil {
				return st, err
			}
			workflow.Info(cfg.out(), "%s whitelisted: %t", moniker(node), ok)
			return st, nil
		},
	}
}

func ballot(name string, cfg Config, voter int, node int) workflow.Step {
	return workflow.Step{
		Name:    name,
		Explain: fmt.Sprintf("%s casts a vote for %s.", moniker(voter), moniker(node)),
		Action:  workflow.ActionVote,
		Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
			addr, err := address(st, node)
			if err != nil {
				return st, err
			}
			_, err = cfg.invoke(ctx, st, voter, "castNomineeVote", 20000, addr, true)
			return st, err
		},
	}
}
