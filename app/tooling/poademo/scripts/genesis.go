package scripts

import (
	"context"
	"fmt"

	"github.com/ardanlabs/poagov/business/core/governance"
	"github.com/ardanlabs/poagov/business/core/workflow"
)

var (
	whitelistedNames = []string{"dev_isWhitelisted", "isWhitelisted"}
	countNames       = []string{"dev_getWhitelistCount", "getWhiteListCount"}
	votesNames       = []string{"dev_getCurrentNomineeVotes", "getCurrentNomineeVotes"}
)

// Genesis walks the network through admitting nodes via the governance
// contract the nodes started with.
func Genesis(cfg Config) []workflow.Step {
	return []workflow.Step{
		{
			Name:    "STEP 0.1) Get ETH Account on this Node",
			Explain: "Quick check that we can talk to the node.",
			Action:  workflow.ActionQuery,
			Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
				self, err := st.Registry.Signer(st.NodeNo)
				if err != nil {
					return st, err
				}

				acct, err := self.Client.Account(ctx, self.Account.Address)
				if err != nil {
					return st, err
				}

				workflow.Info(cfg.out(), "%s: %s balance[%s]", self, acct.Address.Hex(), acct.Balance)
				return st, nil
			},
		},
		{
			Name:    "STEP 0.2) Set Up Object for accessing the Genesis Authority Smart Contract",
			Explain: "Quick check that things are working. We should have a return value of 27 from the test function and the first hard coded genesis whitelist entry.",
			Action:  workflow.ActionQuery,
			Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
				self, err := st.Registry.Signer(st.NodeNo)
				if err != nil {
					return st, err
				}

				poa, err := self.Client.POA(ctx)
				if err != nil {
					return st, err
				}

				ctr, err := governance.Load(governance.Config{
					Client:    self.Client,
					ABI:       poa.ABI,
					Address:   poa.Address,
					Account:   self.Account,
					Timeout:   cfg.Timeout,
					EvHandler: cfg.EvHandler,
				})
				if err != nil {
					return st, err
				}
				st = st.WithContract(ctr)

				workflow.Info(cfg.out(), "Contract: %s", poa.Address.Hex())

				for _, name := range []string{"dev_27", "dev_getGenesisWhitelist0"} {
					if !ctr.Capabilities().Has(name) {
						continue
					}
					if _, err := cfg.invoke(ctx, st, st.NodeNo, name, 0); err != nil {
						return st, err
					}
				}

				return st, nil
			},
		},
		{
			Name:    "STEP 1) Am I on the whitelist or genesis whitelist?",
			Explain: "Check the authority of this account.",
			Action:  workflow.ActionQuery,
			Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
				self, err := address(st, st.NodeNo)
				if err != nil {
					return st, err
				}

				if _, err := cfg.first(ctx, st, st.NodeNo, whitelistedNames, 0, self); err != nil {
					return st, err
				}
				if st.Contract.Capabilities().Has("dev_isGenesisWhitelisted") {
					if _, err := cfg.invoke(ctx, st, st.NodeNo, "dev_isGenesisWhitelisted", 0, self); err != nil {
						return st, err
					}
				}
				if _, err := cfg.first(ctx, st, st.NodeNo, countNames, 0); err != nil {
					return st, err
				}
				if _, err := cfg.invoke(ctx, st, st.NodeNo, "checkAuthorised", 0, self); err != nil {
					return st, err
				}

				return st, nil
			},
		},
		nominate("STEP 2) Node 1 Nominates Node 3", cfg, 0, 2, 10000000),
		vote("STEP 3) Node 1 Votes for Node 3", cfg, 0, 2, true, 10000000),
		join("STEP 4) Node 3 Tries to Join", cfg, 2, 2, "Restart Node 3"),
		vote("STEP 5) Node 2 Votes for Node 3", cfg, 1, 2, true, 100000),
		{
			Name:    "STEP 6) Node 3 joins",
			Explain: "With every whitelisted node in favour, node 3 is on the whitelist and can validate blocks.",
			Action:  workflow.ActionQuery,
			Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
				nominee, err := address(st, 2)
				if err != nil {
					return st, err
				}

				_, err = cfg.first(ctx, st, st.NodeNo, whitelistedNames, 0, nominee)
				return st, err
			},
		},
		nominate("STEP 7) Node 1 Nominates Node 4", cfg, 0, 3, 100000),
		vote("STEP 8) Node 1 Votes for Node 4", cfg, 0, 3, true, 100000),
		vote("STEP 9) Node 2 Votes for Node 4", cfg, 1, 3, true, 100000),
		vote("STEP 10) Node 3 Votes against Node 4", cfg, 2, 3, false, 100000),
		join("STEP 11) Node 4 tries to join", cfg, 0, 3, "Node 4 joins"),
	}
}

// nominate has the proposer node submit the nominee node.
func nominate(name string, cfg Config, proposer int, nominee int, value int64) workflow.Step {
	return workflow.Step{
		Name:    name,
		Explain: fmt.Sprintf("%s is now a nominee. It needs the votes of the whitelist before it may join.", moniker(nominee)),
		Action:  workflow.ActionNominate,
		Roles:   workflow.Only(workflow.ActionNominate, proposer),
		Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
			addr, err := address(st, nominee)
			if err != nil {
				return st, err
			}

			if _, err := cfg.invoke(ctx, st, proposer, "submitNominee", value, addr, moniker(nominee)); err != nil {
				return st, err
			}
			if _, err := cfg.first(ctx, st, proposer, votesNames, 0, addr); err != nil {
				return st, err
			}
			if _, err := cfg.first(ctx, st, proposer, countNames, 0); err != nil {
				return st, err
			}

			self, err := address(st, proposer)
			if err != nil {
				return st, err
			}
			_, err = cfg.first(ctx, st, proposer, whitelistedNames, 0, self)
			return st, err
		},
	}
}

// vote has the voter node cast a vote on the nominee node.
func vote(name string, cfg Config, voter int, nominee int, accepted bool, value int64) workflow.Step {
	verdict := "for"
	if !accepted {
		verdict = "against"
	}

	return workflow.Step{
		Name:    name,
		Explain: fmt.Sprintf("%s voted %s %s. The contract decides once the votes are in.", moniker(voter), verdict, moniker(nominee)),
		Action:  workflow.ActionVote,
		Roles:   workflow.Only(workflow.ActionVote, voter),
		Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
			addr, err := address(st, nominee)
			if err != nil {
				return st, err
			}

			if _, err := cfg.invoke(ctx, st, voter, "castNomineeVote", value, addr, accepted); err != nil {
				return st, err
			}

			_, err = cfg.first(ctx, st, voter, votesNames, 0, addr)
			return st, err
		},
	}
}

// join has the operator node report whether the nominee made it onto
// the whitelist.
func join(name string, cfg Config, operator int, nominee int, msg string) workflow.Step {
	return workflow.Step{
		Name:    name,
		Explain: fmt.Sprintf("%s can only take part in consensus once it is whitelisted.", moniker(nominee)),
		Action:  workflow.ActionOperate,
		Roles:   workflow.Only(workflow.ActionOperate, operator),
		Run: func(ctx context.Context, st workflow.State) (workflow.State, error) {
			workflow.Info(cfg.out(), "%s", msg)

			addr, err := address(st, nominee)
			if err != nil {
				return st, err
			}

			res, err := cfg.first(ctx, st, operator, whitelistedNames, 0, addr)
			if err != nil {
				return st, err
			}

			ok, err := res.Bool()
			if err != nil {
				return st, err
			}
			workflow.Info(cfg.out(), "%s whitelisted: %t", moniker(nominee), ok)

			return st, nil
		},
	}
}
