package governance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Method names of the governance contract. Where the contract has been
// published under more than one name every alternative is listed, the
// first found in the loaded ABI is used.
var (
	methodSubmitNominee   = []string{"submitNominee"}
	methodCastVote        = []string{"castNomineeVote"}
	methodIsNominee       = []string{"isNominee", "dev_isNominee"}
	methodIsWhitelisted   = []string{"isWhitelisted", "dev_isWhitelisted"}
	methodWhitelistCount  = []string{"getWhiteListCount", "dev_getWhitelistCount"}
	methodNomineeVotes    = []string{"getCurrentNomineeVotes", "dev_getCurrentNomineeVotes"}
	methodCheckAuthorised = []string{"checkAuthorised"}
)

// Votes is the current tally for a nominee.
type Votes struct {
	Yes *big.Int
	No  *big.Int
}

// SubmitNominee proposes the address for the whitelist. The moniker is a
// short name stored as bytes32, either text or 0x prefixed hex.
func (c *Contract) SubmitNominee(ctx context.Context, nominee common.Address, moniker any, value *big.Int) (Result, error) {
	cp, err := c.caps.Resolve(methodSubmitNominee...)
	if err != nil {
		return Result{}, err
	}

	return c.invoke(ctx, c.account, cp, value, nominee, moniker)
}

// CastNomineeVote records a yes or no vote for the nominee.
func (c *Contract) CastNomineeVote(ctx context.Context, nominee common.Address, accepted bool, value *big.Int) (Result, error) {
	cp, err := c.caps.Resolve(methodCastVote...)
	if err != nil {
		return Result{}, err
	}

	return c.invoke(ctx, c.account, cp, value, nominee, accepted)
}

// IsNominee reports whether the address is a pending nominee.
func (c *Contract) IsNominee(ctx context.Context, address common.Address) (bool, error) {
	return c.queryBool(ctx, methodIsNominee, address)
}

// IsWhitelisted reports whether the address is on the whitelist.
func (c *Contract) IsWhitelisted(ctx context.Context, address common.Address) (bool, error) {
	return c.queryBool(ctx, methodIsWhitelisted, address)
}

// CheckAuthorised reports whether the address may take part in consensus.
func (c *Contract) CheckAuthorised(ctx context.Context, address common.Address) (bool, error) {
	return c.queryBool(ctx, methodCheckAuthorised, address)
}

// WhitelistCount returns the number of whitelisted addresses.
func (c *Contract) WhitelistCount(ctx context.Context) (*big.Int, error) {
	res, err := c.query(ctx, methodWhitelistCount)
	if err != nil {
		return nil, err
	}

	return res.Uint(0)
}

// NomineeVotes returns the votes cast so far for the nominee.
func (c *Contract) NomineeVotes(ctx context.Context, nominee common.Address) (Votes, error) {
	res, err := c.query(ctx, methodNomineeVotes, nominee)
	if err != nil {
		return Votes{}, err
	}

	yes, err := res.Uint(0)
	if err != nil {
		return Votes{}, fmt.Errorf("yes votes: %w", err)
	}

	no, err := res.Uint(1)
	if err != nil {
		return Votes{}, fmt.Errorf("no votes: %w", err)
	}

	return Votes{Yes: yes, No: no}, nil
}

func (c *Contract) query(ctx context.Context, names []string, args ...any) (Result, error) {
	cp, err := c.caps.Resolve(names...)
	if err != nil {
		return Result{}, err
	}

	return c.invoke(ctx, c.account, cp, nil, args...)
}

func (c *Contract) queryBool(ctx context.Context, names []string, args ...any) (bool, error) {
	res, err := c.query(ctx, names, args...)
	if err != nil {
		return false, err
	}

	b, err := res.Bool()
	if err != nil {
		return false, fmt.Errorf("%s: %w", res.Method, err)
	}

	return b, nil
}
