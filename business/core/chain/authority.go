package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrRevert marks a contract call the governance rules refused.
var ErrRevert = errors.New("execution reverted")

// emitted is an event raised while executing a governance method. Values
// are in the order the event declares its inputs.
type emitted struct {
	name   string
	values []any
}

type nominee struct {
	moniker  [32]byte
	proposer common.Address
	votes    map[common.Address]bool
	order    []common.Address
}

func (n *nominee) tally() (yes *big.Int, no *big.Int) {
	var y, nn int64
	for _, v := range n.votes {
		if v {
			y++
			continue
		}
		nn++
	}
	return big.NewInt(y), big.NewInt(nn)
}

// authority emulates the governance contract. Only whitelisted accounts
// may nominate or vote, each voter votes once per nominee, a single no
// vote rejects the nominee and a yes from every whitelisted account
// accepts it.
type authority struct {
	genesis   []common.Address
	whitelist []common.Address
	monikers  map[common.Address][32]byte
	nominees  map[common.Address]*nominee
}

func newAuthority(members []common.Address, monikers [][32]byte) *authority {
	a := authority{
		genesis:  members,
		monikers: make(map[common.Address][32]byte),
		nominees: make(map[common.Address]*nominee),
	}

	for i, m := range members {
		var moniker [32]byte
		if i < len(monikers) {
			moniker = monikers[i]
		}
		a.add(m, moniker)
	}

	return &a
}

func (a *authority) add(address common.Address, moniker [32]byte) {
	if a.isWhitelisted(address) {
		return
	}
	a.whitelist = append(a.whitelist, address)
	a.monikers[address] = moniker
}

func (a *authority) isWhitelisted(address common.Address) bool {
	for _, w := range a.whitelist {
		if w == address {
			return true
		}
	}
	return false
}

func (a *authority) isGenesis(address common.Address) bool {
	for _, g := range a.genesis {
		if g == address {
			return true
		}
	}
	return false
}

// =============================================================================

// read answers a read-only method.
func (a *authority) read(from common.Address, method string, args []any) ([]any, error) {
	switch method {
	case "checkAuthorised", "isWhitelisted", "dev_isWhitelisted":
		return []any{a.isWhitelisted(arg[common.Address](args, 0))}, nil

	case "isNominee", "dev_isNominee":
		_, exists := a.nominees[arg[common.Address](args, 0)]
		return []any{exists}, nil

	case "getWhiteListCount", "dev_getWhitelistCount":
		return []any{big.NewInt(int64(len(a.whitelist)))}, nil

	case "getCurrentNomineeVotes", "dev_getCurrentNomineeVotes":
		n, exists := a.nominees[arg[common.Address](args, 0)]
		if !exists {
			return []any{new(big.Int), new(big.Int)}, nil
		}
		yes, no := n.tally()
		return []any{yes, no}, nil

	case "whiteList":
		addr := arg[common.Address](args, 0)
		if !a.isWhitelisted(addr) {
			return []any{common.Address{}, new(big.Int)}, nil
		}
		return []any{addr, big.NewInt(1)}, nil

	case "dev_isGenesisWhitelisted":
		return []any{a.isGenesis(arg[common.Address](args, 0))}, nil

	case "dev_getGenesisWhitelist0":
		if len(a.genesis) == 0 {
			return []any{common.Address{}}, nil
		}
		return []any{a.genesis[0]}, nil

	case "dev_getSender":
		return []any{from}, nil

	case "dev_27":
		return []any{big.NewInt(27)}, nil

	case "checkAuthorisedPublicKey":
		return []any{false}, nil
	}

	return nil, fmt.Errorf("%s: %w: not implemented", method, ErrRevert)
}

// write executes a state changing method.
func (a *authority) write(from common.Address, method string, args []any) ([]any, []emitted, error) {
	switch method {
	case "submitNominee":
		return a.submitNominee(from, arg[common.Address](args, 0), arg[[32]byte](args, 1))

	case "castNomineeVote":
		return a.castNomineeVote(from, arg[common.Address](args, 0), arg[bool](args, 1))
	}

	out, err := a.read(from, method, args)
	return out, nil, err
}

func (a *authority) submitNominee(from common.Address, address common.Address, moniker [32]byte) ([]any, []emitted, error) {
	switch {
	case !a.isWhitelisted(from):
		return nil, nil, fmt.Errorf("submitNominee: %s is not whitelisted: %w", from.Hex(), ErrRevert)
	case a.isWhitelisted(address):
		return nil, nil, fmt.Errorf("submitNominee: %s is already whitelisted: %w", address.Hex(), ErrRevert)
	}

	if _, exists := a.nominees[address]; exists {
		return nil, nil, fmt.Errorf("submitNominee: %s is already nominated: %w", address.Hex(), ErrRevert)
	}

	a.nominees[address] = &nominee{
		moniker:  moniker,
		proposer: from,
		votes:    make(map[common.Address]bool),
	}

	events := []emitted{
		{name: "NomineeProposed", values: []any{address, from}},
		{name: "MonikerAnnounce", values: []any{address, moniker}},
	}

	return nil, events, nil
}

func (a *authority) castNomineeVote(from common.Address, address common.Address, accepted bool) ([]any, []emitted, error) {
	if !a.isWhitelisted(from) {
		return nil, nil, fmt.Errorf("castNomineeVote: %s is not whitelisted: %w", from.Hex(), ErrRevert)
	}

	n, exists := a.nominees[address]
	if !exists {
		return nil, nil, fmt.Errorf("castNomineeVote: %s is not a nominee: %w", address.Hex(), ErrRevert)
	}

	if _, voted := n.votes[from]; voted {
		return nil, nil, fmt.Errorf("castNomineeVote: %s already voted: %w", from.Hex(), ErrRevert)
	}

	n.votes[from] = accepted
	n.order = append(n.order, from)

	yes, no := n.tally()
	events := []emitted{
		{name: "NomineeVoteCast", values: []any{address, from, yes, no, accepted}},
	}

	var decided, result bool
	switch {
	case no.Sign() > 0:
		decided, result = true, false
		delete(a.nominees, address)

	case yes.Cmp(big.NewInt(int64(len(a.whitelist)))) >= 0:
		decided, result = true, true
		delete(a.nominees, address)
		a.add(address, n.moniker)
	}

	if decided {
		events = append(events, emitted{name: "NomineeDecision", values: []any{address, yes, no, result}})
	}

	return []any{decided, result}, events, nil
}

// =============================================================================

// arg returns the argument at the index as T or the zero value.
func arg[T any](args []any, i int) T {
	var zero T
	if i >= len(args) {
		return zero
	}
	v, ok := args[i].(T)
	if !ok {
		return zero
	}
	return v
}
