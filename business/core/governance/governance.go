// Package governance is a typed proxy for the proof of authority governance
// contract. It validates calls against the contract ABI before anything is
// sent to a node, submits them signed by a bound account and decodes the
// events the contract emits.
package governance

import (
	"context"
	"crypto/ecdsa"
	_ "embed"
	"errors"
	"math/big"
	"time"

	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultABI is the governance contract interface nodes are started with.
//
//go:embed abi/poa.json
var DefaultABI string

// Set of error variables for the governance proxy.
var (
	ErrUnknownMethod = errors.New("unknown contract method")
	ErrArgumentCount = errors.New("wrong number of arguments")
	ErrArgumentType  = errors.New("argument type mismatch")
	ErrReverted      = errors.New("transaction reverted")
	ErrNoSigner      = errors.New("no account to sign with")
	ErrNotDeployed   = errors.New("contract has no address")
	ErrNoContract    = errors.New("no contract address in receipt")
	ErrNoBytecode    = errors.New("contract has no bytecode to deploy")
)

// EventHandler defines a function that is called when events
// occur while invoking the contract.
type EventHandler func(v string, args ...any)

// Client is the behavior needed from a node.
type Client interface {
	Call(ctx context.Context, args evmlite.CallArgs) ([]byte, error)
	Submit(ctx context.Context, privateKey *ecdsa.PrivateKey, to *common.Address, value *big.Int, data []byte) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (evmlite.Receipt, error)
}

// Result is the outcome of a contract invocation.
type Result struct {
	Method  string
	TxHash  common.Hash
	Outputs []any
	Receipt *evmlite.Receipt
	Events  []Event
}

// Waited reports whether the invocation waited for a receipt.
func (r Result) Waited() bool {
	return r.Receipt != nil
}

// Bool returns the first output as a bool.
func (r Result) Bool() (bool, error) {
	if len(r.Outputs) == 0 {
		return false, errors.New("no outputs")
	}
	b, ok := r.Outputs[0].(bool)
	if !ok {
		return false, errors.New("output is not a bool")
	}
	return b, nil
}

// Uint returns the output at the index as a big integer.
func (r Result) Uint(i int) (*big.Int, error) {
	if i >= len(r.Outputs) {
		return nil, errors.New("no such output")
	}
	n, ok := r.Outputs[i].(*big.Int)
	if !ok {
		return nil, errors.New("output is not an integer")
	}
	return n, nil
}

// Response returns what the node handed back immediately: the decoded
// outputs for a read-only call or the transaction hash otherwise.
func (r Result) Response() any {
	if r.TxHash == (common.Hash{}) {
		if len(r.Outputs) == 1 {
			return r.Outputs[0]
		}
		return r.Outputs
	}
	return r.TxHash.Hex()
}
