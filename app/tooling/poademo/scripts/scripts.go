// Package scripts holds the demo workflows poademo can run.
package scripts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"sort"
	"time"

	"github.com/ardanlabs/poagov/business/core/governance"
	"github.com/ardanlabs/poagov/business/core/workflow"
	"github.com/ardanlabs/poagov/foundation/solc"
	"github.com/ethereum/go-ethereum/common"
)

// CompileFunc turns a Solidity source into artifacts.
type CompileFunc func(ctx context.Context, path string) (solc.Artifacts, error)

// Config represents what the scripts need besides the workflow state.
type Config struct {
	Out          io.Writer
	ContractPath string
	ArtifactDir  string
	Timeout      time.Duration
	Compile      CompileFunc
	EvHandler    governance.EventHandler
}

// Script builds the ordered steps of a demo.
type Script func(cfg Config) []workflow.Step

var scripts = map[string]Script{
	"event":    Event,
	"genesis":  Genesis,
	"transfer": Transfer,
}

// Lookup returns the named script.
func Lookup(name string) (Script, error) {
	s, exists := scripts[name]
	if !exists {
		return nil, fmt.Errorf("unknown script %q, choose one of %v", name, Names())
	}
	return s, nil
}

// Names returns the available scripts.
func Names() []string {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================

func (cfg Config) out() io.Writer {
	if cfg.Out == nil {
		return io.Discard
	}
	return cfg.Out
}

func (cfg Config) timeout() time.Duration {
	if cfg.Timeout <= 0 {
		return governance.DefaultTimeout
	}
	return cfg.Timeout
}

// balances prints the balance of every bound node.
func (cfg Config) balances(ctx context.Context, st workflow.State) (workflow.State, error) {
	for _, node := range st.Registry.Nodes() {
		if !node.Bound() {
			workflow.Info(cfg.out(), "%s: no account", node)
			continue
		}

		acct, err := node.Client.Account(ctx, node.Account.Address)
		if err != nil {
			return st, fmt.Errorf("%s: %w", node, err)
		}

		workflow.Info(cfg.out(), "%s: %s balance[%s] nonce[%d]", node, acct.Address.Hex(), acct.Balance, acct.Nonce)
	}

	return st, nil
}

// invoke calls the method on the workflow's contract as the given node and
// prints the outcome.
func (cfg Config) invoke(ctx context.Context, st workflow.State, node int, method string, value int64, args ...any) (governance.Result, error) {
	signer, err := st.Registry.Signer(node)
	if err != nil {
		return governance.Result{}, err
	}

	workflow.Info(cfg.out(), "%s %v as %s", method, args, signer.Name)

	res, err := st.Contract.InvokeAs(ctx, signer.Account, method, big.NewInt(value), args...)
	if err != nil {
		return res, err
	}

	cfg.print(res)
	return res, nil
}

// first invokes the first method name the contract carries.
func (cfg Config) first(ctx context.Context, st workflow.State, node int, names []string, value int64, args ...any) (governance.Result, error) {
	for _, name := range names {
		if st.Contract.Capabilities().Has(name) {
			return cfg.invoke(ctx, st, node, name, value, args...)
		}
	}
	return governance.Result{}, fmt.Errorf("%v: %w", names, governance.ErrUnknownMethod)
}

func (cfg Config) print(res governance.Result) {
	w := cfg.out()

	if !res.Waited() {
		workflow.Info(w, "Response: %v", res.Response())
		return
	}

	workflow.Info(w, "Receipt: tx[%s] status[%d] gasUsed[%d]", res.Receipt.TxHash.Hex(), res.Receipt.Status, res.Receipt.GasUsed)
	for _, e := range res.Events {
		args, err := json.MarshalIndent(e.Args, "", "  ")
		if err != nil {
			args = []byte(err.Error())
		}
		workflow.Info(w, "%s\n%s", e.Name, workflow.Indent(string(args), "    "))
	}
}

// address returns the account address of the node at the index.
func address(st workflow.State, node int) (common.Address, error) {
	n, err := st.Registry.Signer(node)
	if err != nil {
		return common.Address{}, err
	}
	return n.Account.Address, nil
}

// moniker is the name a node announces itself with.
func moniker(node int) string {
	return fmt.Sprintf("Node %d", node+1)
}
