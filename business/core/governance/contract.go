package governance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ardanlabs/poagov/foundation/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultTimeout is how long a payable invocation waits for its receipt.
const DefaultTimeout = 30 * time.Second

// Config represents what is needed to load a contract.
type Config struct {
	Client    Client
	ABI       string
	Bytecode  string
	Address   common.Address
	Account   keystore.Account
	Timeout   time.Duration
	EvHandler EventHandler
}

// Contract is a handle on a governance contract bound to a default account.
type Contract struct {
	client    Client
	caps      *Capabilities
	bytecode  []byte
	address   common.Address
	account   keystore.Account
	timeout   time.Duration
	evHandler EventHandler
}

// Load parses the ABI and returns a contract handle. The handle has no
// address until it is deployed or bound with At, unless one is configured.
func Load(cfg Config) (*Contract, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	abiJSON := cfg.ABI
	if abiJSON == "" {
		abiJSON = DefaultABI
	}

	caps, err := NewCapabilities(abiJSON)
	if err != nil {
		return nil, err
	}

	var code []byte
	if cfg.Bytecode != "" {
		code, err = hexutil.Decode("0x" + strings.TrimPrefix(strings.TrimPrefix(cfg.Bytecode, "0x"), "0X"))
		if err != nil {
			return nil, fmt.Errorf("decode bytecode: %w", err)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	ctr := Contract{
		client:    cfg.Client,
		caps:      caps,
		bytecode:  code,
		address:   cfg.Address,
		account:   cfg.Account,
		timeout:   timeout,
		evHandler: ev,
	}

	return &ctr, nil
}

// At returns a copy of the handle bound to the address.
func (c *Contract) At(address common.Address) *Contract {
	ctr := *c
	ctr.address = address
	return &ctr
}

// As returns a copy of the handle bound to a different default account.
func (c *Contract) As(account keystore.Account) *Contract {
	ctr := *c
	ctr.account = account
	return &ctr
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Account returns the default account.
func (c *Contract) Account() keystore.Account {
	return c.account
}

// Capabilities returns the capability set of the contract.
func (c *Contract) Capabilities() *Capabilities {
	return c.caps
}

// Deploy creates the contract on chain signed by the default account and
// returns a handle bound to the new address.
func (c *Contract) Deploy(ctx context.Context, value *big.Int, args ...any) (*Contract, Result, error) {
	if len(c.bytecode) == 0 {
		return nil, Result{}, ErrNoBytecode
	}

	if c.account.IsZero() {
		return nil, Result{}, ErrNoSigner
	}

	ctorArgs, err := c.caps.PackConstructor(args...)
	if err != nil {
		return nil, Result{}, err
	}

	data := append(append([]byte{}, c.bytecode...), ctorArgs...)

	hash, err := c.client.Submit(ctx, c.account.PrivateKey, nil, value, data)
	if err != nil {
		return nil, Result{}, fmt.Errorf("deploy: %w", err)
	}
	c.evHandler("governance: Deploy: tx[%s]", hash.Hex())

	rcpt, err := c.client.WaitReceipt(ctx, hash, c.timeout)
	if err != nil {
		return nil, Result{}, fmt.Errorf("deploy: %w", err)
	}

	res := Result{
		Method:  "constructor",
		TxHash:  hash,
		Receipt: &rcpt,
	}

	if !rcpt.Succeeded() {
		return nil, res, fmt.Errorf("deploy: tx[%s]: %w", hash.Hex(), ErrReverted)
	}

	if rcpt.ContractAddress == (common.Address{}) {
		return nil, res, fmt.Errorf("deploy: tx[%s]: %w", hash.Hex(), ErrNoContract)
	}

	res.Events = DecodeLogs(c.caps.ABI(), rcpt.Logs)
	c.evHandler("governance: Deploy: contract[%s]", rcpt.ContractAddress.Hex())

	return c.At(rcpt.ContractAddress), res, nil
}

// Invoke calls the method signed by the default account.
func (c *Contract) Invoke(ctx context.Context, method string, value *big.Int, args ...any) (Result, error) {
	return c.InvokeAs(ctx, c.account, method, value, args...)
}

// InvokeAs calls the method signed by the specified account. Read-only
// methods are answered by the node without a transaction. State changing
// methods are submitted; only when value is attached does the call wait
// for the receipt and decode the events it carries.
func (c *Contract) InvokeAs(ctx context.Context, account keystore.Account, method string, value *big.Int, args ...any) (Result, error) {
	cp, err := c.caps.Lookup(method)
	if err != nil {
		return Result{}, err
	}

	return c.invoke(ctx, account, cp, value, args...)
}

func (c *Contract) invoke(ctx context.Context, account keystore.Account, cp Capability, value *big.Int, args ...any) (Result, error) {
	if c.address == (common.Address{}) {
		return Result{}, ErrNotDeployed
	}

	if value == nil {
		value = new(big.Int)
	}

	data, err := cp.Pack(args...)
	if err != nil {
		return Result{}, err
	}

	c.evHandler("governance: Invoke: %s: from[%s]: value[%s]: args%v", cp.Name, account.Address.Hex(), value, args)

	if cp.ReadOnly {
		to := c.address
		call := evmlite.CallArgs{
			From:  account.Address,
			To:    &to,
			Value: value,
			Data:  hexutil.Encode(data),
		}

		out, err := c.client.Call(ctx, call)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", cp.Name, err)
		}

		outputs, err := cp.Unpack(out)
		if err != nil {
			return Result{}, err
		}

		return Result{Method: cp.Name, Outputs: outputs}, nil
	}

	if account.IsZero() {
		return Result{}, fmt.Errorf("%s: %w", cp.Name, ErrNoSigner)
	}

	to := c.address
	hash, err := c.client.Submit(ctx, account.PrivateKey, &to, value, data)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", cp.Name, err)
	}

	res := Result{
		Method: cp.Name,
		TxHash: hash,
	}

	if value.Sign() == 0 {
		return res, nil
	}

	rcpt, err := c.client.WaitReceipt(ctx, hash, c.timeout)
	if err != nil {
		return res, fmt.Errorf("%s: %w", cp.Name, err)
	}
	res.Receipt = &rcpt

	if !rcpt.Succeeded() {
		return res, fmt.Errorf("%s: tx[%s]: %w", cp.Name, hash.Hex(), ErrReverted)
	}

	res.Events = DecodeLogs(c.caps.ABI(), rcpt.Logs)
	for _, e := range res.Events {
		c.evHandler("governance: Invoke: %s: event[%s]: %v", cp.Name, e.Name, e.Args)
	}

	return res, nil
}
