// Package chain is the core of the simulated node: an in-memory ledger
// that accepts signed transactions, commits them in blocks and emulates
// the governance contract at its well known address and at any contract
// deployed through it.
package chain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ardanlabs/poagov/business/core/chain/mempool"
	"github.com/ardanlabs/poagov/business/core/governance"
	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ardanlabs/poagov/foundation/genesis"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// gasPerTx is charged to every transaction, the simulated node has no
// gas accounting.
const gasPerTx = 21_000

// EventHandler defines a function that is called when events
// occur in the processing of transactions and blocks.
type EventHandler func(v string, args ...any)

// Publisher receives the governance events of committed blocks.
type Publisher interface {
	Publish(topic string, v any)
}

// Worker interface represents the behavior required to be implemented by
// the package committing blocks.
type Worker interface {
	Shutdown()
	SignalCommit()
}

// Config represents the configuration required to start the chain.
type Config struct {
	Genesis   genesis.Genesis
	ChainID   int64
	EvHandler EventHandler
	Publisher Publisher
}

// Chain manages the simulated ledger.
type Chain struct {
	mu sync.RWMutex

	signer      types.Signer
	chainID     int64
	abi         abi.ABI
	genesis     genesis.Genesis
	poa         evmlite.Contract
	balances    map[common.Address]*big.Int
	nonces      map[common.Address]uint64
	code        map[common.Address][]byte
	authorities map[common.Address]*authority
	receipts    map[common.Hash]evmlite.Receipt
	blocks      []Block
	mempool     *mempool.Mempool
	evHandler   EventHandler
	publisher   Publisher

	Worker Worker
}

// New constructs the chain from the genesis file.
func New(cfg Config) (*Chain, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = evmlite.DefaultChainID
	}

	caps, err := governance.NewCapabilities(governance.DefaultABI)
	if err != nil {
		return nil, err
	}

	balances, err := cfg.Genesis.Balances()
	if err != nil {
		return nil, err
	}

	ch := Chain{
		signer:      types.NewEIP155Signer(big.NewInt(chainID)),
		chainID:     chainID,
		abi:         caps.ABI(),
		genesis:     cfg.Genesis,
		balances:    balances,
		nonces:      make(map[common.Address]uint64),
		code:        make(map[common.Address][]byte),
		authorities: make(map[common.Address]*authority),
		receipts:    make(map[common.Hash]evmlite.Receipt),
		mempool:     mempool.New(),
		evHandler:   ev,
		publisher:   cfg.Publisher,
	}

	// Install the governance contract with its genesis whitelist.
	poaAddr := cfg.Genesis.POAAddress()
	ch.poa = evmlite.Contract{Address: poaAddr, ABI: governance.DefaultABI}

	var members []common.Address
	var monikers [][32]byte
	if p := cfg.Genesis.POA; p != nil {
		if p.ABI != "" {
			ch.poa.ABI = p.ABI
		}
		if p.Code != "" {
			code, err := hexutil.Decode("0x" + strings.TrimPrefix(strings.ToLower(p.Code), "0x"))
			if err != nil {
				return nil, fmt.Errorf("poa code: %w", err)
			}
			ch.code[poaAddr] = code
		}
		for _, person := range p.Whitelist {
			var moniker [32]byte
			copy(moniker[:], person.Moniker)
			members = append(members, common.HexToAddress(person.Address))
			monikers = append(monikers, moniker)
		}
	}
	ch.authorities[poaAddr] = newAuthority(members, monikers)

	ev("chain: New: poa[%s]: whitelist[%d]: accounts[%d]", poaAddr.Hex(), len(members), len(balances))

	return &ch, nil
}

// Shutdown stops the worker.
func (ch *Chain) Shutdown() {
	ch.evHandler("chain: shutdown: started")
	defer ch.evHandler("chain: shutdown: completed")

	if ch.Worker != nil {
		ch.Worker.Shutdown()
	}
}

// =============================================================================

// Account returns the state of the address. The nonce includes the
// transactions still waiting in the mempool.
func (ch *Chain) Account(address common.Address) evmlite.Account {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	balance := new(big.Int)
	if b, exists := ch.balances[address]; exists {
		balance.Set(b)
	}

	return evmlite.Account{
		Address: address,
		Balance: balance,
		Nonce:   ch.mempool.PendingNonce(address, ch.nonces[address]),
		Code:    ch.code[address],
	}
}

// Accounts returns every account with a balance.
func (ch *Chain) Accounts() []evmlite.Account {
	ch.mu.RLock()
	addrs := make([]common.Address, 0, len(ch.balances))
	for addr := range ch.balances {
		addrs = append(addrs, addr)
	}
	ch.mu.RUnlock()

	accounts := make([]evmlite.Account, len(addrs))
	for i, addr := range addrs {
		accounts[i] = ch.Account(addr)
	}
	return accounts
}

// POA returns the governance contract of the chain.
func (ch *Chain) POA() evmlite.Contract {
	return ch.poa
}

// Genesis returns the genesis the chain started from.
func (ch *Chain) Genesis() genesis.Genesis {
	return ch.genesis
}

// Info returns status information.
func (ch *Chain) Info() map[string]string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	whitelist := 0
	if a, exists := ch.authorities[ch.poa.Address]; exists {
		whitelist = len(a.whitelist)
	}

	return map[string]string{
		"type":            "simnode",
		"chain_id":        strconv.FormatInt(ch.chainID, 10),
		"last_block":      strconv.Itoa(len(ch.blocks)),
		"pending":         strconv.Itoa(ch.mempool.Count()),
		"poa_address":     ch.poa.Address.Hex(),
		"whitelist_count": strconv.Itoa(whitelist),
	}
}

// Receipt returns the receipt of a committed transaction.
func (ch *Chain) Receipt(hash common.Hash) (evmlite.Receipt, error) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	rcpt, exists := ch.receipts[hash]
	if !exists {
		return evmlite.Receipt{}, fmt.Errorf("tx[%s]: %w", hash.Hex(), ErrNotFound)
	}

	return rcpt, nil
}

// Call answers a read-only call against the committed state.
func (ch *Chain) Call(args evmlite.CallArgs) ([]byte, error) {
	if args.To == nil {
		return nil, fmt.Errorf("call: %w", ErrNoContract)
	}

	data, err := hexutil.Decode(normalizeHex(args.Data))
	if err != nil {
		return nil, fmt.Errorf("call data: %w", err)
	}

	ch.mu.RLock()
	defer ch.mu.RUnlock()

	auth, exists := ch.authorities[*args.To]
	if !exists {
		return []byte{}, nil
	}

	method, values, err := ch.decodeInput(data)
	if err != nil {
		return nil, err
	}

	out, err := auth.read(args.From, method.Name, values)
	if err != nil {
		return nil, err
	}

	return method.Outputs.Pack(out...)
}

// SubmitRawTx decodes a signed transaction and queues it for the next block.
func (ch *Chain) SubmitRawTx(raw []byte) (common.Hash, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("decode tx: %w", err)
	}

	from, err := types.Sender(ch.signer, &tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("tx sender: %w", err)
	}

	ch.mu.RLock()
	committed := ch.nonces[from]
	ch.mu.RUnlock()

	if tx.Nonce() < committed {
		return common.Hash{}, fmt.Errorf("tx[%s]: %w: got %d, want %d", tx.Hash().Hex(), ErrNonceTooLow, tx.Nonce(), committed)
	}

	n := ch.mempool.Upsert(mempool.Tx{From: from, Transaction: &tx})
	ch.evHandler("chain: SubmitRawTx: tx[%s]: from[%s]: nonce[%d]: mempool[%d]", tx.Hash().Hex(), from.Hex(), tx.Nonce(), n)

	if ch.Worker != nil {
		ch.Worker.SignalCommit()
	}

	return tx.Hash(), nil
}

// MempoolLength returns the number of pending transactions.
func (ch *Chain) MempoolLength() int {
	return ch.mempool.Count()
}

// LatestBlock returns the last committed block.
func (ch *Chain) LatestBlock() Block {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	if len(ch.blocks) == 0 {
		return Block{}
	}
	return ch.blocks[len(ch.blocks)-1]
}

// =============================================================================

// CommitBlock applies the pending transactions in arrival order and records
// a new block with their receipts.
func (ch *Chain) CommitBlock() (Block, error) {
	txs := ch.mempool.PickBest(-1)
	if len(txs) == 0 {
		return Block{}, ErrNoTransactions
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	var parent common.Hash
	if len(ch.blocks) > 0 {
		parent = ch.blocks[len(ch.blocks)-1].Hash()
	}

	block := Block{
		Header: BlockHeader{
			Number:     uint64(len(ch.blocks) + 1),
			ParentHash: parent,
			Time:       uint64(time.Now().UTC().Unix()),
		},
	}

	var receipts []evmlite.Receipt
	var cumulative uint64

	for _, tx := range txs {
		expected := ch.nonces[tx.From]
		if tx.Nonce() > expected {
			continue
		}
		ch.mempool.Delete(tx)

		rcpt := evmlite.Receipt{
			TxHash: tx.Hash(),
			From:   tx.From,
			To:     tx.To(),
		}

		if tx.Nonce() < expected {
			ch.evHandler("chain: CommitBlock: tx[%s]: stale nonce[%d]", tx.Hash().Hex(), tx.Nonce())
			receipts = append(receipts, rcpt)
			block.TxHashes = append(block.TxHashes, tx.Hash())
			continue
		}

		ch.nonces[tx.From]++
		cumulative += gasPerTx
		rcpt.GasUsed = gasPerTx
		rcpt.CumulativeGasUsed = cumulative

		if err := ch.apply(tx, &rcpt, len(block.TxHashes)); err != nil {
			ch.evHandler("chain: CommitBlock: tx[%s]: FAILED: %s", tx.Hash().Hex(), err)
		}

		receipts = append(receipts, rcpt)
		block.TxHashes = append(block.TxHashes, tx.Hash())
	}

	if len(block.TxHashes) == 0 {
		return Block{}, ErrNoTransactions
	}

	hash := block.Hash()
	var logIndex uint
	for _, rcpt := range receipts {
		rcpt.Root = hash
		for i := range rcpt.Logs {
			rcpt.Logs[i].BlockHash = hash
			rcpt.Logs[i].BlockNumber = hexutil.Uint64(block.Header.Number)
			rcpt.Logs[i].Index = hexutil.Uint(logIndex)
			logIndex++
		}
		ch.receipts[rcpt.TxHash] = rcpt
		ch.publish(rcpt)
	}

	ch.blocks = append(ch.blocks, block)
	ch.evHandler("chain: CommitBlock: block[%d]: hash[%s]: txs[%d]", block.Header.Number, hash.Hex(), len(block.TxHashes))

	return block, nil
}

// apply executes the transaction against the ledger and fills in the
// receipt. An error leaves the receipt with a failed status.
func (ch *Chain) apply(tx mempool.Tx, rcpt *evmlite.Receipt, txIndex int) error {
	value := tx.Value()
	if value == nil {
		value = new(big.Int)
	}

	balance := ch.balances[tx.From]
	if balance == nil {
		balance = new(big.Int)
	}
	if balance.Cmp(value) < 0 {
		return fmt.Errorf("insufficient funds: have %s, want %s", balance, value)
	}

	switch {
	case tx.To() == nil:
		addr := crypto.CreateAddress(tx.From, tx.Nonce())
		ch.code[addr] = tx.Data()
		ch.authorities[addr] = newAuthority([]common.Address{tx.From}, [][32]byte{ch.constructorMoniker(tx.Data())})
		rcpt.ContractAddress = addr
		ch.evHandler("chain: apply: tx[%s]: contract[%s]", tx.Hash().Hex(), addr.Hex())

	default:
		if auth, exists := ch.authorities[*tx.To()]; exists && len(tx.Data()) > 0 {
			method, values, err := ch.decodeInput(tx.Data())
			if err != nil {
				return err
			}

			_, emits, err := auth.write(tx.From, method.Name, values)
			if err != nil {
				return err
			}

			for _, e := range emits {
				topics, data, err := governance.EncodeEvent(ch.abi, e.name, e.values...)
				if err != nil {
					return err
				}
				rcpt.Logs = append(rcpt.Logs, evmlite.Log{
					Address: *tx.To(),
					Topics:  topics,
					Data:    data,
					TxHash:  tx.Hash(),
					TxIndex: hexutil.Uint(txIndex),
				})
			}
		}
	}

	to := rcpt.ContractAddress
	if tx.To() != nil {
		to = *tx.To()
	}

	ch.balances[tx.From] = new(big.Int).Sub(balance, value)
	toBalance := ch.balances[to]
	if toBalance == nil {
		toBalance = new(big.Int)
	}
	ch.balances[to] = new(big.Int).Add(toBalance, value)

	rcpt.Status = 1
	return nil
}

func (ch *Chain) decodeInput(data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("short call data: %w", ErrRevert)
	}

	method, err := ch.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", err, ErrRevert)
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w: %w", method.Name, err, ErrRevert)
	}

	return method, values, nil
}

// constructorMoniker reads the bytes32 moniker the governance constructor
// takes from the tail of the deployment data.
func (ch *Chain) constructorMoniker(data []byte) [32]byte {
	var moniker [32]byte

	inputs := ch.abi.Constructor.Inputs
	if len(inputs) != 1 || inputs[0].Type.T != abi.FixedBytesTy || len(data) < 32 {
		return moniker
	}

	copy(moniker[:], data[len(data)-32:])
	return moniker
}

func (ch *Chain) publish(rcpt evmlite.Receipt) {
	if ch.publisher == nil || len(rcpt.Logs) == 0 {
		return
	}

	for _, e := range governance.DecodeLogs(ch.abi, rcpt.Logs) {
		ch.publisher.Publish("governance", e)
	}
}

func normalizeHex(s string) string {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return "0x" + s
}
