package evmlite

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Account is the state of an address as reported by a node.
type Account struct {
	Address common.Address `json:"address"`
	Balance *big.Int       `json:"balance"`
	Nonce   uint64         `json:"nonce"`
	Code    hexutil.Bytes  `json:"bytecode"`
}

// CallArgs represents the arguments for a read-only call or an unsigned
// transaction. Data is hex encoded with a 0x prefix.
type CallArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	Gas      uint64          `json:"gas"`
	GasPrice *big.Int        `json:"gasPrice"`
	Value    *big.Int        `json:"value"`
	Data     string          `json:"data"`
}

// Log is a single event record emitted while executing a transaction.
type Log struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
	TxIndex     hexutil.Uint   `json:"transactionIndex"`
	BlockHash   common.Hash    `json:"blockHash"`
	Index       hexutil.Uint   `json:"logIndex"`
	Removed     bool           `json:"removed"`
}

// Receipt is the outcome of a transaction once it has been committed.
type Receipt struct {
	Root              common.Hash     `json:"root"`
	TxHash            common.Hash     `json:"transactionHash"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	GasUsed           uint64          `json:"gasUsed"`
	CumulativeGasUsed uint64          `json:"cumulativeGasUsed"`
	ContractAddress   common.Address  `json:"contractAddress"`
	Logs              []Log           `json:"logs"`
	Status            uint64          `json:"status"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r Receipt) Succeeded() bool {
	return r.Status == 1
}

// Contract is the address and ABI of the governance contract a node
// was started with.
type Contract struct {
	Address common.Address `json:"address"`
	ABI     string         `json:"abi"`
}

type callResult struct {
	Data string `json:"data"`
}

type txResult struct {
	TxHash string `json:"txHash"`
}
