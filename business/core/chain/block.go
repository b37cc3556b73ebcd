package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number     uint64      `json:"number"`
	ParentHash common.Hash `json:"parentHash"`
	Time       uint64      `json:"time"`
}

// Block represents a set of transactions committed together.
type Block struct {
	Header   BlockHeader   `json:"header"`
	TxHashes []common.Hash `json:"transactions"`
}

// Hash returns the unique hash for the block.
func (b Block) Hash() common.Hash {
	var num, tm [8]byte
	binary.BigEndian.PutUint64(num[:], b.Header.Number)
	binary.BigEndian.PutUint64(tm[:], b.Header.Time)

	data := [][]byte{num[:], b.Header.ParentHash.Bytes(), tm[:]}
	for _, h := range b.TxHashes {
		data = append(data, h.Bytes())
	}

	return crypto.Keccak256Hash(data...)
}
