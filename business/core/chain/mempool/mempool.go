// Package mempool maintains the pending transactions of the simulated node.
package mempool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Tx is a signed transaction with its recovered sender.
type Tx struct {
	From common.Address
	Seq  uint64
	*types.Transaction
}

// Mempool represents a cache of transactions organized by account:nonce.
type Mempool struct {
	pool map[string]Tx
	seq  uint64
	mu   sync.RWMutex
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]Tx),
	}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction. A transaction with the same
// account and nonce as a pending one replaces it and keeps its place in
// the arrival order.
func (mp *Mempool) Upsert(tx Tx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := mapKey(tx.From, tx.Nonce())
	if prev, exists := mp.pool[key]; exists {
		tx.Seq = prev.Seq
	} else {
		mp.seq++
		tx.Seq = mp.seq
	}
	mp.pool[key] = tx

	return len(mp.pool)
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, mapKey(tx.From, tx.Nonce()))
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]Tx)
}

// PendingNonce returns the nonce the next transaction from the account
// should use given the nonce already committed on chain.
func (mp *Mempool) PendingNonce(account common.Address, committed uint64) uint64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	nonce := committed
	for {
		if _, exists := mp.pool[mapKey(account, nonce)]; !exists {
			return nonce
		}
		nonce++
	}
}

// PickBest returns up to howMany transactions, pass -1 for all of them.
// Transactions come out in the order they arrived, except that the
// transactions of one account always stay in nonce order.
func (mp *Mempool) PickBest(howMany int) []Tx {

	// Group the transactions by account.
	m := make(map[common.Address][]Tx)
	mp.mu.RLock()
	{
		if howMany == -1 {
			howMany = len(mp.pool)
		}

		for _, tx := range mp.pool {
			m[tx.From] = append(m[tx.From], tx)
		}
	}
	mp.mu.RUnlock()

	for _, txs := range m {
		sort.Slice(txs, func(i, j int) bool {
			return txs[i].Nonce() < txs[j].Nonce()
		})
	}

	// Take the earliest arrival among the next transaction of each account.
	var final []Tx
	for len(final) < howMany {
		var next common.Address
		var found bool
		for account, txs := range m {
			if len(txs) == 0 {
				continue
			}
			if !found || txs[0].Seq < m[next][0].Seq {
				next = account
				found = true
			}
		}
		if !found {
			break
		}

		final = append(final, m[next][0])
		m[next] = m[next][1:]
	}

	return final
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(account common.Address, nonce uint64) string {
	return fmt.Sprintf("%s:%d", account.Hex(), nonce)
}
