// Package mempool maintains the pool of transactions waiting to be mined.
package mempool

import (
	"sort"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Mempool represents a cache of transactions keyed by transaction id.
type Mempool struct {
	pool map[string]database.Tx
	mu   sync.RWMutex
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]database.Tx),
	}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction in the mempool.
func (mp *Mempool) Upsert(tx database.Tx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[tx.ID] = tx

	return len(mp.pool)
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, tx.ID)
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
}

// ExistingTx returns the pending transaction signed by the specified
// address. An address only has one pending transaction at a time since new
// transfers are added to it.
func (mp *Mempool) ExistingTx(address string) (database.Tx, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	for _, tx := range mp.pool {
		if !tx.Input.IsReward() && tx.Input.Address == address {
			return tx, true
		}
	}

	return database.Tx{}, false
}

// PickAll returns all the transactions in the pool ordered by the time
// they were signed.
func (mp *Mempool) PickAll() []database.Tx {
	mp.mu.RLock()
	txs := make([]database.Tx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		txs = append(txs, tx)
	}
	mp.mu.RUnlock()

	sort.Sort(byTimeStamp(txs))

	return txs
}

// ClearChainTransactions removes every transaction that is already
// recorded in the specified blocks.
func (mp *Mempool) ClearChainTransactions(blocks []database.Block) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed int
	for _, block := range blocks {
		for _, tx := range block.Data {
			if _, exists := mp.pool[tx.ID]; exists {
				delete(mp.pool, tx.ID)
				removed++
			}
		}
	}

	return removed
}
