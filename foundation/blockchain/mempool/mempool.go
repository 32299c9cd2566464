// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"sync"

	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
)

// ErrDuplicate is returned when a transaction is already in the pool.
var ErrDuplicate = errors.New("transaction already pending")

// Mempool represents a cache of transactions waiting to be mined. The
// transactions are kept in arrival order and keyed by transaction id.
type Mempool struct {
	mu    sync.RWMutex
	pool  map[string]database.SignedTx
	order []string
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]database.SignedTx),
	}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Contains reports whether the transaction with the specified id is pending.
func (mp *Mempool) Contains(id string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[id]
	return exists
}

// Add appends a transaction to the end of the pool.
func (mp *Mempool) Add(tx database.SignedTx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	id := tx.ID()
	if _, exists := mp.pool[id]; exists {
		return len(mp.pool), ErrDuplicate
	}

	mp.pool[id] = tx
	mp.order = append(mp.order, id)

	return len(mp.pool), nil
}

// Delete removes the specified transactions from the pool. Transactions
// that are not in the pool are ignored.
func (mp *Mempool) Delete(txs ...database.SignedTx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, tx := range txs {
		delete(mp.pool, tx.ID())
	}

	mp.compact()
}

// DeleteFunc removes every transaction the function returns true for.
func (mp *Mempool) DeleteFunc(del func(tx database.SignedTx) bool) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed int
	for _, id := range mp.order {
		if tx, exists := mp.pool[id]; exists && del(tx) {
			delete(mp.pool, id)
			removed++
		}
	}

	mp.compact()

	return removed
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.SignedTx)
	mp.order = nil
}

// Copy returns the pending transactions in arrival order.
func (mp *Mempool) Copy() []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.SignedTx, 0, len(mp.order))
	for _, id := range mp.order {
		txs = append(txs, mp.pool[id])
	}

	return txs
}

// =============================================================================

// compact drops ids from the order that are no longer in the pool. The
// caller must hold the write lock.
func (mp *Mempool) compact() {
	order := mp.order[:0]
	for _, id := range mp.order {
		if _, exists := mp.pool[id]; exists {
			order = append(order, id)
		}
	}

	mp.order = order
}
