// Package balance maintains account balances by replaying the confirmed
// transactions of the chain.
package balance

import (
	"sync"

	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
)

// Sheet represents the data representation to maintain account balances.
// Balances are signed since transactions are not checked for funds when
// they are accepted into the mempool.
type Sheet struct {
	mu    sync.RWMutex
	sheet map[database.AccountID]int64
}

// NewSheet constructs a new, empty balance sheet for use.
func NewSheet() *Sheet {
	return &Sheet{
		sheet: make(map[database.AccountID]int64),
	}
}

// Replay constructs a balance sheet by applying every transaction of every
// block in chain order and then block order.
func Replay(chain []database.Block) *Sheet {
	bs := NewSheet()
	for _, block := range chain {
		bs.ApplyBlock(block)
	}

	return bs
}

// Copy makes a copy of the current balance sheet but returns the raw data.
func (bs *Sheet) Copy() map[database.AccountID]int64 {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	sheet := make(map[database.AccountID]int64)
	for account, value := range bs.sheet {
		sheet[account] = value
	}
	return sheet
}

// Balance returns the balance for the account, zero if the account has
// no history.
func (bs *Sheet) Balance(account database.AccountID) int64 {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	return bs.sheet[account]
}

// Total returns the sum of every balance on the sheet.
func (bs *Sheet) Total() int64 {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	var total int64
	for _, value := range bs.sheet {
		total += value
	}
	return total
}

// ApplyBlock applies every transaction in the block in order.
func (bs *Sheet) ApplyBlock(block database.Block) {
	for _, tx := range block.Transactions {
		bs.ApplyTransaction(tx)
	}
}

// ApplyTransaction moves the amount from the sender to the recipient. The
// system sender issues new value so it is never debited.
func (bs *Sheet) ApplyTransaction(tx database.SignedTx) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	amount := int64(tx.Amount)

	if !tx.Sender.IsSystem() {
		bs.sheet[tx.Sender] -= amount
	}
	bs.sheet[tx.Recipient] += amount
}

// =============================================================================

// Entry represents one change to an account's balance.
type Entry struct {
	Index     uint64             `json:"index"`
	TimeStamp uint64             `json:"timestamp"`
	TxID      string             `json:"tx_id"`
	Other     database.AccountID `json:"other"`
	Change    int64              `json:"change"`
	Balance   int64              `json:"balance"`
}

// History replays the chain for a single account and returns every change
// to its balance in chain order.
func History(chain []database.Block, account database.AccountID) []Entry {
	var entries []Entry
	var bal int64

	for _, block := range chain {
		for _, tx := range block.Transactions {
			var change int64
			var other database.AccountID

			switch {
			case tx.Sender == account && !tx.Sender.IsSystem():
				change = -int64(tx.Amount)
				other = tx.Recipient
			case tx.Recipient == account:
				change = int64(tx.Amount)
				other = tx.Sender
			default:
				continue
			}

			bal += change
			entries = append(entries, Entry{
				Index:     block.Index,
				TimeStamp: block.TimeStamp,
				TxID:      tx.ID(),
				Other:     other,
				Change:    change,
				Balance:   bal,
			})
		}
	}

	return entries
}
