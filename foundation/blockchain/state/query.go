package state

import (
	"fmt"

	"github.com/ledgerlab/blockchain/foundation/blockchain/balance"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// QueryBalance replays the chain and returns the balance of the specified
// account. Pending transactions do not count. An account never seen in the
// chain has a balance of zero.
func (s *State) QueryBalance(account database.AccountID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return balance.Replay(s.db.Copy()).Balance(account)
}

// QueryBalances returns the balance of every account seen in the chain.
func (s *State) QueryBalances() []database.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sheet := balance.Replay(s.db.Copy()).Copy()

	balances := make([]database.Balance, 0, len(sheet))
	for account, value := range sheet {
		balances = append(balances, database.Balance{AccountID: account, Balance: value})
	}

	return balances
}

// QueryBalanceHistory returns every confirmed change to the account's balance.
func (s *State) QueryBalanceHistory(account database.AccountID) []balance.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return balance.History(s.db.Copy(), account)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// IsMiningReady reports whether the mempool holds enough transactions to
// mine a block. The genesis trans_per_block sets the threshold, with a
// minimum of one transaction.
func (s *State) IsMiningReady() bool {
	return s.mempool.Count() >= max(1, int(s.genesis.TransPerBlock))
}

// QueryBlocksByNumber returns the set of blocks based on block numbers.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) ([]database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.db.LatestBlock().Index
	if from == QueryLatest {
		from = latest
		to = from
	}
	if to == QueryLatest || to > latest {
		to = latest
	}
	if from > to {
		return nil, fmt.Errorf("from[%d] is past to[%d]: %w", from, to, database.ErrNotFound)
	}

	out := make([]database.Block, 0, to-from+1)
	for i := from; i <= to; i++ {
		block, err := s.db.GetBlock(i)
		if err != nil {
			s.evHandler("state: QueryBlocksByNumber: ERROR: %s", err)
			return nil, err
		}
		out = append(out, block)
	}

	return out, nil
}

// QueryBlocksByAccount returns the set of blocks holding a transaction sent
// or received by the account. If the account is empty, all blocks are
// returned.
func (s *State) QueryBlocksByAccount(account database.AccountID) []database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.Block
	for _, block := range s.db.Copy() {
		for _, tx := range block.Transactions {
			if account == "" || tx.Sender == account || tx.Recipient == account {
				out = append(out, block)
				break
			}
		}
	}

	return out
}

// QueryValidateChain validates the node's own chain from the genesis block.
func (s *State) QueryValidateChain() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return database.ValidateChain(s.db.Copy(), s.genesis, s.evHandler)
}
