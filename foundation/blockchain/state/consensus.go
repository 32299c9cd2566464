package state

import (
	"context"
	"errors"
	"sync"

	"github.com/ledgerlab/blockchain/foundation/blockchain/balance"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/blockchain/peer"
)

// ErrReconciling is returned when a reconcile is requested while one is
// already running.
var ErrReconciling = errors.New("reconcile already running")

// candidate represents the result of fetching one peer's chain.
type candidate struct {
	peer  peer.Peer
	chain []database.Block
	err   error
}

// Reconcile implements the longest valid chain rule. Every known peer is
// asked for its chain concurrently. Chains that are not strictly longer than
// ours or fail validation are skipped. If a longer valid chain is found it
// replaces ours and the mempool is pruned of transactions the new chain
// confirmed or can no longer fund. Reports if the chain was replaced.
func (s *State) Reconcile(ctx context.Context) (bool, error) {
	if !s.reconciling.CompareAndSwap(false, true) {
		return false, ErrReconciling
	}
	defer s.reconciling.Store(false)

	s.evHandler("state: Reconcile: started: status[%s]", StatusReconciling)
	defer s.evHandler("state: Reconcile: completed: status[%s]", StatusIdle)

	peers := s.RetrieveKnownPeers()
	results := s.fetchChains(ctx, peers)

	// Pick the longest valid chain, ties go to the first peer in host order.
	var best []database.Block
	bestLen := s.db.Len()

	for _, res := range results {
		if res.err != nil {
			s.evHandler("state: Reconcile: peer[%s]: SKIPPED: unavailable: %s", res.peer.Host, res.err)
			continue
		}

		if len(res.chain) <= bestLen {
			s.evHandler("state: Reconcile: peer[%s]: SKIPPED: length[%d] not longer than [%d]", res.peer.Host, len(res.chain), bestLen)
			continue
		}

		if err := database.ValidateChain(res.chain, s.genesis, nil); err != nil {
			s.evHandler("state: Reconcile: peer[%s]: SKIPPED: invalid chain: %s", res.peer.Host, err)
			continue
		}

		s.evHandler("state: Reconcile: peer[%s]: candidate length[%d]", res.peer.Host, len(res.chain))
		best = res.chain
		bestLen = len(res.chain)
	}

	if best == nil {
		s.evHandler("state: Reconcile: keeping our chain")
		return false, nil
	}

	// Stop any mining in progress. The mining G waits until the chain has
	// been replaced before it can start again.
	done := s.Worker.SignalCancelMining()
	defer done()

	return s.replaceChain(best)
}

// =============================================================================

// fetchChains asks every peer for its chain concurrently. Every fetch gets
// its own timeout. The results are in the same order as the peers.
func (s *State) fetchChains(ctx context.Context, peers []peer.Peer) []candidate {
	results := make([]candidate, len(peers))

	var wg sync.WaitGroup
	wg.Add(len(peers))

	for i, pr := range peers {
		go func(i int, pr peer.Peer) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.peerTimeout)
			defer cancel()

			chain, err := s.fetcher.FetchChain(ctx, pr)
			results[i] = candidate{peer: pr, chain: chain, err: err}
		}(i, pr)
	}

	wg.Wait()

	return results
}

// replaceChain swaps our chain for the specified one under the write lock.
// The chain must still be longer than ours since a block may have been
// appended while the peers were queried.
func (s *State) replaceChain(chain []database.Block) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chain) <= s.db.Len() {
		s.evHandler("state: replaceChain: our chain grew to length[%d], keeping it", s.db.Len())
		return false, nil
	}

	s.evHandler("state: replaceChain: replacing length[%d] with length[%d]", s.db.Len(), len(chain))

	before := balance.Replay(s.db.Copy()).Copy()

	if err := s.db.Replace(chain); err != nil {
		return false, err
	}

	s.confirmed = confirmedIndex(chain)

	// Walk the mempool in arrival order against the balances of both chains.
	// Drop what is now confirmed or what the sender could fund on our old
	// chain but no longer can on the new one. Senders that were never funded
	// are left alone since admission doesn't check funds.
	after := balance.Replay(chain).Copy()
	removed := s.mempool.DeleteFunc(func(tx database.SignedTx) bool {
		amount := int64(tx.Amount)

		if _, exists := s.confirmed[tx.ID()]; exists {
			if !tx.Sender.IsSystem() {
				before[tx.Sender] -= amount
			}
			before[tx.Recipient] += amount
			return true
		}

		if !tx.Sender.IsSystem() {
			if before[tx.Sender] >= amount && after[tx.Sender] < amount {
				s.evHandler("state: replaceChain: dropping double spent tx[%s]", tx)
				return true
			}
			before[tx.Sender] -= amount
			after[tx.Sender] -= amount
		}
		before[tx.Recipient] += amount
		after[tx.Recipient] += amount

		return false
	})

	s.evHandler("state: replaceChain: pruned txs[%d]: pending[%d]", removed, s.mempool.Count())

	s.savePending()
	s.blockEvent(chain[len(chain)-1])

	return true, nil
}
