package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
)

// Set of errors returned by the mining and block processing api.
var (
	ErrNoTransactions = errors.New("no transactions in mempool")
	ErrBlockKnown     = errors.New("block already in the chain")
	ErrPeerAhead      = errors.New("peer chain is ahead, reconcile required")
)

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain. The reward goes to the node's miner.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	return s.MinePending(ctx, s.minerAccountID)
}

// MinePending snapshots the mempool, appends the reward for the specified
// miner, and performs the POW. The POW runs without holding the state lock.
// Transactions that arrive while mining remain pending for the next block.
// If the chain changed while mining, the attempt is retried on the new
// latest block.
func (s *State) MinePending(ctx context.Context, miner database.AccountID) (database.Block, error) {
	if !miner.IsAccountID() {
		return database.Block{}, fmt.Errorf("miner %q: %w", miner, database.ErrInvalidAccount)
	}

	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	for {
		s.evHandler("state: MinePending: MINING: check mempool count")

		// Take the snapshot of the transactions that will be mined.
		snapshot := s.mempool.Copy()
		if len(snapshot) == 0 {
			return database.Block{}, ErrNoTransactions
		}

		trans := make([]database.SignedTx, 0, len(snapshot)+1)
		trans = append(trans, snapshot...)
		trans = append(trans, database.NewRewardTx(miner, s.genesis.MiningReward))

		s.evHandler("state: MinePending: MINING: perform POW: txs[%d]", len(trans))

		// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
		block, err := database.POW(ctx, database.POWArgs{
			Difficulty: s.genesis.Difficulty,
			PrevBlock:  s.db.LatestBlock(),
			Trans:      trans,
			EvHandler:  s.evHandler,
		})
		if err != nil {
			return database.Block{}, err
		}

		// Just check one more time we were not cancelled.
		if ctx.Err() != nil {
			return database.Block{}, ctx.Err()
		}

		s.evHandler("state: MinePending: MINING: validate and update database")

		err = s.validateUpdateDatabase(block, snapshot)
		switch {
		case errors.Is(err, database.ErrStaleTip):
			s.evHandler("state: MinePending: MINING: chain changed while mining, retrying")
			continue

		case err != nil:
			return database.Block{}, err
		}

		return block, nil
	}
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain. A block more than
// one ahead of our latest block returns ErrPeerAhead and a reconcile is
// signaled.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.PrevHash, block.Hash, len(block.Transactions))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash)

	latest := s.db.LatestBlock()
	switch {
	case block.Index <= latest.Index:
		return fmt.Errorf("block[%d]: %w", block.Index, ErrBlockKnown)

	case block.Index > latest.Index+1:
		s.Worker.SignalReconcile()
		return fmt.Errorf("block[%d], latest[%d]: %w", block.Index, latest.Index, ErrPeerAhead)
	}

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called. That allows this function to complete
	// its state changes before a new mining operation takes place.
	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
		done()
	}()

	return s.validateUpdateDatabase(block, block.Transactions)
}

// =============================================================================

// validateUpdateDatabase takes the block and validates the block against the
// consensus rules. If the block passes, then the state of the node is updated
// including adding the block to storage and removing the mined transactions
// from the mempool.
func (s *State) validateUpdateDatabase(block database.Block, mined []database.SignedTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: validateUpdateDatabase: validate block")

	latest := s.db.LatestBlock()
	if block.Index != latest.Index+1 || block.PrevHash != latest.Hash {
		return database.ErrStaleTip
	}

	if err := block.ValidateBlock(latest, s.genesis.Difficulty, s.genesis.MiningReward, s.evHandler); err != nil {
		return err
	}

	// The closing reward is excluded since two rewards for the same miner
	// created in the same millisecond share an id.
	for _, tx := range block.Transactions[:len(block.Transactions)-1] {
		if _, exists := s.confirmed[tx.ID()]; exists {
			return fmt.Errorf("tx %s: %w", tx.ID(), ErrAlreadyConfirmed)
		}
	}

	s.evHandler("state: validateUpdateDatabase: write to storage")

	if err := s.db.Append(block); err != nil {
		return err
	}

	s.evHandler("state: validateUpdateDatabase: confirm transactions and remove from mempool")

	for _, tx := range block.Transactions {
		s.confirmed[tx.ID()] = struct{}{}
	}
	s.mempool.Delete(mined...)
	s.savePending()

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: %s`, string(blockJSON))
}
