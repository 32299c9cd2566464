package state

import (
	"errors"
	"fmt"

	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
)

// ErrAlreadyConfirmed is returned when a transaction is already in the chain.
var ErrAlreadyConfirmed = errors.New("transaction already confirmed")

// UpsertWalletTransaction accepts a transaction from a wallet for inclusion.
// The transaction is shared with the known peers once accepted.
func (s *State) UpsertWalletTransaction(tx database.SignedTx) error {
	if err := s.addTransaction(tx); err != nil {
		return err
	}

	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return nil
}

// UpsertNodeTransaction accepts a transaction shared by another node for
// inclusion. These transactions are not shared again.
func (s *State) UpsertNodeTransaction(tx database.SignedTx) error {
	if err := s.addTransaction(tx); err != nil {
		return err
	}

	s.Worker.SignalStartMining()

	return nil
}

// =============================================================================

// addTransaction validates the transaction and appends it to the mempool.
// The confirmed check and the append happen under the write lock so a block
// committed at the same time can't confirm the transaction in between.
func (s *State) addTransaction(tx database.SignedTx) error {
	if err := tx.Validate(s.genesis.MiningReward); err != nil {
		s.evHandler("state: addTransaction: REJECTED: tx[%s]: %s", tx, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := tx.ID()
	if _, exists := s.confirmed[id]; exists {
		s.evHandler("state: addTransaction: REJECTED: tx[%s]: %s", tx, ErrAlreadyConfirmed)
		return fmt.Errorf("tx %s: %w", id, ErrAlreadyConfirmed)
	}

	n, err := s.mempool.Add(tx)
	if err != nil {
		s.evHandler("state: addTransaction: REJECTED: tx[%s]: %s", tx, err)
		return fmt.Errorf("tx %s: %w", id, err)
	}

	s.evHandler("state: addTransaction: accepted: tx[%s]: pending[%d]", tx, n)

	s.savePending()

	return nil
}

// savePending writes the mempool through to storage. A failure is logged
// since the mempool in memory stays correct.
func (s *State) savePending() {
	if err := s.db.SavePending(s.mempool.Copy()); err != nil {
		s.evHandler("state: savePending: WARNING: %s", err)
	}
}
