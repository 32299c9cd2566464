// Package database handles all the lower level support for maintaining the
// blockchain in memory and writing it through to a storage implementation.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ledgerlab/blockchain/foundation/blockchain/genesis"
)

// ErrStaleTip is returned when a block no longer extends the latest block
// because the chain changed underneath the caller.
var ErrStaleTip = errors.New("block does not extend the latest block")

// ErrNotFound is returned when a block does not exist.
var ErrNotFound = errors.New("block not found")

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain and the
// pending transactions.
type Storage interface {
	Write(block Block) error
	GetBlock(num uint64) (Block, error)
	ForEach() Iterator
	Close() error
	Reset() error
	SavePending(txs []SignedTx) error
	LoadPending() ([]SignedTx, error)
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (Block, error)
	Done() bool
}

// Iterators report the end of the chain by setting Done and returning an
// error wrapping ErrNotFound. Any other error is a failed read.

// =============================================================================

// Database manages the chain of blocks held in memory and keeps the storage
// in sync with it.
type Database struct {
	mu sync.RWMutex

	genesis genesis.Genesis
	chain   []Block
	storage Storage
}

// New constructs a new database and reads the blockchain from storage. When
// storage is empty the genesis block is written. A stored chain that fails
// validation is rejected.
func New(gen genesis.Genesis, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	db := Database{
		genesis: gen,
		storage: storage,
	}

	// Read all the blocks from storage.
	var chain []Block
	iter := storage.ForEach()
	for {
		block, err := iter.Next()
		if err != nil {
			if iter.Done() && errors.Is(err, ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("reading block[%d]: %w", len(chain), err)
		}
		chain = append(chain, block)
	}

	evHandler("database: New: loaded blocks[%d]", len(chain))

	if len(chain) == 0 {
		genesisBlock := GenesisBlock(gen)
		if err := storage.Write(genesisBlock); err != nil {
			return nil, fmt.Errorf("writing genesis block: %w", err)
		}
		chain = []Block{genesisBlock}
	}

	if err := ValidateChain(chain, gen, evHandler); err != nil {
		return nil, fmt.Errorf("stored chain: %w", err)
	}

	db.chain = chain

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Genesis returns the genesis information the database was built with.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.chain[len(db.chain)-1]
}

// Len returns the number of blocks in the chain, including genesis.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.chain)
}

// Copy returns a copy of the chain.
func (db *Database) Copy() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	chain := make([]Block, len(db.chain))
	copy(chain, db.chain)

	return chain
}

// GetBlock returns the block at the specified index.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.chain)) {
		return Block{}, fmt.Errorf("block[%d]: %w", num, ErrNotFound)
	}

	return db.chain[num], nil
}

// Append adds a block to the end of the chain and writes it to storage. The
// block must extend the latest block.
func (db *Database) Append(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	latest := db.chain[len(db.chain)-1]
	if block.Index != latest.Index+1 || block.PrevHash != latest.Hash {
		return ErrStaleTip
	}

	if err := db.storage.Write(block); err != nil {
		return err
	}

	db.chain = append(db.chain, block)

	return nil
}

// Replace swaps the entire chain for the specified one and rewrites storage.
// The chain is expected to be validated by the caller.
func (db *Database) Replace(chain []Block) error {
	if len(chain) == 0 {
		return errors.New("can't replace with an empty chain")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Reset(); err != nil {
		return err
	}

	for _, block := range chain {
		if err := db.storage.Write(block); err != nil {
			return err
		}
	}

	db.chain = make([]Block, len(chain))
	copy(db.chain, chain)

	return nil
}

// SavePending writes the pending transactions to storage.
func (db *Database) SavePending(txs []SignedTx) error {
	return db.storage.SavePending(txs)
}

// LoadPending reads the pending transactions from storage.
func (db *Database) LoadPending() ([]SignedTx, error) {
	return db.storage.LoadPending()
}
