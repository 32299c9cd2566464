// Package level implements the ability to read and write blocks to a
// LevelDB database.
package level

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Set of key prefixes used to separate the data held in the database.
var (
	blockPrefix = []byte("b")
	pendingKey  = []byte("p")
)

// Level represents the serialization implementation for reading and storing
// blocks in LevelDB. Blocks are keyed by their big endian index so the
// natural key order is the chain order. This implements the
// database.Storage interface.
type Level struct {
	db *leveldb.DB
}

// New opens or creates the LevelDB database at the specified path.
func New(dbPath string) (*Level, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb %s: %w", dbPath, err)
	}

	return &Level{db: db}, nil
}

// NewInMemory constructs a LevelDB database that lives in memory.
func NewInMemory() (*Level, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}

	return &Level{db: db}, nil
}

// Close releases the database.
func (l *Level) Close() error {
	return l.db.Close()
}

// Write takes the specified database block and stores it.
func (l *Level) Write(block database.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	return l.db.Put(blockKey(block.Index), data, &opt.WriteOptions{Sync: true})
}

// GetBlock locates and returns the contents of the specified block by number.
func (l *Level) GetBlock(num uint64) (database.Block, error) {
	data, err := l.db.Get(blockKey(num), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.Block{}, fmt.Errorf("block[%d]: %w", num, database.ErrNotFound)
		}
		return database.Block{}, err
	}

	var block database.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 0.
func (l *Level) ForEach() database.Iterator {
	return &levelIterator{
		iter: l.db.NewIterator(util.BytesPrefix(blockPrefix), nil),
	}
}

// Reset removes every block and the pending transactions in one batch.
func (l *Level) Reset() error {
	batch := new(leveldb.Batch)

	iter := l.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	err := iter.Error()
	iter.Release()

	if err != nil {
		return err
	}

	batch.Delete(pendingKey)

	return l.db.Write(batch, &opt.WriteOptions{Sync: true})
}

// SavePending replaces the stored set of pending transactions.
func (l *Level) SavePending(txs []database.SignedTx) error {
	data, err := json.Marshal(txs)
	if err != nil {
		return err
	}

	return l.db.Put(pendingKey, data, nil)
}

// LoadPending returns the stored set of pending transactions.
func (l *Level) LoadPending() ([]database.SignedTx, error) {
	data, err := l.db.Get(pendingKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var txs []database.SignedTx
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, err
	}

	return txs, nil
}

// =============================================================================

// blockKey forms the key for the specified block number.
func blockKey(num uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], num)

	return key
}

// levelIterator represents the iteration implementation for walking
// through and reading blocks in key order. This implements the database
// Iterator interface.
type levelIterator struct {
	iter iterator.Iterator
	eoc  bool
}

// Next retrieves the next block from the database.
func (li *levelIterator) Next() (database.Block, error) {
	if li.eoc {
		return database.Block{}, fmt.Errorf("end of chain: %w", database.ErrNotFound)
	}

	if !li.iter.Next() {
		li.eoc = true
		err := li.iter.Error()
		li.iter.Release()

		if err != nil {
			return database.Block{}, err
		}
		return database.Block{}, fmt.Errorf("end of chain: %w", database.ErrNotFound)
	}

	var block database.Block
	if err := json.Unmarshal(li.iter.Value(), &block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// Done returns the end of chain value.
func (li *levelIterator) Done() bool {
	return li.eoc
}
