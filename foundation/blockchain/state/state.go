// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/blockchain/genesis"
	"github.com/ledgerlab/blockchain/foundation/blockchain/mempool"
	"github.com/ledgerlab/blockchain/foundation/blockchain/peer"
)

// Set of statuses the node moves between.
const (
	StatusIdle        = "idle"
	StatusReconciling = "reconciling"
)

// defaultPeerTimeout is used when no peer timeout is configured.
const defaultPeerTimeout = 5 * time.Second

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and transaction sharing.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(tx database.SignedTx)
	SignalReconcile()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerAccountID database.AccountID
	Host           string
	Storage        database.Storage
	Genesis        genesis.Genesis
	KnownPeers     *peer.PeerSet
	Fetcher        Fetcher
	PeerTimeout    time.Duration
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	mu          sync.RWMutex
	miningMu    sync.Mutex
	reconciling atomic.Bool

	minerAccountID database.AccountID
	host           string
	evHandler      EventHandler
	peerTimeout    time.Duration

	knownPeers *peer.PeerSet
	genesis    genesis.Genesis
	mempool    *mempool.Mempool
	db         *database.Database
	fetcher    Fetcher
	confirmed  map[string]struct{}

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Access the storage for the blockchain. The chain is read and
	// validated against the genesis rules.
	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	peerTimeout := cfg.PeerTimeout
	if peerTimeout <= 0 {
		peerTimeout = defaultPeerTimeout
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher()
	}

	// Create the State to provide support for managing the blockchain.
	state := State{
		minerAccountID: cfg.MinerAccountID,
		host:           cfg.Host,
		evHandler:      ev,
		peerTimeout:    peerTimeout,

		knownPeers: knownPeers,
		genesis:    cfg.Genesis,
		mempool:    mempool.New(),
		db:         db,
		fetcher:    fetcher,
		confirmed:  confirmedIndex(db.Copy()),

		Worker: noopWorker{},
	}

	// Restore the pending transactions that survived the last shutdown.
	if err := state.loadPending(); err != nil {
		return nil, err
	}

	// The Worker is set to a no-op worker here. The call to worker.Run will
	// assign itself and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the database is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	return s.db.SavePending(s.mempool.Copy())
}

// Status returns the consensus status of the node.
func (s *State) Status() string {
	if s.reconciling.Load() {
		return StatusReconciling
	}
	return StatusIdle
}

// =============================================================================

// loadPending reads the stored pending transactions back into the mempool.
// Transactions that are no longer valid or already confirmed are dropped.
func (s *State) loadPending() error {
	txs, err := s.db.LoadPending()
	if err != nil {
		return err
	}

	for _, tx := range txs {
		if err := tx.Validate(s.genesis.MiningReward); err != nil {
			s.evHandler("state: loadPending: dropping tx[%s]: %s", tx, err)
			continue
		}

		if _, exists := s.confirmed[tx.ID()]; exists {
			continue
		}

		s.mempool.Add(tx)
	}

	s.evHandler("state: loadPending: restored txs[%d]", s.mempool.Count())

	return nil
}

// confirmedIndex builds the set of transaction ids that exist in the chain.
func confirmedIndex(chain []database.Block) map[string]struct{} {
	confirmed := make(map[string]struct{})
	for _, block := range chain {
		for _, tx := range block.Transactions {
			confirmed[tx.ID()] = struct{}{}
		}
	}

	return confirmed
}

// =============================================================================

// noopWorker is used until a real worker registers itself.
type noopWorker struct{}

func (noopWorker) Shutdown()                         {}
func (noopWorker) SignalStartMining()                {}
func (noopWorker) SignalCancelMining() (done func()) { return func() {} }
func (noopWorker) SignalShareTx(database.SignedTx)   {}
func (noopWorker) SignalReconcile()                  {}
