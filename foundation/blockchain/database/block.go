package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerlab/blockchain/foundation/blockchain/genesis"
	"github.com/ledgerlab/blockchain/foundation/blockchain/signature"
)

// Block represents a group of transactions batched together. The JSON form
// of a block is what is stored and sent over the network, and the field order
// matches the order the fields are hashed in.
type Block struct {
	Index        uint64     `json:"index"`        // Position in the chain, 0 is genesis.
	TimeStamp    uint64     `json:"timestamp"`    // Unix milliseconds of when the block was mined.
	Transactions []SignedTx `json:"transactions"` // Ordered payload, the reward is last.
	PrevHash     string     `json:"prev_hash"`    // Hash of the previous block in the chain.
	Nonce        uint64     `json:"nonce"`        // Value identified to solve the hash solution.
	Hash         string     `json:"hash"`         // Hash of every field above.
}

// blockContent is the part of the block covered by the hash.
type blockContent struct {
	Index        uint64     `json:"index"`
	TimeStamp    uint64     `json:"timestamp"`
	Transactions []SignedTx `json:"transactions"`
	PrevHash     string     `json:"prev_hash"`
	Nonce        uint64     `json:"nonce"`
}

// GenesisBlock constructs the well known first block of the chain from the
// genesis file. Every node loading the same genesis file produces the same
// block so this block is never mined.
func GenesisBlock(gen genesis.Genesis) Block {
	b := Block{
		Index:        0,
		TimeStamp:    uint64(gen.Date.UTC().UnixMilli()),
		Transactions: []SignedTx{},
		PrevHash:     signature.ZeroHash,
		Nonce:        0,
	}
	b.Hash = b.CalculateHash()

	return b
}

// CalculateHash returns the unique hash for the block's content. The stored
// Hash field is not part of the calculation.
func (b Block) CalculateHash() string {
	trans := b.Transactions
	if trans == nil {
		trans = []SignedTx{}
	}

	bc := blockContent{
		Index:        b.Index,
		TimeStamp:    b.TimeStamp,
		Transactions: trans,
		PrevHash:     b.PrevHash,
		Nonce:        b.Nonce,
	}

	return signature.Hash(bc)
}

// Equal reports whether two blocks carry the same hash and the hash
// matches their content.
func (b Block) Equal(other Block) bool {
	return b.Hash == other.Hash && b.CalculateHash() == other.CalculateHash()
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Difficulty uint16
	PrevBlock  Block
	Trans      []SignedTx
	EvHandler  func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	trans := make([]SignedTx, len(args.Trans))
	copy(trans, args.Trans)

	// Construct the block to be mined.
	nb := Block{
		Index:        args.PrevBlock.Index + 1,
		TimeStamp:    Now(),
		Transactions: trans,
		PrevHash:     args.PrevBlock.Hash,
		Nonce:        0, // Will be identified by the POW algorithm.
	}

	// Peform the proof of work mining operation.
	if err := nb.performPOW(ctx, args.Difficulty, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, difficulty uint16, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]: difficulty[%d]", b.Index, difficulty)
	defer ev("database: PerformPOW: MINING: completed: blk[%d]", b.Index)

	// Log the transactions that are a part of this potential block.
	for _, tx := range b.Transactions {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	// Loop until we find a solution or we are told to stop.
	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did we get cancelled trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		// Hash the block and check if we have solved the puzzle.
		hash := b.CalculateHash()
		if !IsHashSolved(difficulty, hash) {
			b.Nonce++
			continue
		}

		b.Hash = hash

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.PrevHash, hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// IsHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func IsHashSolved(difficulty uint16, hash string) bool {
	if len(hash) != 64 || int(difficulty) > len(hash) {
		return false
	}

	return strings.HasPrefix(hash, strings.Repeat("0", int(difficulty)))
}

// =============================================================================

// ValidateBlock takes a block and validates it to be included into the
// blockchain after the specified previous block.
func (b Block) ValidateBlock(previousBlock Block, difficulty uint16, miningReward uint64, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block index is the next index", b.Index)

	nextIndex := previousBlock.Index + 1
	if b.Index != nextIndex {
		err := fmt.Errorf("this block is not the next index, got %d, exp %d", b.Index, nextIndex)
		return invalid(b.Index, RuleIndex, err)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: prev hash does match parent block", b.Index)

	if b.PrevHash != previousBlock.Hash {
		return invalid(b.Index, RuleLinkage, fmt.Errorf("prev block hash doesn't match our known parent, got %s, exp %s", b.PrevHash, previousBlock.Hash))
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash matches content", b.Index)

	hash := b.CalculateHash()
	if hash != b.Hash {
		return invalid(b.Index, RuleHash, fmt.Errorf("block hash doesn't match content, got %s, exp %s", b.Hash, hash))
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Index)

	if !IsHashSolved(difficulty, b.Hash) {
		return invalid(b.Index, RulePOW, fmt.Errorf("%s doesn't meet difficulty %d", b.Hash, difficulty))
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: transactions are valid", b.Index)

	for i, tx := range b.Transactions {
		if err := tx.Validate(miningReward); err != nil {
			return invalid(b.Index, RuleTransaction, fmt.Errorf("tx[%d]: %w", i, err))
		}
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block ends with the mining reward", b.Index)

	if n := len(b.Transactions); n == 0 || !b.Transactions[n-1].Sender.IsSystem() {
		return invalid(b.Index, RuleReward, ErrInvalidReward)
	}

	return nil
}
