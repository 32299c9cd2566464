package database_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/blockchain/genesis"
	"github.com/ledgerlab/blockchain/foundation/blockchain/signature"
	"github.com/ledgerlab/blockchain/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	from     = database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
)

func testGenesis(difficulty uint16) genesis.Genesis {
	gen := genesis.Default()
	gen.Difficulty = difficulty
	return gen
}

func newAccount(t *testing.T) database.AccountID {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}

	return database.PublicKeyToAccountID(pk.PublicKey)
}

func sign(t *testing.T, to database.AccountID, amount uint64) database.SignedTx {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %s", err)
	}

	tx, err := database.NewTx(from, to, amount)
	if err != nil {
		t.Fatalf("Should be able to construct the transaction: %s", err)
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	return signedTx
}

// mineChain builds a valid chain with the specified number of mined blocks
// after genesis.
func mineChain(t *testing.T, gen genesis.Genesis, blocks int) []database.Block {
	chain := []database.Block{database.GenesisBlock(gen)}
	miner := newAccount(t)

	for i := 0; i < blocks; i++ {
		args := database.POWArgs{
			Difficulty: gen.Difficulty,
			PrevBlock:  chain[len(chain)-1],
			Trans: []database.SignedTx{
				sign(t, miner, uint64(10+i)),
				database.NewRewardTx(miner, gen.MiningReward),
			},
		}

		block, err := database.POW(context.Background(), args)
		if err != nil {
			t.Fatalf("Should be able to mine block %d: %s", i+1, err)
		}
		chain = append(chain, block)
	}

	return chain
}

// =============================================================================

func Test_POW(t *testing.T) {
	type table struct {
		name       string
		difficulty uint16
	}

	tt := []table{
		{name: "zero", difficulty: 0},
		{name: "one", difficulty: 1},
		{name: "two", difficulty: 2},
	}

	t.Log("Given the need to mine blocks that meet the difficulty target.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen mining with difficulty %d.", testID, tst.difficulty)
			{
				f := func(t *testing.T) {
					gen := testGenesis(tst.difficulty)

					args := database.POWArgs{
						Difficulty: tst.difficulty,
						PrevBlock:  database.GenesisBlock(gen),
						Trans:      []database.SignedTx{database.NewRewardTx(from, gen.MiningReward)},
					}

					block, err := database.POW(context.Background(), args)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, testID)

					if !strings.HasPrefix(block.Hash, strings.Repeat("0", int(tst.difficulty))) {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, block.Hash)
						t.Fatalf("\t%s\tTest %d:\tShould have a hash meeting the target.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould have a hash meeting the target.", success, testID)

					if block.Hash != block.CalculateHash() {
						t.Fatalf("\t%s\tTest %d:\tShould have a hash matching the content.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould have a hash matching the content.", success, testID)

					if tst.difficulty == 0 && block.Nonce != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould solve difficulty zero on the first attempt, nonce %d.", failed, testID, block.Nonce)
					}

					if block.Index != 1 || block.PrevHash != args.PrevBlock.Hash {
						t.Fatalf("\t%s\tTest %d:\tShould link to the previous block.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould link to the previous block.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_POWCancel(t *testing.T) {
	t.Log("Given the need to abandon mining.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the context is cancelled.", testID)
		{
			gen := testGenesis(64)

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			args := database.POWArgs{
				Difficulty: gen.Difficulty,
				PrevBlock:  database.GenesisBlock(gen),
				Trans:      []database.SignedTx{database.NewRewardTx(from, gen.MiningReward)},
			}

			_, err := database.POW(ctx, args)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("\t%s\tTest %d:\tShould stop mining with the context error: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould stop mining with the context error.", success, testID)
		}
	}
}

func Test_HashDeterminism(t *testing.T) {
	t.Log("Given the need for block hashes to be reproducible.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen recomputing the hash of blocks.", testID)
		{
			gen := testGenesis(1)

			g1 := database.GenesisBlock(gen)
			g2 := database.GenesisBlock(gen)
			if g1.Hash != g2.Hash || g1.PrevHash != signature.ZeroHash {
				t.Fatalf("\t%s\tTest %d:\tShould build the same genesis block every time.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould build the same genesis block every time.", success, testID)

			chain := mineChain(t, gen, 2)
			for _, block := range chain {
				if block.CalculateHash() != block.Hash || block.CalculateHash() != block.CalculateHash() {
					t.Fatalf("\t%s\tTest %d:\tShould recompute the same hash for block %d.", failed, testID, block.Index)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould recompute the same hash for every block.", success, testID)
		}
	}
}

func Test_Transactions(t *testing.T) {
	const reward = 100

	to := newAccount(t)

	type table struct {
		name string
		tx   func() database.SignedTx
		err  error
	}

	tt := []table{
		{
			name: "signed",
			tx:   func() database.SignedTx { return sign(t, to, 10) },
		},
		{
			name: "reward",
			tx:   func() database.SignedTx { return database.NewRewardTx(to, reward) },
		},
		{
			name: "zero-amount",
			tx: func() database.SignedTx {
				tx := sign(t, to, 10)
				tx.Amount = 0
				return tx
			},
			err: database.ErrInvalidAmount,
		},
		{
			name: "wrong-reward",
			tx:   func() database.SignedTx { return database.NewRewardTx(to, reward+1) },
			err:  database.ErrInvalidReward,
		},
		{
			name: "signed-reward",
			tx: func() database.SignedTx {
				tx := database.NewRewardTx(to, reward)
				tx.Signature = sign(t, to, 10).Signature
				return tx
			},
			err: database.ErrInvalidReward,
		},
		{
			name: "tampered-amount",
			tx: func() database.SignedTx {
				tx := sign(t, to, 10)
				tx.Amount = 1000
				return tx
			},
			err: database.ErrInvalidSignature,
		},
		{
			name: "missing-signature",
			tx: func() database.SignedTx {
				tx := sign(t, to, 10)
				tx.Signature = ""
				return tx
			},
			err: database.ErrInvalidSignature,
		},
		{
			name: "self-transfer",
			tx: func() database.SignedTx {
				return database.SignedTx{Tx: database.Tx{Sender: from, Recipient: from, Amount: 10}}
			},
			err: database.ErrInvalidAccount,
		},
		{
			name: "lowercase-recipient",
			tx: func() database.SignedTx {
				tx := sign(t, to, 10)
				tx.Recipient = database.AccountID(strings.ToLower(string(tx.Recipient)))
				return tx
			},
			err: database.ErrInvalidAccount,
		},
		{
			name: "empty-sender",
			tx: func() database.SignedTx {
				tx := sign(t, to, 10)
				tx.Sender = ""
				return tx
			},
			err: database.ErrInvalidAccount,
		},
	}

	t.Log("Given the need to validate transactions.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s transaction.", testID, tst.name)
			{
				f := func(t *testing.T) {
					tx := tst.tx()
					err := tx.Validate(reward)

					switch tst.err {
					case nil:
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be a valid transaction: %v", failed, testID, err)
						}
						if !tx.IsValid(reward) {
							t.Fatalf("\t%s\tTest %d:\tShould report the transaction as valid.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould be a valid transaction.", success, testID)

					default:
						if !errors.Is(err, tst.err) {
							t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
							t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.err)
							t.Fatalf("\t%s\tTest %d:\tShould reject the transaction.", failed, testID)
						}
						if tx.IsValid(reward) {
							t.Fatalf("\t%s\tTest %d:\tShould report the transaction as invalid.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould reject the transaction.", success, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_ValidateChain(t *testing.T) {
	gen := testGenesis(1)
	valid := mineChain(t, gen, 3)

	type table struct {
		name   string
		mutate func(chain []database.Block)
		index  uint64
		rule   string
	}

	tt := []table{
		{
			name:   "valid",
			mutate: func(chain []database.Block) {},
		},
		{
			name:   "genesis-timestamp",
			mutate: func(chain []database.Block) { chain[0].TimeStamp++ },
			index:  0,
			rule:   database.RuleGenesis,
		},
		{
			name:   "index",
			mutate: func(chain []database.Block) { chain[2].Index = 7 },
			index:  2,
			rule:   database.RuleIndex,
		},
		{
			name:   "linkage",
			mutate: func(chain []database.Block) { chain[2].PrevHash = signature.Hash("unrelated") },
			index:  2,
			rule:   database.RuleLinkage,
		},
		{
			name:   "timestamp",
			mutate: func(chain []database.Block) { chain[1].TimeStamp++ },
			index:  1,
			rule:   database.RuleHash,
		},
		{
			name:   "nonce",
			mutate: func(chain []database.Block) { chain[3].Nonce++ },
			index:  3,
			rule:   database.RuleHash,
		},
		{
			name: "amount",
			mutate: func(chain []database.Block) {
				chain[2].Transactions[0].Amount = 5000
			},
			index: 2,
			rule:  database.RuleHash,
		},
		{
			name:   "hash",
			mutate: func(chain []database.Block) { chain[3].Hash = signature.ZeroHash },
			index:  3,
			rule:   database.RuleHash,
		},
		{
			name: "rehashed-amount",
			mutate: func(chain []database.Block) {
				chain[3].Transactions[0].Amount = 5000
				chain[3].Hash = chain[3].CalculateHash()
			},
			index: 3,
			rule:  database.RulePOW + "|" + database.RuleTransaction,
		},
	}

	t.Log("Given the need to validate a chain.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling the %s case.", testID, tst.name)
			{
				f := func(t *testing.T) {
					chain := clone(valid)
					tst.mutate(chain)

					err := database.ValidateChain(chain, gen, nil)

					if tst.rule == "" {
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be a valid chain: %v", failed, testID, err)
						}
						if !database.IsChainValid(chain, gen) {
							t.Fatalf("\t%s\tTest %d:\tShould report the chain as valid.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould be a valid chain.", success, testID)
						return
					}

					ve := database.GetValidationError(err)
					if ve == nil {
						t.Fatalf("\t%s\tTest %d:\tShould get a validation error: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get a validation error: %s", success, testID, ve)

					if ve.Index != tst.index || !strings.Contains(tst.rule, ve.Rule) {
						t.Logf("\t%s\tTest %d:\tgot: %d %s", failed, testID, ve.Index, ve.Rule)
						t.Logf("\t%s\tTest %d:\texp: %d %s", failed, testID, tst.index, tst.rule)
						t.Fatalf("\t%s\tTest %d:\tShould fail at the right block and rule.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould fail at the right block and rule.", success, testID)

					if database.IsChainValid(chain, gen) {
						t.Fatalf("\t%s\tTest %d:\tShould report the chain as invalid.", failed, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_MissingReward(t *testing.T) {
	t.Log("Given the need for every mined block to pay a reward.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a block has no reward transaction.", testID)
		{
			gen := testGenesis(0)

			args := database.POWArgs{
				Difficulty: gen.Difficulty,
				PrevBlock:  database.GenesisBlock(gen),
				Trans:      []database.SignedTx{sign(t, newAccount(t), 10)},
			}

			block, err := database.POW(context.Background(), args)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}

			err = database.ValidateChain([]database.Block{args.PrevBlock, block}, gen, nil)
			if ve := database.GetValidationError(err); ve == nil || ve.Rule != database.RuleReward {
				t.Fatalf("\t%s\tTest %d:\tShould fail the reward rule: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail the reward rule.", success, testID)
		}
	}
}

func Test_Database(t *testing.T) {
	t.Log("Given the need to keep the chain in sync with storage.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen using memory storage.", testID)
		{
			gen := testGenesis(1)
			storage := memory.New()

			db, err := database.New(gen, storage, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the database: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to open the database.", success, testID)

			if db.Len() != 1 || db.LatestBlock().Hash != database.GenesisBlock(gen).Hash {
				t.Fatalf("\t%s\tTest %d:\tShould start with the genesis block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould start with the genesis block.", success, testID)

			chain := mineChain(t, gen, 2)
			for _, block := range chain[1:] {
				if err := db.Append(block); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to append block %d: %v", failed, testID, block.Index, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to append blocks.", success, testID)

			if err := db.Append(chain[1]); !errors.Is(err, database.ErrStaleTip) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a block that doesn't extend the tip: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a block that doesn't extend the tip.", success, testID)

			reopened, err := database.New(gen, storage, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reopen the database: %v", failed, testID, err)
			}

			if reopened.Len() != 3 || reopened.LatestBlock().Hash != chain[2].Hash {
				t.Fatalf("\t%s\tTest %d:\tShould read the chain back from storage.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould read the chain back from storage.", success, testID)

			replacement := mineChain(t, gen, 4)
			if err := db.Replace(replacement); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to replace the chain: %v", failed, testID, err)
			}

			block, err := storage.GetBlock(4)
			if err != nil || block.Hash != replacement[4].Hash {
				t.Fatalf("\t%s\tTest %d:\tShould write the replacement to storage: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould write the replacement to storage.", success, testID)

			if _, err := db.GetBlock(10); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould not find a missing block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not find a missing block.", success, testID)
		}
	}
}

// failingStorage reads the stored blocks back and then fails the final read
// the way the level iterator does when leveldb reports an error.
type failingStorage struct {
	*memory.Memory
}

func (s failingStorage) ForEach() database.Iterator {
	return &failingIterator{storage: s.Memory}
}

type failingIterator struct {
	storage *memory.Memory
	current uint64
	done    bool
}

func (fi *failingIterator) Next() (database.Block, error) {
	block, err := fi.storage.GetBlock(fi.current)
	if err != nil {
		fi.done = true
		return database.Block{}, errors.New("corrupted block file")
	}
	fi.current++
	return block, nil
}

func (fi *failingIterator) Done() bool {
	return fi.done
}

func Test_DatabaseReadFailure(t *testing.T) {
	t.Log("Given the need to report storage read failures when loading the chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the last read from storage fails.", testID)
		{
			gen := testGenesis(1)
			storage := memory.New()

			for _, block := range mineChain(t, gen, 2) {
				if err := storage.Write(block); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write block %d: %v", failed, testID, block.Index, err)
				}
			}

			if _, err := database.New(gen, failingStorage{Memory: storage}, nil); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not load a truncated chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not load a truncated chain.", success, testID)

			db, err := database.New(gen, storage, nil)
			if err != nil || db.Len() != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould load the full chain without the failure: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould load the full chain without the failure.", success, testID)
		}
	}
}

// =============================================================================

func clone(chain []database.Block) []database.Block {
	out := make([]database.Block, len(chain))
	for i, block := range chain {
		out[i] = block
		out[i].Transactions = make([]database.SignedTx, len(block.Transactions))
		copy(out[i].Transactions, block.Transactions)
	}
	return out
}
