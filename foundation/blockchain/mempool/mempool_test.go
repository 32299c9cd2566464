package mempool_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/blockchain/mempool"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

func sign(t *testing.T, to database.AccountID, amount uint64) database.SignedTx {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %s", err)
	}

	tx, err := database.NewTx(database.PublicKeyToAccountID(pk.PublicKey), to, amount)
	if err != nil {
		t.Fatalf("Should be able to construct the transaction: %s", err)
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	return signedTx
}

func recipient(t *testing.T) database.AccountID {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}

	return database.PublicKeyToAccountID(pk.PublicKey)
}

func TestCRUD(t *testing.T) {
	type table struct {
		name    string
		amounts []uint64
	}

	tt := []table{
		{name: "basic", amounts: []uint64{40, 10, 30, 20}},
		{name: "single", amounts: []uint64{5}},
	}

	t.Log("Given the need to validate mempool api.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					mp := mempool.New()

					var txs []database.SignedTx
					for _, amount := range tst.amounts {
						tx := sign(t, recipient(t), amount)
						txs = append(txs, tx)

						if _, err := mp.Add(tx); err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to add new transaction: %v", failed, testID, err)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould be able to add new transactions.", success, testID)

					if _, err := mp.Add(txs[0]); !errors.Is(err, mempool.ErrDuplicate) {
						t.Fatalf("\t%s\tTest %d:\tShould reject a duplicate transaction: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould reject a duplicate transaction.", success, testID)

					for i, tx := range mp.Copy() {
						if tx.ID() != txs[i].ID() {
							t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, tx.Amount)
							t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, txs[i].Amount)
							t.Fatalf("\t%s\tTest %d:\tShould get back transactions in arrival order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back transactions in arrival order.", success, testID)

					mp.Delete(txs[0])
					if mp.Count() != len(txs)-1 || mp.Contains(txs[0].ID()) {
						t.Fatalf("\t%s\tTest %d:\tShould be able to remove a transaction.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to remove a transaction.", success, testID)

					copied := mp.Copy()
					for i, tx := range copied {
						if tx.ID() != txs[i+1].ID() {
							t.Fatalf("\t%s\tTest %d:\tShould keep arrival order after a delete.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould keep arrival order after a delete.", success, testID)

					mp.Truncate()
					if l := len(mp.Copy()); l != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould be able to truncate mempool.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to truncate mempool.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestDeleteFunc(t *testing.T) {
	t.Log("Given the need to prune transactions from the mempool.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen removing transactions over an amount.", testID)
		{
			mp := mempool.New()
			for _, amount := range []uint64{10, 500, 20, 600} {
				if _, err := mp.Add(sign(t, recipient(t), amount)); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to add new transaction: %v", failed, testID, err)
				}
			}

			removed := mp.DeleteFunc(func(tx database.SignedTx) bool {
				return tx.Amount > 100
			})
			if removed != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould remove two transactions, got %d.", failed, testID, removed)
			}
			t.Logf("\t%s\tTest %d:\tShould remove two transactions.", success, testID)

			txs := mp.Copy()
			if len(txs) != 2 || txs[0].Amount != 10 || txs[1].Amount != 20 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the remaining transactions in order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the remaining transactions in order.", success, testID)
		}
	}
}
