package wallet_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/blockchain/wallet"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	account  = database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	reward   = 100
)

func Test_SignatureRoundTrip(t *testing.T) {
	t.Log("Given the need to sign and verify transactions with a wallet.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a wallet loaded from a known key.", testID)
		{
			w, err := wallet.FromHex(pkHexKey)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the key: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to load the key.", success, testID)

			if w.AccountID() != account {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, w.AccountID())
				t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, account)
				t.Fatalf("\t%s\tTest %d:\tShould derive the right account.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould derive the right account.", success, testID)

			other, err := wallet.New()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a wallet: %v", failed, testID, err)
			}

			tx, err := w.Send(other.AccountID(), 10)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to sign a transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to sign a transaction.", success, testID)

			if err := tx.Validate(reward); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould validate a signed transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould validate a signed transaction.", success, testID)

			// Sign with another wallet and claim it came from this wallet.
			if _, err := other.Sign(database.Tx{Sender: account, Recipient: other.AccountID(), Amount: 10}); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not sign for another account.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not sign for another account.", success, testID)

			forged, err := other.Send(account, 10)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to sign a transaction: %v", failed, testID, err)
			}
			forged.Sender = account
			forged.Recipient = other.AccountID()

			err = forged.Validate(reward)
			if !errors.Is(err, database.ErrInvalidSignature) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a misattributed transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a misattributed transaction.", success, testID)
		}
	}
}

func Test_SaveLoad(t *testing.T) {
	t.Log("Given the need to store wallet keys on disk.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen saving and loading a generated wallet.", testID)
		{
			w, err := wallet.New()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a wallet: %v", failed, testID, err)
			}

			path := filepath.Join(t.TempDir(), "kennedy.ecdsa")
			if err := w.Save(path); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to save the key: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to save the key.", success, testID)

			loaded, err := wallet.Load(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the key: %v", failed, testID, err)
			}

			if loaded.AccountID() != w.AccountID() {
				t.Fatalf("\t%s\tTest %d:\tShould load the same account.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould load the same account.", success, testID)

			if !loaded.AccountID().IsAccountID() {
				t.Fatalf("\t%s\tTest %d:\tShould produce a canonical account.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould produce a canonical account.", success, testID)
		}
	}
}
