// Package wallet provides a key pair for signing transactions. The ledger
// itself never holds private keys, only the wallet does.
package wallet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
)

// Wallet represents a secp256k1 key pair and the account it controls.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	accountID  database.AccountID
}

// New generates a wallet with a brand new key pair.
func New() (*Wallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	return FromPrivateKey(privateKey), nil
}

// FromPrivateKey constructs a wallet for an existing private key.
func FromPrivateKey(privateKey *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		privateKey: privateKey,
		accountID:  database.PublicKeyToAccountID(privateKey.PublicKey),
	}
}

// FromHex constructs a wallet from a hex encoded private key.
func FromHex(hexKey string) (*Wallet, error) {
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}

	return FromPrivateKey(privateKey), nil
}

// Load reads the private key from the specified key file.
func Load(path string) (*Wallet, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("loading key %s: %w", path, err)
	}

	return FromPrivateKey(privateKey), nil
}

// Save writes the private key to the specified key file.
func (w *Wallet) Save(path string) error {
	return crypto.SaveECDSA(path, w.privateKey)
}

// AccountID returns the account controlled by this wallet.
func (w *Wallet) AccountID() database.AccountID {
	return w.accountID
}

// PrivateKey returns the private key for this wallet.
func (w *Wallet) PrivateKey() *ecdsa.PrivateKey {
	return w.privateKey
}

// Sign signs the transaction with the wallet's private key. The transaction
// sender must be the wallet's account.
func (w *Wallet) Sign(tx database.Tx) (database.SignedTx, error) {
	return tx.Sign(w.privateKey)
}

// Send constructs and signs a transaction moving the amount from the
// wallet's account to the recipient.
func (w *Wallet) Send(recipient database.AccountID, amount uint64) (database.SignedTx, error) {
	tx, err := database.NewTx(w.accountID, recipient, amount)
	if err != nil {
		return database.SignedTx{}, err
	}

	return w.Sign(tx)
}
