package database

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SystemSender is the reserved sender used for transactions issued by the
// ledger itself, such as the mining reward. These transactions carry no
// signature.
const SystemSender AccountID = "SYSTEM"

// AccountID represents an account id that is used to sign transactions and is
// associated with transactions on the blockchain. This will be the last 20
// bytes of the public key in its checksummed hex form.
type AccountID string

// ToAccountID converts a hex-encoded string to an account and validates the
// hex-encoded string is formatted correctly.
func ToAccountID(hex string) (AccountID, error) {
	a := AccountID(hex)
	if !a.IsAccountID() {
		return "", errors.New("invalid account format")
	}

	return a, nil
}

// PublicKeyToAccountID converts the public key to an account value.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(crypto.PubkeyToAddress(pk).Hex())
}

// IsAccountID verifies whether the underlying data represents a valid
// hex-encoded account in its canonical checksummed form. An address that
// differs only by letter case names the same key but would replay as a
// different balance, so only the canonical form is accepted.
func (a AccountID) IsAccountID() bool {
	if !common.IsHexAddress(string(a)) {
		return false
	}

	return common.HexToAddress(string(a)).Hex() == string(a)
}

// IsSystem reports whether the account is the reserved system sender.
func (a AccountID) IsSystem() bool {
	return a == SystemSender
}

// =============================================================================

// Balance represents the confirmed balance for an account at a given block.
type Balance struct {
	AccountID AccountID `json:"account"`
	Balance   int64     `json:"balance"`
}
