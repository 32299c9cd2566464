package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerlab/blockchain/foundation/blockchain/signature"
)

// Set of errors returned when a transaction is rejected.
var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidReward    = errors.New("malformed reward")
	ErrInvalidAccount   = errors.New("invalid account")
)

// =============================================================================

// Tx is the transactional information between two parties. These are the
// fields covered by the signature and the field order defines the bytes
// that get signed.
type Tx struct {
	Sender    AccountID `json:"sender"`    // Account sending the value or SYSTEM for rewards.
	Recipient AccountID `json:"recipient"` // Account receiving the value.
	Amount    uint64    `json:"amount"`    // Monetary value being transferred.
	TimeStamp uint64    `json:"timestamp"` // Unix milliseconds of when the transaction was created.
}

// NewTx constructs a new transaction stamped with the current time.
func NewTx(sender AccountID, recipient AccountID, amount uint64) (Tx, error) {
	if !recipient.IsAccountID() {
		return Tx{}, fmt.Errorf("recipient %q: %w", recipient, ErrInvalidAccount)
	}

	if amount == 0 {
		return Tx{}, ErrInvalidAmount
	}

	tx := Tx{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		TimeStamp: Now(),
	}

	return tx, nil
}

// NewRewardTx constructs the unsigned system transaction that credits the
// miner of a block.
func NewRewardTx(miner AccountID, reward uint64) SignedTx {
	return SignedTx{
		Tx: Tx{
			Sender:    SystemSender,
			Recipient: miner,
			Amount:    reward,
			TimeStamp: Now(),
		},
	}
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {

	// Validate the recipient account address is a valid address.
	if !tx.Recipient.IsAccountID() {
		return SignedTx{}, fmt.Errorf("recipient %q: %w", tx.Recipient, ErrInvalidAccount)
	}

	// The signer must be the account named as the sender.
	if from := PublicKeyToAccountID(privateKey.PublicKey); from != tx.Sender {
		return SignedTx{}, fmt.Errorf("sender %s does not match key account %s: %w", tx.Sender, from, ErrInvalidSignature)
	}

	// Sign the transaction with the private key to produce a signature.
	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx:        tx,
		Signature: sig,
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the blockchain and how
// they are recorded inside a block.
type SignedTx struct {
	Tx
	Signature string `json:"signature"` // Hex encoded [R|S|V] signature, empty for system transactions.
}

// ID returns the unique identity of the signed transaction.
func (tx SignedTx) ID() string {
	return signature.Hash(tx)
}

// Validate verifies the transaction is well formed. System transactions must
// be unsigned and carry exactly the mining reward. All other transactions
// must carry a signature that recovers to the sender's account.
func (tx SignedTx) Validate(miningReward uint64) error {
	if tx.Amount == 0 {
		return ErrInvalidAmount
	}

	if tx.Sender == "" || tx.Recipient == "" {
		return fmt.Errorf("missing sender or recipient: %w", ErrInvalidAccount)
	}

	if !tx.Recipient.IsAccountID() {
		return fmt.Errorf("recipient %q: %w", tx.Recipient, ErrInvalidAccount)
	}

	if tx.Sender.IsSystem() {
		if tx.Signature != "" {
			return fmt.Errorf("system transaction is signed: %w", ErrInvalidReward)
		}

		if tx.Amount != miningReward {
			return fmt.Errorf("got %d, exp %d: %w", tx.Amount, miningReward, ErrInvalidReward)
		}

		return nil
	}

	if tx.Sender == tx.Recipient {
		return fmt.Errorf("sending money to yourself, from %s, to %s: %w", tx.Sender, tx.Recipient, ErrInvalidAccount)
	}

	if tx.Signature == "" {
		return fmt.Errorf("missing signature: %w", ErrInvalidSignature)
	}

	if err := signature.VerifySignature(tx.Signature); err != nil {
		return fmt.Errorf("%s: %w", err, ErrInvalidSignature)
	}

	from, err := tx.FromAccount()
	if err != nil {
		return fmt.Errorf("%s: %w", err, ErrInvalidSignature)
	}

	if from != tx.Sender {
		return fmt.Errorf("signed by %s, not sender %s: %w", from, tx.Sender, ErrInvalidSignature)
	}

	return nil
}

// IsValid is the boolean form of Validate.
func (tx SignedTx) IsValid(miningReward uint64) bool {
	return tx.Validate(miningReward) == nil
}

// FromAccount extracts the account id that signed the transaction.
func (tx SignedTx) FromAccount() (AccountID, error) {
	address, err := signature.FromAddress(tx.Tx, tx.Signature)
	return AccountID(address), err
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s->%s:%d", tx.Sender, tx.Recipient, tx.Amount)
}

// =============================================================================

// Now returns the current time in unix milliseconds, the unit used for
// every timestamp on the ledger.
func Now() uint64 {
	return uint64(time.Now().UTC().UnixMilli())
}
