package public

import (
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/nameservice"
)

type submitTx struct {
	Sender    string `json:"sender" validate:"required"`
	Recipient string `json:"recipient" validate:"required,account"`
	Amount    uint64 `json:"amount" validate:"required"`
	TimeStamp uint64 `json:"timestamp" validate:"required"`
	Signature string `json:"signature"`
}

func (stx submitTx) toSignedTx() database.SignedTx {
	return database.SignedTx{
		Tx: database.Tx{
			Sender:    database.AccountID(stx.Sender),
			Recipient: database.AccountID(stx.Recipient),
			Amount:    stx.Amount,
			TimeStamp: stx.TimeStamp,
		},
		Signature: stx.Signature,
	}
}

type mineRequest struct {
	Miner string `json:"miner" validate:"omitempty,account"`
}

type registerPeer struct {
	Address string `json:"address" validate:"required,peer"`
}

// =============================================================================

type tx struct {
	ID            string             `json:"id"`
	Sender        database.AccountID `json:"sender"`
	SenderName    string             `json:"sender_name"`
	Recipient     database.AccountID `json:"recipient"`
	RecipientName string             `json:"recipient_name"`
	Amount        uint64             `json:"amount"`
	TimeStamp     uint64             `json:"timestamp"`
	Signature     string             `json:"signature,omitempty"`
}

func toTx(ns *nameservice.NameService, tran database.SignedTx) tx {
	return tx{
		ID:            tran.ID(),
		Sender:        tran.Sender,
		SenderName:    ns.Lookup(tran.Sender),
		Recipient:     tran.Recipient,
		RecipientName: ns.Lookup(tran.Recipient),
		Amount:        tran.Amount,
		TimeStamp:     tran.TimeStamp,
		Signature:     tran.Signature,
	}
}

func toTxs(ns *nameservice.NameService, trans []database.SignedTx) []tx {
	txs := make([]tx, len(trans))
	for i, tran := range trans {
		txs[i] = toTx(ns, tran)
	}
	return txs
}

type balance struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance int64              `json:"balance"`
}

type balances struct {
	LatestBlock string    `json:"latest_block"`
	Uncommitted int       `json:"uncommitted"`
	Balances    []balance `json:"balances"`
}

type health struct {
	Status      string `json:"status"`
	Length      int    `json:"length"`
	LatestBlock string `json:"latest_block"`
	Pending     int    `json:"pending"`
	Peers       int    `json:"peers"`
}

type validity struct {
	Valid bool    `json:"valid"`
	Index *uint64 `json:"index,omitempty"`
	Rule  string  `json:"rule,omitempty"`
	Error string  `json:"error,omitempty"`
}
