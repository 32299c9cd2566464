// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ledgerlab/blockchain/business/sys/metrics"
	"github.com/ledgerlab/blockchain/business/sys/validate"
	"github.com/ledgerlab/blockchain/business/web/errs"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/blockchain/peer"
	"github.com/ledgerlab/blockchain/foundation/blockchain/state"
	"github.com/ledgerlab/blockchain/foundation/events"
	"github.com/ledgerlab/blockchain/foundation/nameservice"
	"github.com/ledgerlab/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the blockchain.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting for events from the blockchain or ticker.
	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Health returns the status of the node and its chain.
func (h Handlers) Health(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status := h.State.RetrieveStatus()
	pending := h.State.QueryMempoolLength()

	metrics.SetLedger(status.Length, pending)

	hlt := health{
		Status:      h.State.Status(),
		Length:      status.Length,
		LatestBlock: status.LatestBlockHash,
		Pending:     pending,
		Peers:       len(status.KnownPeers),
	}

	return web.Respond(ctx, w, hlt, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Chain returns the full chain from the genesis block.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	chain := h.State.RetrieveChain()

	resp := state.ChainResponse{
		Chain:  chain,
		Length: len(chain),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ValidateChain validates the node's chain and reports the first failure.
func (h Handlers) ValidateChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	err := h.State.QueryValidateChain()
	if err == nil {
		return web.Respond(ctx, w, validity{Valid: true}, http.StatusOK)
	}

	ve := database.GetValidationError(err)
	if ve == nil {
		return err
	}

	index := ve.Index
	resp := validity{
		Index: &index,
		Rule:  ve.Rule,
		Error: ve.Err.Error(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// LatestBlock returns the latest block in the chain.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveLatestBlock(), http.StatusOK)
}

// BlockByIndex returns the block at the specified index.
func (h Handlers) BlockByIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid index: %w", err), http.StatusBadRequest)
	}

	latest := h.State.RetrieveLatestBlock().Index
	if index > latest {
		return errs.NewTrusted(fmt.Errorf("block[%d]: %w", index, database.ErrNotFound), http.StatusNotFound)
	}

	blocks, err := h.State.QueryBlocksByNumber(index, index)
	if err != nil {
		return errs.FromLedger(err)
	}

	return web.Respond(ctx, w, blocks[0], http.StatusOK)
}

// BlocksByAccount returns the blocks holding a transaction sent or received
// by the specified account. The account can be given by address or by name.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account, err := h.resolve(web.Param(r, "account"))
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, h.State.QueryBlocksByAccount(account), http.StatusOK)
}

// SubmitWalletTransaction adds new user transactions to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req submitTx
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	signedTx := req.toSignedTx()

	h.Log.Infow("add user tran", "traceid", v.TraceID, "tx", signedTx)
	if err := h.State.UpsertWalletTransaction(signedTx); err != nil {
		return errs.FromLedger(err)
	}

	resp := struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}{
		Status: "transaction added to mempool",
		ID:     signedTx.ID(),
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := toTxs(h.NS, h.State.RetrieveMempool())
	return web.Respond(ctx, w, txs, http.StatusOK)
}

// Mine mines the pending transactions into a new block and proposes the
// block to the known peers. The reward goes to the specified miner or to
// the node's miner.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req mineRequest
	if r.ContentLength != 0 {
		if err := web.Decode(r, &req); err != nil {
			return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
		}

		if err := validate.Check(req); err != nil {
			return err
		}
	}

	miner := h.State.RetrieveMinerAccountID()
	if req.Miner != "" {
		miner = database.AccountID(req.Miner)
	}

	block, err := h.State.MinePending(ctx, miner)
	if err != nil {
		return errs.FromLedger(err)
	}

	if err := h.State.NetSendBlockToPeers(ctx, block); err != nil {
		h.Log.Infow("mine", "traceid", web.GetTraceID(ctx), "WARNING", err)
	}

	return web.Respond(ctx, w, block, http.StatusCreated)
}

// Balances returns the current balances for all accounts.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blkBalances := h.State.QueryBalances()

	bals := make([]balance, len(blkBalances))
	for i, bal := range blkBalances {
		bals[i] = balance{
			Account: bal.AccountID,
			Name:    h.NS.Lookup(bal.AccountID),
			Balance: bal.Balance,
		}
	}

	sort.Slice(bals, func(i, j int) bool {
		return bals[i].Account < bals[j].Account
	})

	resp := balances{
		LatestBlock: h.State.RetrieveLatestBlock().Hash,
		Uncommitted: h.State.QueryMempoolLength(),
		Balances:    bals,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balance returns the current balance for the specified account. The
// account can be given by address or by name.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account, err := h.resolve(web.Param(r, "account"))
	if err != nil {
		return err
	}

	bal := balance{
		Account: account,
		Name:    h.NS.Lookup(account),
		Balance: h.State.QueryBalance(account),
	}

	return web.Respond(ctx, w, bal, http.StatusOK)
}

// BalanceHistory returns every confirmed change to the account's balance.
func (h Handlers) BalanceHistory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account, err := h.resolve(web.Param(r, "account"))
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, h.State.QueryBalanceHistory(account), http.StatusOK)
}

// Peers returns the known peers.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveKnownPeers(), http.StatusOK)
}

// PeersHealth reports which of the known peers are reachable.
func (h Handlers) PeersHealth(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.NetCheckPeers(ctx), http.StatusOK)
}

// RegisterPeer adds a peer to the known peers.
func (h Handlers) RegisterPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req registerPeer
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	pr, err := peer.Parse(req.Address)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Host  string `json:"host"`
		Added bool   `json:"added"`
	}{
		Host:  pr.Host,
		Added: h.State.AddKnownPeer(pr),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RemovePeer removes a peer from the known peers.
func (h Handlers) RemovePeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pr, err := peer.Parse(web.Param(r, "host"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if !h.State.RemoveKnownPeer(pr) {
		return errs.NewTrusted(fmt.Errorf("peer %s is not known", pr.Host), http.StatusNotFound)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Resolve runs the longest valid chain rule against the known peers now.
func (h Handlers) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	replaced, err := h.State.Reconcile(ctx)
	if err != nil {
		return errs.FromLedger(err)
	}

	resp := struct {
		Replaced bool `json:"replaced"`
		Length   int  `json:"length"`
	}{
		Replaced: replaced,
		Length:   h.State.RetrieveStatus().Length,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func (h Handlers) resolve(nameOrAccount string) (database.AccountID, error) {
	account, err := h.NS.Resolve(nameOrAccount)
	if err != nil {
		return "", errs.NewTrusted(errors.New("unknown account or name"), http.StatusBadRequest)
	}
	return account, nil
}
