package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerlab/blockchain/foundation/blockchain/state"
)

// miningOperations waits for a start signal and mines the mempool until
// the worker shuts down.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines the pending transactions into a new block and
// proposes it to the peers. A cancel request stops the nonce search and
// holds this G until the canceller has finished changing the chain.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	if !w.state.IsMiningReady() {
		w.evHandler("worker: runMiningOperation: MINING: pool below threshold: Txs[%d]", w.state.QueryMempoolLength())
		return
	}
	defer w.signalIfReady()

	// A cancel request left over from a previous operation has already
	// been served by the time it gets here.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()

	canceled := make(chan chan struct{}, 1)
	go w.watchCancel(ctx, cancel, canceled)

	w.mine(ctx)
	cancel()

	if wait := <-canceled; wait != nil {
		w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
		<-wait
		w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
	}
}

// watchCancel cancels the mining context when a cancel request arrives and
// hands back the request's wait channel, or nil when mining ended first.
func (w *Worker) watchCancel(ctx context.Context, cancel context.CancelFunc, canceled chan<- chan struct{}) {
	select {
	case wait := <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		cancel()
		canceled <- wait
	case <-ctx.Done():
		canceled <- nil
	}
}

// mine runs the proof of work and proposes a mined block to the peers.
func (w *Worker) mine(ctx context.Context) {
	t := time.Now()
	block, err := w.state.MineNewBlock(ctx)
	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", time.Since(t))

	switch {
	case err == nil:
	case errors.Is(err, state.ErrNoTransactions):
		w.evHandler("worker: runMiningOperation: MINING: WARNING: no transactions in mempool")
		return
	case ctx.Err() != nil:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
		return
	default:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		return
	}

	if err := w.state.NetSendBlockToPeers(w.ctx, block); err != nil {
		w.evHandler("worker: runMiningOperation: MINING: proposeBlockToPeers: WARNING %s", err)
	}
}

// signalIfReady starts another mining operation when transactions arrived
// while the last block was mined.
func (w *Worker) signalIfReady() {
	if w.isShutdown() || !w.state.IsMiningReady() {
		return
	}

	w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Txs[%d]", w.state.QueryMempoolLength())
	w.SignalStartMining()
}
