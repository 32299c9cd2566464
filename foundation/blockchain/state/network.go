package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/blockchain/peer"
)

const baseURL = "http://%s/v1/node"

// Fetcher interface represents the behavior required to retrieve the chain
// held by a peer. The call must honor the context deadline.
type Fetcher interface {
	FetchChain(ctx context.Context, pr peer.Peer) ([]database.Block, error)
}

// ChainResponse is the document returned by a node for its full chain.
type ChainResponse struct {
	Chain  []database.Block `json:"chain"`
	Length int              `json:"length"`
}

// HTTPFetcher retrieves a peer's chain from its node api.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher constructs a fetcher using the default http client.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: http.DefaultClient,
	}
}

// FetchChain implements the Fetcher interface.
func (f *HTTPFetcher) FetchChain(ctx context.Context, pr peer.Peer) ([]database.Block, error) {
	url := fmt.Sprintf("%s/chain", fmt.Sprintf(baseURL, pr.Host))

	var resp ChainResponse
	if err := send(ctx, f.client, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Length != len(resp.Chain) {
		return nil, fmt.Errorf("chain length mismatch, got %d, exp %d", len(resp.Chain), resp.Length)
	}

	return resp.Chain, nil
}

// =============================================================================

// NetSendBlockToPeers takes the new mined block and sends it to all know peers.
func (s *State) NetSendBlockToPeers(ctx context.Context, block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	var errs []error
	for _, pr := range s.RetrieveKnownPeers() {
		url := fmt.Sprintf("%s/block/propose", fmt.Sprintf(baseURL, pr.Host))

		if err := s.netSend(ctx, http.MethodPost, url, block, nil); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pr.Host, err))
			continue
		}

		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]", pr.Host)
	}

	return errors.Join(errs...)
}

// NetSendTxToPeers shares a new transaction with the known peers.
func (s *State) NetSendTxToPeers(ctx context.Context, tx database.SignedTx) {
	s.evHandler("state: NetSendTxToPeers: started")
	defer s.evHandler("state: NetSendTxToPeers: completed")

	for _, pr := range s.RetrieveKnownPeers() {
		url := fmt.Sprintf("%s/tx/submit", fmt.Sprintf(baseURL, pr.Host))
		if err := s.netSend(ctx, http.MethodPost, url, tx, nil); err != nil {
			s.evHandler("state: NetSendTxToPeers: WARNING: %s: %s", pr.Host, err)
		}
	}
}

// NetRequestPeerStatus looks for new nodes on the blockchain by asking
// known nodes for their peer list.
func (s *State) NetRequestPeerStatus(ctx context.Context, pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.PeerStatus
	if err := s.netSend(ctx, http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: latest-index[%d]: peer-list[%v]", pr.Host, ps.LatestBlockIndex, ps.KnownPeers)

	return ps, nil
}

// NetRequestAddPeer lets the peer know this node is available.
func (s *State) NetRequestAddPeer(ctx context.Context, pr peer.Peer) error {
	url := fmt.Sprintf("%s/peers", fmt.Sprintf(baseURL, pr.Host))
	return s.netSend(ctx, http.MethodPost, url, peer.New(s.host), nil)
}

// PeerHealth represents the reachability of a known peer.
type PeerHealth struct {
	Host      string `json:"host"`
	Reachable bool   `json:"reachable"`
	Length    int    `json:"length,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NetCheckPeers asks every known peer for its status and reports which
// peers are reachable.
func (s *State) NetCheckPeers(ctx context.Context) []PeerHealth {
	peers := s.RetrieveKnownPeers()
	health := make([]PeerHealth, len(peers))

	for i, pr := range peers {
		health[i] = PeerHealth{Host: pr.Host}

		ps, err := s.NetRequestPeerStatus(ctx, pr)
		if err != nil {
			health[i].Error = err.Error()
			continue
		}

		health[i].Reachable = true
		health[i].Length = ps.Length
	}

	return health
}

// =============================================================================

// netSend applies the peer timeout to a single request.
func (s *State) netSend(ctx context.Context, method string, url string, dataSend any, dataRecv any) error {
	ctx, cancel := context.WithTimeout(ctx, s.peerTimeout)
	defer cancel()

	return send(ctx, http.DefaultClient, method, url, dataSend, dataRecv)
}

// send is a helper function to send an HTTP request to a node.
func send(ctx context.Context, client *http.Client, method string, url string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err != nil {
			return err
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
