package state

import (
	"github.com/ledgerlab/blockchain/foundation/blockchain/peer"
)

// AddKnownPeer provides the ability to add a new peer. Our own host is never
// added. Reports if the peer was new.
func (s *State) AddKnownPeer(pr peer.Peer) bool {
	if pr.Match(s.host) {
		return false
	}

	added := s.knownPeers.Add(pr)
	if added {
		s.evHandler("state: AddKnownPeer: added peer[%s]", pr.Host)
	}

	return added
}

// RemoveKnownPeer removes the peer from the known peer list.
func (s *State) RemoveKnownPeer(pr peer.Peer) bool {
	removed := s.knownPeers.Remove(pr)
	if removed {
		s.evHandler("state: RemoveKnownPeer: removed peer[%s]", pr.Host)
	}

	return removed
}
