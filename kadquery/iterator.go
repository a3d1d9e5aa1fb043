// Package kadquery implements the per-query peer iterator state machines
// and the query pool that drives them (spec §4.3, §4.4).
package kadquery

import (
	"time"

	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/libp2p/go-kad-core/kadkey"
)

var log = logging.Logger("kadquery")

// PeerState is the per-candidate state of a closest-peers iterator.
type PeerState int

const (
	NotContacted PeerState = iota
	Waiting
	Succeeded
	Failed
)

func (s PeerState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "not-contacted"
	}
}

// IterState is the overall state of a peer iterator.
type IterState int

const (
	Iterating IterState = iota
	Stalled
	Finished
)

// Clock abstracts time so that per-peer and per-query deadlines are
// deterministic under test (spec §9 Design Notes).
type Clock interface {
	Now() time.Time
}

// Iterator is the shared method set of every peer iterator variant (spec
// §9: ClosestPeers, FixedPeers, ClosestDisjointPeers).
type Iterator interface {
	// Next returns the next peer to contact, if any is ready, and the
	// iterator's state after the decision.
	Next(now time.Time) (p peer.ID, ok bool, state IterState)
	// OnSuccess records a response from p carrying closerPeers discovered
	// via it.
	OnSuccess(p peer.ID, closerPeers []peer.ID)
	// OnFailure records that a request to p failed or timed out.
	OnFailure(p peer.ID)
	// Finish forces the iterator to report Finished on its next Next call.
	Finish()
	// State reports the iterator's current state without advancing it.
	State() IterState
	// Result returns the iterator's current result set.
	Result() []peer.ID
}

type candidate struct {
	peer     peer.ID
	dist     kadkey.Distance
	state    PeerState
	deadline time.Time
}
