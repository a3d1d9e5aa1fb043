package kadquery

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// FixedPeersParams configures a FixedPeersIter.
type FixedPeersParams struct {
	Alpha       int
	PeerTimeout time.Duration
}

// FixedPeersIter contacts a fixed, pre-determined set of peers in parallel
// up to Alpha, used for the second phase of AddProvider and PutRecord once
// the K closest peers are already known (spec §4.3).
type FixedPeersIter struct {
	params   FixedPeersParams
	peers    []*candidate // distance is unused, order is the caller's order
	finished bool
	forced   bool
}

var _ Iterator = (*FixedPeersIter)(nil)

// NewFixedPeersIter targets exactly the given peers, in the given order.
func NewFixedPeersIter(peers []peer.ID, params FixedPeersParams) *FixedPeersIter {
	it := &FixedPeersIter{params: params}
	for _, p := range peers {
		it.peers = append(it.peers, &candidate{peer: p, state: NotContacted})
	}
	return it
}

func (it *FixedPeersIter) Next(now time.Time) (peer.ID, bool, IterState) {
	if it.finished {
		return "", false, Finished
	}
	if it.forced {
		it.finished = true
		return "", false, Finished
	}

	inFlight := 0
	allResolved := true
	for _, c := range it.peers {
		if c.state == Waiting && now.After(c.deadline) {
			c.state = Failed
		}
		switch c.state {
		case Waiting:
			inFlight++
			allResolved = false
		case NotContacted:
			allResolved = false
		}
	}

	if allResolved {
		it.finished = true
		return "", false, Finished
	}

	if inFlight >= it.params.Alpha {
		return "", false, Stalled
	}

	for _, c := range it.peers {
		if c.state == NotContacted {
			c.state = Waiting
			c.deadline = now.Add(it.params.PeerTimeout)
			return c.peer, true, Iterating
		}
	}
	return "", false, Stalled
}

func (it *FixedPeersIter) OnSuccess(p peer.ID, _ []peer.ID) {
	for _, c := range it.peers {
		if c.peer == p {
			c.state = Succeeded
			return
		}
	}
}

func (it *FixedPeersIter) OnFailure(p peer.ID) {
	for _, c := range it.peers {
		if c.peer == p {
			c.state = Failed
			return
		}
	}
}

func (it *FixedPeersIter) Finish() { it.forced = true }

func (it *FixedPeersIter) State() IterState {
	if it.finished || it.forced {
		return Finished
	}
	return Iterating
}

func (it *FixedPeersIter) Result() []peer.ID {
	out := make([]peer.ID, 0, len(it.peers))
	for _, c := range it.peers {
		if c.state == Succeeded {
			out = append(out, c.peer)
		}
	}
	return out
}

// Stats returns the number of peers that succeeded and failed, used to
// evaluate quorum for PutRecord/AddProvider (spec §4.5).
func (it *FixedPeersIter) Stats() (successes, failures int) {
	for _, c := range it.peers {
		switch c.state {
		case Succeeded:
			successes++
		case Failed:
			failures++
		}
	}
	return
}
