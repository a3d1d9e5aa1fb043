package kadquery

import (
	"sort"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/libp2p/go-kad-core/kadkey"
)

// ClosestPeersParams configures a ClosestPeersIter (spec §4.3).
type ClosestPeersParams struct {
	Alpha       int           // parallelism
	K           int           // result size / frontier width
	Beta        int           // successes required to finish; defaults to K
	PeerTimeout time.Duration // per in-flight request
}

// ClosestPeersIter converges on the K peers closest to Target by iterated
// recursive queries (spec §4.3).
type ClosestPeersIter struct {
	target kadkey.Key
	params ClosestPeersParams

	candidates []*candidate // sorted ascending by distance
	seen       map[peer.ID]struct{}

	finished bool
	forced   bool // Finish() was called
	stalled  bool
}

var _ Iterator = (*ClosestPeersIter)(nil)

// NewClosestPeersIter seeds the iterator with the given known peers (the
// table's nearest neighbours plus any user-supplied bootstrap peers).
func NewClosestPeersIter(target kadkey.Key, seed []peer.ID, params ClosestPeersParams) *ClosestPeersIter {
	if params.Beta == 0 {
		params.Beta = params.K
	}
	it := &ClosestPeersIter{
		target: target,
		params: params,
		seen:   make(map[peer.ID]struct{}),
	}
	for _, p := range seed {
		it.addCandidate(p)
	}
	return it
}

func (it *ClosestPeersIter) addCandidate(p peer.ID) {
	if _, ok := it.seen[p]; ok {
		return
	}
	it.seen[p] = struct{}{}
	c := &candidate{peer: p, dist: kadkey.Xor(it.target, kadkey.FromPeerID(p)), state: NotContacted}
	it.candidates = append(it.candidates, c)
	sort.Slice(it.candidates, func(i, j int) bool {
		return it.candidates[i].dist.Less(it.candidates[j].dist)
	})
}

func (it *ClosestPeersIter) frontier() []*candidate {
	n := it.params.K
	if n > len(it.candidates) {
		n = len(it.candidates)
	}
	return it.candidates[:n]
}

// Next implements the per-tick algorithm of spec §4.3.
func (it *ClosestPeersIter) Next(now time.Time) (peer.ID, bool, IterState) {
	if it.finished {
		return "", false, Finished
	}
	if it.forced {
		it.finished = true
		return "", false, Finished
	}

	// 1. Purge elapsed waits.
	for _, c := range it.candidates {
		if c.state == Waiting && now.After(c.deadline) {
			c.state = Failed
		}
	}

	// 2-3. Frontier counts.
	s := it.frontier()
	inFlight := 0
	successes := 0
	for _, c := range s {
		switch c.state {
		case Waiting:
			inFlight++
		case Succeeded:
			successes++
		}
	}

	// 4. Finished?
	if successes >= it.params.Beta && inFlight == 0 {
		it.finished = true
		return "", false, Finished
	}

	// 5. Stalled?
	hasNotContacted := false
	var next *candidate
	for _, c := range s {
		if c.state == NotContacted {
			hasNotContacted = true
			next = c
			break
		}
	}
	if inFlight >= it.params.Alpha || !hasNotContacted {
		if inFlight == 0 {
			it.finished = true
			return "", false, Finished
		}
		it.stalled = true
		return "", false, Stalled
	}
	it.stalled = false

	// 6. Dispatch the closest not-contacted candidate.
	next.state = Waiting
	next.deadline = now.Add(it.params.PeerTimeout)
	return next.peer, true, Iterating
}

// OnSuccess marks p Succeeded and folds in newly discovered closer peers.
func (it *ClosestPeersIter) OnSuccess(p peer.ID, closerPeers []peer.ID) {
	for _, c := range it.candidates {
		if c.peer == p {
			c.state = Succeeded
			break
		}
	}
	for _, cp := range closerPeers {
		it.addCandidate(cp)
	}
}

// OnFailure marks p Failed; no closer peers are admitted.
func (it *ClosestPeersIter) OnFailure(p peer.ID) {
	for _, c := range it.candidates {
		if c.peer == p {
			c.state = Failed
			break
		}
	}
}

// Finish forces termination on the iterator's next Next call.
func (it *ClosestPeersIter) Finish() {
	it.forced = true
}

// State reports Finished/Stalled/Iterating without advancing the iterator.
func (it *ClosestPeersIter) State() IterState {
	if it.finished || it.forced {
		return Finished
	}
	if it.stalled {
		return Stalled
	}
	return Iterating
}

// Result returns the up-to-K Succeeded peers closest to the target, in
// ascending XOR order.
func (it *ClosestPeersIter) Result() []peer.ID {
	out := make([]peer.ID, 0, it.params.K)
	for _, c := range it.candidates {
		if c.state == Succeeded {
			out = append(out, c.peer)
			if len(out) == it.params.K {
				break
			}
		}
	}
	return out
}
