package kadquery

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/libp2p/go-kad-core/kadkey"
)

// ClosestDisjointPeersIter explores D independent closest-peers paths,
// partitioning freshly discovered peers round-robin across the sub-
// iterators' candidate sets so each peer contributes to at most one path
// (spec §4.3 Disjoint-paths variant).
type ClosestDisjointPeersIter struct {
	target kadkey.Key
	paths  []*ClosestPeersIter

	// owner tracks which path index first claimed a peer, so a peer
	// rediscovered via a different path is never queried twice.
	owner map[peer.ID]int
	next  int // round-robin cursor for newly discovered peers

	waitingOn map[peer.ID]int // peer -> path index, for routing responses
}

var _ Iterator = (*ClosestDisjointPeersIter)(nil)

// NewClosestDisjointPeersIter creates d independent paths, seeding them
// round-robin from the shared seed set so each starts with roughly the
// same number of known candidates.
func NewClosestDisjointPeersIter(target kadkey.Key, seed []peer.ID, d int, params ClosestPeersParams) *ClosestDisjointPeersIter {
	if d < 1 {
		d = 1
	}
	it := &ClosestDisjointPeersIter{
		target:    target,
		owner:     make(map[peer.ID]int),
		waitingOn: make(map[peer.ID]int),
	}
	perPath := make([][]peer.ID, d)
	for i, p := range seed {
		idx := i % d
		perPath[idx] = append(perPath[idx], p)
		it.owner[p] = idx
	}
	for i := 0; i < d; i++ {
		it.paths = append(it.paths, NewClosestPeersIter(target, perPath[i], params))
	}
	return it
}

// Next scans paths round-robin starting after the last path that yielded a
// peer, so no single path starves the others.
func (it *ClosestDisjointPeersIter) Next(now time.Time) (peer.ID, bool, IterState) {
	allFinished := true
	anyIterating := false
	for i := 0; i < len(it.paths); i++ {
		idx := (it.next + i) % len(it.paths)
		path := it.paths[idx]
		p, ok, state := path.Next(now)
		if state != Finished {
			allFinished = false
		}
		if state == Iterating {
			anyIterating = true
		}
		if ok {
			it.waitingOn[p] = idx
			it.next = (idx + 1) % len(it.paths)
			return p, true, Iterating
		}
	}
	if allFinished {
		return "", false, Finished
	}
	if anyIterating {
		return "", false, Iterating
	}
	return "", false, Stalled
}

// OnSuccess routes the response to the path that dispatched p, and assigns
// any newly discovered peer to a path round-robin, claiming it for that
// path only (spec: "each peer contributes to at most one path").
func (it *ClosestDisjointPeersIter) OnSuccess(p peer.ID, closerPeers []peer.ID) {
	idx, ok := it.waitingOn[p]
	if !ok {
		return
	}
	delete(it.waitingOn, p)

	var fresh []peer.ID
	for _, cp := range closerPeers {
		if _, claimed := it.owner[cp]; claimed {
			continue
		}
		fresh = append(fresh, cp)
	}
	it.paths[idx].OnSuccess(p, nil)
	for _, cp := range fresh {
		target := idx
		if len(it.paths) > 1 {
			// distribute across all paths round-robin, not just the
			// responding path, to keep paths balanced.
			target = it.distributeCursor()
		}
		it.owner[cp] = target
		it.paths[target].addCandidate(cp)
	}
}

func (it *ClosestDisjointPeersIter) distributeCursor() int {
	idx := it.next
	it.next = (it.next + 1) % len(it.paths)
	return idx
}

func (it *ClosestDisjointPeersIter) OnFailure(p peer.ID) {
	idx, ok := it.waitingOn[p]
	if !ok {
		return
	}
	delete(it.waitingOn, p)
	it.paths[idx].OnFailure(p)
}

// Finish forces every sub-path to terminate on its next Next call.
func (it *ClosestDisjointPeersIter) Finish() {
	for _, p := range it.paths {
		p.Finish()
	}
}

// State is Finished only once every sub-path has finished.
func (it *ClosestDisjointPeersIter) State() IterState {
	allFinished := true
	for _, p := range it.paths {
		if p.State() != Finished {
			allFinished = false
			break
		}
	}
	if allFinished {
		return Finished
	}
	return Iterating
}

// Result merges every path's result, sorted by ascending XOR distance,
// capped to K.
func (it *ClosestDisjointPeersIter) Result() []peer.ID {
	var all []peer.ID
	for _, p := range it.paths {
		all = append(all, p.Result()...)
	}
	k := it.paths[0].params.K
	return kadkey.SortClosestIDs(all, it.target, k)
}

// Paths exposes the sub-iterators, e.g. so the pool can emit one progress
// event per path (spec §4.3: "the user receives progress events for each
// path").
func (it *ClosestDisjointPeersIter) Paths() []*ClosestPeersIter {
	return it.paths
}
