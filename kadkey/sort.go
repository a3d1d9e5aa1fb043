package kadkey

import (
	"bytes"
	"sort"

	"github.com/libp2p/go-libp2p/core/peer"
)

// PeerDistance pairs a peer with its precomputed distance to some target,
// the unit the closest-peers sorters and iterators operate on.
type PeerDistance struct {
	Peer     peer.ID
	Key      Key
	Distance Distance
}

// SortClosest sorts peers by ascending XOR distance to target, breaking
// ties by the peer's own lexicographic byte order so that iteration order
// is stable and reproducible across runs (spec §4.1).
func SortClosest(peers []peer.ID, target Key) []PeerDistance {
	pds := make([]PeerDistance, len(peers))
	for i, p := range peers {
		k := FromPeerID(p)
		pds[i] = PeerDistance{Peer: p, Key: k, Distance: Xor(k, target)}
	}
	sort.Slice(pds, func(i, j int) bool {
		if pds[i].Distance == pds[j].Distance {
			return bytes.Compare([]byte(pds[i].Peer), []byte(pds[j].Peer)) < 0
		}
		return pds[i].Distance.Less(pds[j].Distance)
	})
	return pds
}

// SortClosestIDs is a convenience wrapper returning just the ordered peer
// IDs, capped to at most count entries.
func SortClosestIDs(peers []peer.ID, target Key, count int) []peer.ID {
	pds := SortClosest(peers, target)
	if count >= 0 && len(pds) > count {
		pds = pds[:count]
	}
	out := make([]peer.ID, len(pds))
	for i, pd := range pds {
		out[i] = pd.Peer
	}
	return out
}
