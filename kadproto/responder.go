package kadproto

import (
	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

var log = logging.Logger("kadproto")

// CloserPeers builds the closer_peers field shared by every response type,
// given the responder's own closest-peers lookup and an address lookup
// keyed by peer ID. It excludes the requester and the responder itself
// (spec §4.7: "filtered to omit the requester and self").
func CloserPeers(self, requester peer.ID, nearest []peer.ID, addrsOf func(peer.ID) []ma.Multiaddr) []PeerInfo {
	out := make([]PeerInfo, 0, len(nearest))
	for _, p := range nearest {
		if p == self || p == requester {
			continue
		}
		out = append(out, PeerInfo{ID: p, Addrs: addrsOf(p)})
	}
	log.Debugf("closer_peers for %s: %d candidates -> %d after excluding self/requester", requester, len(nearest), len(out))
	return out
}
