package kad

import (
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-kad-core/kbucket"
)

// OnConnectionEstablished records that a link to p came up, promoting an
// existing bucket entry to Connected and refreshing its addresses (spec
// §4.7 on_swarm_event). It never admits a new peer: insertion happens in
// OnProtocolConfirmed, once the remote is known to speak the protocol.
func (b *Behaviour) OnConnectionEstablished(p peer.ID, addrs []ma.Multiaddr) {
	if len(addrs) > 0 {
		b.rt.UpdateAddrs(p, addrs)
	}
	b.rt.UpdateStatus(p, kbucket.Connected)
}

// OnConnectionClosed demotes p to Disconnected (spec §4.7).
func (b *Behaviour) OnConnectionClosed(p peer.ID) {
	b.rt.UpdateStatus(p, kbucket.Disconnected)
}

// OnAddressChanged rewrites p's known addresses in place (spec §4.7).
func (b *Behaviour) OnAddressChanged(p peer.ID, addrs []ma.Multiaddr) {
	b.rt.UpdateAddrs(p, addrs)
}

// OnProtocolConfirmed admits p to the routing table (Automatic inserts) or
// surfaces a RoutablePeer event for the user to decide (Manual inserts),
// per spec §4.1/§4.7/§6.
func (b *Behaviour) OnProtocolConfirmed(p peer.ID, addrs []ma.Multiaddr) {
	if b.cfg.KBucketInserts == ManualInserts {
		var addr ma.Multiaddr
		if len(addrs) > 0 {
			addr = addrs[0]
		}
		b.events = append(b.events, Event{Kind: EventRoutablePeer, Peer: p, Address: addr})
		return
	}
	b.InsertPeer(p, addrs, true)
}

// InsertPeer explicitly admits p to the routing table, the call a Manual-
// inserts user makes after observing a RoutablePeer event.
func (b *Behaviour) InsertPeer(p peer.ID, addrs []ma.Multiaddr, connected bool) error {
	_, err := b.rt.TryAddPeer(p, addrs, connected)
	return err
}

// HandlePendingOutboundConnection returns the addresses known for p, to
// dial before a request can be sent (spec §4.7
// handle_pending_outbound_connection).
func (b *Behaviour) HandlePendingOutboundConnection(p peer.ID) []ma.Multiaddr {
	addrs, _, _ := b.rt.Find(p)
	return addrs
}
