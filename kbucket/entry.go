package kbucket

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-kad-core/kadkey"
)

// Status records whether a bucket entry currently has a live connection.
type Status int

const (
	// Disconnected entries are eviction candidates for the replacement
	// policy; Connected entries are never evicted to make room for a
	// pending candidate.
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// maxAddresses bounds how many multiaddrs a single entry tracks, the
// "bounded list" of spec §3.
const maxAddresses = 16

// entry is a single k-bucket slot: a peer, its known addresses, its
// liveness status, and the last time it was touched (used as the LRU
// ordering key for replacement).
type entry struct {
	key      kadkey.Key
	peer     peer.ID
	addrs    []ma.Multiaddr
	status   Status
	lastSeen time.Time
}

func newEntry(p peer.ID, status Status, now time.Time) *entry {
	return &entry{
		key:      kadkey.FromPeerID(p),
		peer:     p,
		status:   status,
		lastSeen: now,
	}
}

func (e *entry) setAddrs(addrs []ma.Multiaddr) {
	if len(addrs) > maxAddresses {
		addrs = addrs[:maxAddresses]
	}
	e.addrs = addrs
}

// pendingEntry is a candidate awaiting a deadline before it can replace a
// disconnected bucket member (spec §4.1).
type pendingEntry struct {
	entry    *entry
	deadline time.Time
}
