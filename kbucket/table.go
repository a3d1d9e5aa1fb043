// Package kbucket implements a Kademlia k-bucket routing table: 256
// buckets indexed by common-prefix length between the local key and a
// peer's key, each a capacity-k LRU with pending-node replacement.
package kbucket

import (
	"errors"
	"time"

	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-kad-core/kadkey"
)

var log = logging.Logger("kbucket")

// NumBuckets is the number of buckets in the table: one per possible
// common-prefix length of a 256-bit key.
const NumBuckets = kadkey.KeySize * 8

var (
	// ErrPeerIsSelf is returned when the local peer is passed to TryAddPeer.
	ErrPeerIsSelf = errors.New("kbucket: peer is the local peer")
	// ErrPeerRejectedNoCapacity is returned when the bucket is full and the
	// replacement policy could not make room immediately.
	ErrPeerRejectedNoCapacity = errors.New("kbucket: peer rejected, no capacity")
	// ErrPeerRejectedDiversity is returned when a configured DiversityFilter
	// rejects the candidate.
	ErrPeerRejectedDiversity = errors.New("kbucket: peer rejected by diversity filter")
)

// Clock abstracts time so tests can drive pending-candidate deadlines
// deterministically (spec §9 Design Notes).
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RoutingTable is the fixed array of k-buckets described in spec §4.1.
type RoutingTable struct {
	local      kadkey.Key
	localPeer  peer.ID
	bucketSize int
	pendingTTL time.Duration
	clock      Clock
	diversity  *DiversityFilter

	buckets [NumBuckets]*bucket

	// PeerAdded/PeerRemoved are invoked synchronously from the calling
	// goroutine whenever an entry is admitted or evicted, mirroring the
	// teacher's RoutingTable notification hooks.
	PeerAdded   func(peer.ID)
	PeerRemoved func(peer.ID)
}

// Option configures a RoutingTable at construction time.
type Option func(*RoutingTable) error

// WithClock overrides the table's time source.
func WithClock(c Clock) Option {
	return func(rt *RoutingTable) error {
		rt.clock = c
		return nil
	}
}

// WithDiversityFilter installs an optional peer-diversity gate.
func WithDiversityFilter(f *DiversityFilter) Option {
	return func(rt *RoutingTable) error {
		rt.diversity = f
		return nil
	}
}

// WithPendingTimeout overrides the default pending-replacement deadline.
func WithPendingTimeout(d time.Duration) Option {
	return func(rt *RoutingTable) error {
		rt.pendingTTL = d
		return nil
	}
}

// NewRoutingTable constructs a table for localPeer with the given
// per-bucket capacity (k).
func NewRoutingTable(localPeer peer.ID, bucketSize int, opts ...Option) (*RoutingTable, error) {
	rt := &RoutingTable{
		local:      kadkey.FromPeerID(localPeer),
		localPeer:  localPeer,
		bucketSize: bucketSize,
		pendingTTL: time.Minute,
		clock:      realClock{},

		PeerAdded:   func(peer.ID) {},
		PeerRemoved: func(peer.ID) {},
	}
	for _, o := range opts {
		if err := o(rt); err != nil {
			return nil, err
		}
	}
	for i := range rt.buckets {
		rt.buckets[i] = newBucket(bucketSize)
	}
	return rt, nil
}

func (rt *RoutingTable) bucketIndex(p peer.ID) (int, kadkey.Key) {
	k := kadkey.FromPeerID(p)
	idx := kadkey.BucketIndex(kadkey.Xor(rt.local, k))
	return idx, k
}

// TryAddPeer attempts to insert p into the table, marking it Connected if
// connected is true. It reports whether the peer was newly admitted to the
// table; if it was already present, its status/addrs are refreshed and
// false+nil is returned.
func (rt *RoutingTable) TryAddPeer(p peer.ID, addrs []ma.Multiaddr, connected bool) (bool, error) {
	idx, k := rt.bucketIndex(p)
	if idx < 0 {
		return false, ErrPeerIsSelf
	}

	now := rt.clock.Now()
	b := rt.buckets[idx]

	if existing := b.find(p); existing != nil {
		status := existing.status
		if connected {
			status = Connected
		}
		b.touch(p, status, now)
		existing.setAddrs(mergeAddrs(existing.addrs, addrs))
		return false, nil
	}

	if rt.diversity != nil && !rt.diversity.Allow(p, addrs) {
		return false, ErrPeerRejectedDiversity
	}

	status := Disconnected
	if connected {
		status = Connected
	}
	e := newEntry(p, status, now)
	e.key = k
	e.setAddrs(addrs)

	if b.len() < rt.bucketSize {
		b.insert(e)
		rt.PeerAdded(p)
		return true, nil
	}

	if b.allConnected() {
		b.pending = &pendingEntry{entry: e, deadline: now.Add(rt.pendingTTL)}
		return false, ErrPeerRejectedNoCapacity
	}

	replIdx := b.leastRecentlySeenDisconnected()
	if replIdx < 0 {
		// Shouldn't happen: not all-connected implies a disconnected entry
		// exists, but guard defensively.
		return false, ErrPeerRejectedNoCapacity
	}
	old := b.entries[replIdx]
	b.entries = append(b.entries[:replIdx], b.entries[replIdx+1:]...)
	b.insert(e)
	rt.PeerRemoved(old.peer)
	if rt.diversity != nil {
		rt.diversity.Remove(old.peer)
	}
	rt.PeerAdded(p)
	return true, nil
}

// CheckPendingReplacements walks every bucket and resolves any pending
// candidate whose deadline has elapsed. Intended to be called periodically
// by the owning behaviour (e.g. alongside the background jobs).
func (rt *RoutingTable) CheckPendingReplacements() {
	now := rt.clock.Now()
	for _, b := range rt.buckets {
		var candidate peer.ID
		if b.pending != nil {
			candidate = b.pending.entry.peer
		}
		evicted, promoted := b.checkPending(now)
		if !promoted {
			continue
		}
		if evicted != "" {
			rt.PeerRemoved(evicted)
			if rt.diversity != nil {
				rt.diversity.Remove(evicted)
			}
		}
		rt.PeerAdded(candidate)
	}
}

// UpdateStatus transitions p to Connected or Disconnected. Returns false if
// p is not in the table.
func (rt *RoutingTable) UpdateStatus(p peer.ID, status Status) bool {
	idx, _ := rt.bucketIndex(p)
	if idx < 0 {
		return false
	}
	return rt.buckets[idx].touch(p, status, rt.clock.Now())
}

// UpdateAddrs rewrites p's known addresses in place (spec §4.7, §9 Open
// Questions: same policy as the source — update in place).
func (rt *RoutingTable) UpdateAddrs(p peer.ID, addrs []ma.Multiaddr) bool {
	idx, _ := rt.bucketIndex(p)
	if idx < 0 {
		return false
	}
	e := rt.buckets[idx].find(p)
	if e == nil {
		return false
	}
	e.setAddrs(addrs)
	return true
}

// RemovePeer evicts p from the table unconditionally.
func (rt *RoutingTable) RemovePeer(p peer.ID) {
	idx, _ := rt.bucketIndex(p)
	if idx < 0 {
		return
	}
	if e := rt.buckets[idx].remove(p); e != nil {
		rt.PeerRemoved(e.peer)
		if rt.diversity != nil {
			rt.diversity.Remove(e.peer)
		}
	}
}

// Find returns the addresses and status known for p, or ok=false.
func (rt *RoutingTable) Find(p peer.ID) (addrs []ma.Multiaddr, status Status, ok bool) {
	idx, _ := rt.bucketIndex(p)
	if idx < 0 {
		return nil, 0, false
	}
	e := rt.buckets[idx].find(p)
	if e == nil {
		return nil, 0, false
	}
	return e.addrs, e.status, true
}

// NearestPeers returns up to count peers closest to key, ordered by
// ascending XOR distance with a lexicographic tie-break (spec §4.1).
func (rt *RoutingTable) NearestPeers(key kadkey.Key, count int) []peer.ID {
	all := rt.allPeersUnsorted()
	pds := kadkey.SortClosest(all, key)
	if len(pds) > count {
		pds = pds[:count]
	}
	out := make([]peer.ID, len(pds))
	for i, pd := range pds {
		out[i] = pd.Peer
	}
	return out
}

func (rt *RoutingTable) allPeersUnsorted() []peer.ID {
	var out []peer.ID
	for _, b := range rt.buckets {
		out = append(out, b.peers()...)
	}
	return out
}

// Size returns the total number of peers across all buckets.
func (rt *RoutingTable) Size() int {
	n := 0
	for _, b := range rt.buckets {
		n += b.len()
	}
	return n
}

// BucketPeers returns the peers of a single bucket by index.
func (rt *RoutingTable) BucketPeers(i int) []peer.ID {
	if i < 0 || i >= NumBuckets {
		return nil
	}
	return rt.buckets[i].peers()
}

// NonEmptyBucketIndices returns the indices of every bucket holding at
// least one peer.
func (rt *RoutingTable) NonEmptyBucketIndices() []int {
	var out []int
	for i, b := range rt.buckets {
		if b.len() > 0 {
			out = append(out, i)
		}
	}
	return out
}

// LocalKey returns the table's own key.
func (rt *RoutingTable) LocalKey() kadkey.Key { return rt.local }

func mergeAddrs(existing, incoming []ma.Multiaddr) []ma.Multiaddr {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing))
	out := make([]ma.Multiaddr, 0, len(existing)+len(incoming))
	for _, a := range existing {
		seen[a.String()] = struct{}{}
		out = append(out, a)
	}
	for _, a := range incoming {
		if _, ok := seen[a.String()]; ok {
			continue
		}
		out = append(out, a)
	}
	if len(out) > maxAddresses {
		out = out[len(out)-maxAddresses:]
	}
	return out
}
