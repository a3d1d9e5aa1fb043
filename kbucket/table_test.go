package kbucket

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/test"
	"github.com/stretchr/testify/require"

	"github.com/libp2p/go-kad-core/kadkey"
)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTable(t *testing.T, bucketSize int) (*RoutingTable, *manualClock) {
	t.Helper()
	local, err := test.RandPeerID()
	require.NoError(t, err)
	clock := &manualClock{t: time.Unix(0, 0)}
	rt, err := NewRoutingTable(local, bucketSize, WithClock(clock), WithPendingTimeout(time.Minute))
	require.NoError(t, err)
	return rt, clock
}

func TestTryAddPeerRejectsSelf(t *testing.T) {
	local, err := test.RandPeerID()
	require.NoError(t, err)
	rt, err := NewRoutingTable(local, 20)
	require.NoError(t, err)

	_, err = rt.TryAddPeer(local, nil, true)
	require.ErrorIs(t, err, ErrPeerIsSelf)
}

func TestNearestPeersContainsInsertedPeer(t *testing.T) {
	rt, _ := newTestTable(t, 20)
	p, err := test.RandPeerID()
	require.NoError(t, err)

	added, err := rt.TryAddPeer(p, nil, false)
	require.NoError(t, err)
	require.True(t, added)

	nearest := rt.NearestPeers(kadkey.FromPeerID(p), 20)
	require.Contains(t, nearest, p)
}

func TestTryAddPeerStoresUnconnectedPeerAsDisconnected(t *testing.T) {
	rt, clock := newTestTable(t, 1)
	// Random peer IDs cannot be steered into a chosen bucket, so this checks
	// the precondition of the replacement policy through the table's own
	// bucket selection: a peer added with connected=false is stored as a
	// Disconnected entry.
	p1, err := test.RandPeerID()
	require.NoError(t, err)
	added, err := rt.TryAddPeer(p1, nil, false)
	require.NoError(t, err)
	require.True(t, added)

	idx, _ := rt.bucketIndex(p1)
	b := rt.buckets[idx]
	require.Equal(t, 1, b.len())

	clock.advance(time.Second)
	e := b.entries[0]
	require.Equal(t, Disconnected, e.status)
}

func TestPendingCandidateDroppedWithoutDisconnectedSlot(t *testing.T) {
	b := newBucket(1)
	now := time.Unix(0, 0)
	b.insert(&entry{peer: "", status: Connected, lastSeen: now})
	b.pending = &pendingEntry{entry: &entry{peer: "pending"}, deadline: now.Add(time.Minute)}

	evicted, promoted := b.checkPending(now.Add(time.Minute))
	require.False(t, promoted)
	require.Equal(t, "", string(evicted))
	require.Nil(t, b.pending)
}

func TestPendingCandidatePromotedWhenSlotFrees(t *testing.T) {
	b := newBucket(1)
	now := time.Unix(0, 0)
	b.insert(&entry{peer: "old", status: Disconnected, lastSeen: now})
	b.pending = &pendingEntry{entry: &entry{peer: "new"}, deadline: now.Add(time.Minute)}

	evicted, promoted := b.checkPending(now.Add(time.Minute))
	require.True(t, promoted)
	require.Equal(t, "old", string(evicted))
	require.Equal(t, "new", string(b.entries[0].peer))
}

func TestRemovePeer(t *testing.T) {
	rt, _ := newTestTable(t, 20)
	p, err := test.RandPeerID()
	require.NoError(t, err)
	_, err = rt.TryAddPeer(p, nil, false)
	require.NoError(t, err)
	require.Equal(t, 1, rt.Size())

	rt.RemovePeer(p)
	require.Equal(t, 0, rt.Size())
}
