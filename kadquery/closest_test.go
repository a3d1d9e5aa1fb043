package kadquery

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/test"
	"github.com/stretchr/testify/require"

	"github.com/libp2p/go-kad-core/kadkey"
)

func randPeers(t *testing.T, n int) []peer.ID {
	t.Helper()
	out := make([]peer.ID, n)
	for i := range out {
		p, err := test.RandPeerID()
		require.NoError(t, err)
		out[i] = p
	}
	return out
}

func TestClosestPeersIterFinishesWithNoKnownPeers(t *testing.T) {
	target := kadkey.FromBytes([]byte("target"))
	it := NewClosestPeersIter(target, nil, ClosestPeersParams{Alpha: 3, K: 20, PeerTimeout: time.Second})

	_, ok, state := it.Next(time.Unix(0, 0))
	require.False(t, ok)
	require.Equal(t, Finished, state)
}

func TestClosestPeersIterDispatchesUpToAlpha(t *testing.T) {
	target := kadkey.FromBytes([]byte("target"))
	seed := randPeers(t, 5)

	it := NewClosestPeersIter(target, seed, ClosestPeersParams{Alpha: 2, K: 20, PeerTimeout: time.Second})

	now := time.Unix(0, 0)
	dispatched := 0
	for i := 0; i < 3; i++ {
		_, ok, state := it.Next(now)
		if ok {
			dispatched++
		}
		if state == Stalled {
			break
		}
	}
	require.Equal(t, 2, dispatched, "should stall after Alpha in-flight requests")
}

func TestClosestPeersIterFinishesOnBetaSuccesses(t *testing.T) {
	target := kadkey.FromBytes([]byte("target"))
	seed := randPeers(t, 3)

	it := NewClosestPeersIter(target, seed, ClosestPeersParams{Alpha: 3, K: 3, Beta: 1, PeerTimeout: time.Second})
	now := time.Unix(0, 0)

	p, ok, _ := it.Next(now)
	require.True(t, ok)
	it.OnSuccess(p, nil)

	_, _, state := it.Next(now)
	require.Equal(t, Finished, state)
}

func TestClosestPeersIterPeerTimeoutMarksFailed(t *testing.T) {
	target := kadkey.FromBytes([]byte("target"))
	seed := randPeers(t, 1)

	it := NewClosestPeersIter(target, seed, ClosestPeersParams{Alpha: 1, K: 1, PeerTimeout: time.Second})
	now := time.Unix(0, 0)

	got, ok, _ := it.Next(now)
	require.True(t, ok)
	require.Equal(t, seed[0], got)

	later := now.Add(2 * time.Second)
	_, ok, state := it.Next(later)
	require.False(t, ok)
	require.Equal(t, Finished, state, "no candidates left once the sole peer times out")
}

func TestClosestPeersIterFinishForcesTermination(t *testing.T) {
	target := kadkey.FromBytes([]byte("target"))
	seed := randPeers(t, 1)
	it := NewClosestPeersIter(target, seed, ClosestPeersParams{Alpha: 1, K: 1, PeerTimeout: time.Second})

	it.Finish()
	_, ok, state := it.Next(time.Unix(0, 0))
	require.False(t, ok)
	require.Equal(t, Finished, state)
}

func TestClosestPeersIterResultSortedByDistance(t *testing.T) {
	target := kadkey.FromBytes([]byte("target"))
	seed := randPeers(t, 4)
	it := NewClosestPeersIter(target, seed, ClosestPeersParams{Alpha: 4, K: 4, PeerTimeout: time.Second})

	now := time.Unix(0, 0)
	for {
		p, ok, state := it.Next(now)
		if ok {
			it.OnSuccess(p, nil)
			continue
		}
		if state == Finished {
			break
		}
	}

	result := it.Result()
	require.Len(t, result, 4)
	expected := kadkey.SortClosestIDs(seed, target, 4)
	require.Equal(t, expected, result)
}
