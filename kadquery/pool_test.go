package kadquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/libp2p/go-kad-core/kadkey"
)

func TestPoolEmitsExactlyOneTerminalEventPerQuery(t *testing.T) {
	target := kadkey.FromBytes([]byte("target"))
	seed := randPeers(t, 1)
	it := NewClosestPeersIter(target, seed, ClosestPeersParams{Alpha: 1, K: 1, Beta: 1, PeerTimeout: time.Second})

	pool := NewPool()
	now := time.Unix(0, 0)
	id := pool.Add(now, "info", it)

	dispatches, progress := pool.Poll(now)
	require.Len(t, dispatches, 1)
	require.Empty(t, progress)

	_, ok := pool.OnSuccess(id, dispatches[0].Peer, nil)
	require.True(t, ok)

	terminals := 0
	for i := 0; i < 3; i++ {
		_, progress := pool.Poll(now)
		for _, ev := range progress {
			if ev.Step.Last {
				terminals++
				require.Equal(t, id, ev.ID)
			}
		}
	}
	require.Equal(t, 1, terminals)
	require.Equal(t, 0, pool.Len())
}

func TestPoolDiscardsMismatchedResponses(t *testing.T) {
	pool := NewPool()
	_, ok := pool.OnSuccess(QueryID(999), "", nil)
	require.False(t, ok)
}

func TestPoolStepCountMonotonic(t *testing.T) {
	target := kadkey.FromBytes([]byte("target"))
	seed := randPeers(t, 3)
	it := NewClosestPeersIter(target, seed, ClosestPeersParams{Alpha: 3, K: 3, Beta: 3, PeerTimeout: time.Second})

	pool := NewPool()
	now := time.Unix(0, 0)
	id := pool.Add(now, nil, it)

	dispatches, _ := pool.Poll(now)
	last := -1
	for _, d := range dispatches {
		ev, ok := pool.OnSuccess(id, d.Peer, nil)
		require.True(t, ok)
		require.Greater(t, ev.Step.Count, last)
		last = ev.Step.Count
	}
}
