package kadquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedPeersIterRunsAllToCompletion(t *testing.T) {
	seed := randPeers(t, 4)
	it := NewFixedPeersIter(seed, FixedPeersParams{Alpha: 2, PeerTimeout: time.Second})

	now := time.Unix(0, 0)
	contacted := map[string]bool{}
	for {
		p, ok, state := it.Next(now)
		if ok {
			contacted[string(p)] = true
			it.OnSuccess(p, nil)
			continue
		}
		if state == Finished {
			break
		}
	}
	require.Len(t, contacted, 4)
	succ, fail := it.Stats()
	require.Equal(t, 4, succ)
	require.Equal(t, 0, fail)
}

func TestFixedPeersIterTimeoutCountsAsFailure(t *testing.T) {
	seed := randPeers(t, 1)
	it := NewFixedPeersIter(seed, FixedPeersParams{Alpha: 1, PeerTimeout: time.Second})

	now := time.Unix(0, 0)
	_, ok, _ := it.Next(now)
	require.True(t, ok)

	_, ok, state := it.Next(now.Add(2 * time.Second))
	require.False(t, ok)
	require.Equal(t, Finished, state)

	succ, fail := it.Stats()
	require.Equal(t, 0, succ)
	require.Equal(t, 1, fail)
}
