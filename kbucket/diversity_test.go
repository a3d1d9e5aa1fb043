package kbucket

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/test"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

func addr(t *testing.T, s string) ma.Multiaddr {
	t.Helper()
	a, err := ma.NewMultiaddr(s)
	require.NoError(t, err)
	return a
}

func TestDiversityFilterCapsPerGroup(t *testing.T) {
	f := NewDiversityFilter(1)
	p1, _ := test.RandPeerID()
	p2, _ := test.RandPeerID()

	require.True(t, f.Allow(p1, []ma.Multiaddr{addr(t, "/ip4/8.8.8.1/tcp/4001")}))
	require.False(t, f.Allow(p2, []ma.Multiaddr{addr(t, "/ip4/8.8.8.2/tcp/4001")}))

	f.Remove(p1)
	require.True(t, f.Allow(p2, []ma.Multiaddr{addr(t, "/ip4/8.8.8.2/tcp/4001")}))
}

func TestDiversityFilterIgnoresPrivateRanges(t *testing.T) {
	f := NewDiversityFilter(1)
	p1, _ := test.RandPeerID()
	p2, _ := test.RandPeerID()

	require.True(t, f.Allow(p1, []ma.Multiaddr{addr(t, "/ip4/127.0.0.1/tcp/4001")}))
	require.True(t, f.Allow(p2, []ma.Multiaddr{addr(t, "/ip4/127.0.0.1/tcp/4002")}))
}
