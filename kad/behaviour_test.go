package kad

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/test"
	"github.com/stretchr/testify/require"

	"github.com/libp2p/go-kad-core/internal/kadtest"
)

var fixedStart = time.Unix(0, 0)

func newTestBehaviour(t *testing.T, clock *kadtest.ManualClock) (*Behaviour, peer.ID) {
	t.Helper()
	self, err := test.RandPeerID()
	require.NoError(t, err)
	cfg := DefaultConfig()
	b, err := NewBehaviour(self, cfg, WithClock(clock), WithRand(kadtest.NewSeededRand(1)))
	require.NoError(t, err)
	return b, self
}

func TestGetClosestPeersFailsWithEmptyTableAndNoBootstrap(t *testing.T) {
	clock := kadtest.NewManualClock(fixedStart)
	b, _ := newTestBehaviour(t, clock)
	_, err := b.GetClosestPeers([]byte("target"), nil)
	require.ErrorIs(t, err, ErrNoKnownPeers)
}

func TestGetClosestPeersSucceedsWithBootstrapPeer(t *testing.T) {
	clock := kadtest.NewManualClock(fixedStart)
	b, _ := newTestBehaviour(t, clock)
	bootstrap, err := test.RandPeerID()
	require.NoError(t, err)

	id, err := b.GetClosestPeers([]byte("target"), []peer.ID{bootstrap})
	require.NoError(t, err)

	_, toSwarm := b.Poll(clock.Now())
	require.Len(t, toSwarm, 1)
	require.Equal(t, bootstrap, toSwarm[0].Peer)
	require.Equal(t, id, toSwarm[0].QueryID)
}

func TestSetModeEmitsModeChangedEvent(t *testing.T) {
	clock := kadtest.NewManualClock(fixedStart)
	b, _ := newTestBehaviour(t, clock)
	b.SetMode(ModeServer)

	events, _ := b.Poll(clock.Now())
	require.Len(t, events, 1)
	require.Equal(t, EventModeChanged, events[0].Kind)
	require.Equal(t, ModeServer, events[0].Mode)
}

func TestBootstrapWithEmptyTableOnlyDoesSelfLookup(t *testing.T) {
	clock := kadtest.NewManualClock(fixedStart)
	b, _ := newTestBehaviour(t, clock)
	ids := b.Bootstrap()
	require.Len(t, ids, 1, "empty table has no non-empty buckets to refresh, only the self-lookup runs")
}
