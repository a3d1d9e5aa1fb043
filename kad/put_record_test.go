package kad

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/test"
	"github.com/stretchr/testify/require"

	"github.com/libp2p/go-kad-core/internal/kadtest"
	"github.com/libp2p/go-kad-core/kadproto"
	"github.com/libp2p/go-kad-core/kadstore"
)

func TestPutRecordTwoPhaseSucceedsOnQuorum(t *testing.T) {
	clock := kadtest.NewManualClock(fixedStart)
	self, err := test.RandPeerID()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ReplicationFactor = 1
	cfg.Parallelism = 1
	cfg.Beta = 1

	b, err := NewBehaviour(self, cfg, WithClock(clock))
	require.NoError(t, err)

	holder, err := test.RandPeerID()
	require.NoError(t, err)
	require.NoError(t, b.InsertPeer(holder, nil, true))

	rec := &kadstore.Record{Key: []byte("k"), Value: []byte("v"), Publisher: &self}
	phase1ID, err := b.PutRecord(rec)
	require.NoError(t, err)

	// Phase 1: closest-peers lookup dispatches to the one known holder.
	_, toSwarm := b.Poll(clock.Now())
	require.Len(t, toSwarm, 1)
	require.Equal(t, holder, toSwarm[0].Peer)
	require.Equal(t, phase1ID, toSwarm[0].QueryID)
	require.Equal(t, kadproto.FindNode, toSwarm[0].Request.Type)

	b.OnOutboundResponse(phase1ID, holder, kadproto.Response{})

	// The holder's success meets Beta, so this Poll finishes phase 1 and
	// starts phase 2; phase 2's first dispatch comes on the following Poll.
	events, _ := b.Poll(clock.Now())
	require.Empty(t, events, "phase 1 completion is internal, no user event yet")
	events, toSwarm2 := b.Poll(clock.Now())
	require.Empty(t, events)

	// Phase 2: fixed-peers fan-out issues PutValue to the same holder.
	require.Len(t, toSwarm2, 1)
	require.Equal(t, holder, toSwarm2[0].Peer)
	require.Equal(t, kadproto.PutValue, toSwarm2[0].Request.Type)
	phase2ID := toSwarm2[0].QueryID
	require.NotEqual(t, phase1ID, phase2ID)

	b.OnOutboundResponse(phase2ID, holder, kadproto.Response{RecordEcho: rec})

	// OnOutboundResponse emits phase 2's intermediate progress event
	// synchronously; the next Poll then drives the iterator to Finished
	// and appends the terminal one, so both arrive in this batch.
	events, _ = b.Poll(clock.Now())
	require.Len(t, events, 2)
	require.False(t, events[0].Step.Last)
	last := events[len(events)-1]
	require.Equal(t, EventOutboundQueryProgressed, last.Kind)
	require.True(t, last.Step.Last)
	require.NoError(t, last.Result.Err)
	require.Equal(t, 1, last.Result.NumSuccesses)
}

func TestPutRecordPhase2QuorumFailedWhenHolderFails(t *testing.T) {
	clock := kadtest.NewManualClock(fixedStart)
	self, err := test.RandPeerID()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ReplicationFactor = 2
	cfg.Parallelism = 1
	cfg.Beta = 1

	b, err := NewBehaviour(self, cfg, WithClock(clock))
	require.NoError(t, err)

	holder, err := test.RandPeerID()
	require.NoError(t, err)
	require.NoError(t, b.InsertPeer(holder, nil, true))

	rec := &kadstore.Record{Key: []byte("k"), Value: []byte("v"), Publisher: &self}
	phase1ID, err := b.PutRecord(rec)
	require.NoError(t, err)

	b.Poll(clock.Now())
	b.OnOutboundResponse(phase1ID, holder, kadproto.Response{})
	b.Poll(clock.Now())
	_, toSwarm2 := b.Poll(clock.Now())
	require.Len(t, toSwarm2, 1)
	phase2ID := toSwarm2[0].QueryID

	b.OnOutboundFailure(phase2ID, holder)

	events, _ := b.Poll(clock.Now())
	require.Len(t, events, 2)
	require.False(t, events[0].Step.Last)
	require.NoError(t, events[0].Result.Err, "intermediate progress never reports quorum failure early")

	last := events[len(events)-1]
	require.True(t, last.Step.Last)
	require.Error(t, last.Result.Err)
	var quorumErr *QuorumFailedError
	require.ErrorAs(t, last.Result.Err, &quorumErr)
	require.Equal(t, 0, quorumErr.NumSuccesses)
	require.Equal(t, 2, quorumErr.Quorum)
}
