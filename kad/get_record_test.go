package kad

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/test"
	"github.com/stretchr/testify/require"

	"github.com/libp2p/go-kad-core/internal/kadtest"
	"github.com/libp2p/go-kad-core/kadproto"
	"github.com/libp2p/go-kad-core/kadstore"
)

func TestGetRecordShortCircuitsOnQuorum(t *testing.T) {
	clock := kadtest.NewManualClock(fixedStart)
	self, err := test.RandPeerID()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Parallelism = 1
	cfg.Beta = 1

	b, err := NewBehaviour(self, cfg, WithClock(clock))
	require.NoError(t, err)

	holder, err := test.RandPeerID()
	require.NoError(t, err)
	require.NoError(t, b.InsertPeer(holder, nil, true))

	id, err := b.GetRecord([]byte("k"), 1)
	require.NoError(t, err)

	_, toSwarm := b.Poll(clock.Now())
	require.Len(t, toSwarm, 1)
	require.Equal(t, kadproto.GetValue, toSwarm[0].Request.Type)

	rec := &kadstore.Record{Key: []byte("k"), Value: []byte("v")}
	b.OnOutboundResponse(id, holder, kadproto.Response{Record: rec})

	events, _ := b.Poll(clock.Now())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.True(t, last.Step.Last)
	require.NoError(t, last.Result.Err)
	require.NotNil(t, last.Result.Record)
	require.Equal(t, rec.Value, last.Result.Record.Value)
}

func TestGetRecordNotFoundWhenLookupExhausted(t *testing.T) {
	clock := kadtest.NewManualClock(fixedStart)
	self, err := test.RandPeerID()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Parallelism = 1
	cfg.Beta = 1

	b, err := NewBehaviour(self, cfg, WithClock(clock))
	require.NoError(t, err)

	holder, err := test.RandPeerID()
	require.NoError(t, err)
	require.NoError(t, b.InsertPeer(holder, nil, true))

	id, err := b.GetRecord([]byte("k"), 1)
	require.NoError(t, err)

	b.Poll(clock.Now())
	b.OnOutboundResponse(id, holder, kadproto.Response{})

	events, _ := b.Poll(clock.Now())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.True(t, last.Step.Last)
	require.Error(t, last.Result.Err)
	var notFound *NotFoundError
	require.ErrorAs(t, last.Result.Err, &notFound)
}

func TestGetProvidersCollectsFromIntermediateResponses(t *testing.T) {
	clock := kadtest.NewManualClock(fixedStart)
	self, err := test.RandPeerID()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Parallelism = 1
	cfg.Beta = 1

	b, err := NewBehaviour(self, cfg, WithClock(clock))
	require.NoError(t, err)

	holder, err := test.RandPeerID()
	require.NoError(t, err)
	require.NoError(t, b.InsertPeer(holder, nil, true))

	provider, err := test.RandPeerID()
	require.NoError(t, err)

	id, err := b.GetProviders([]byte("k"))
	require.NoError(t, err)

	b.Poll(clock.Now())
	b.OnOutboundResponse(id, holder, kadproto.Response{
		Providers: []kadproto.PeerInfo{{ID: provider}},
	})

	events, _ := b.Poll(clock.Now())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.True(t, last.Step.Last)
	require.NoError(t, last.Result.Err)
	require.Len(t, last.Result.Providers, 1)
	require.Equal(t, provider, last.Result.Providers[0].ID)
}
