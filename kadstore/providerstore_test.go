package kadstore

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/test"
	"github.com/stretchr/testify/require"

	"github.com/libp2p/go-kad-core/kadkey"
)

func TestProviderStoreAddGetRoundTrip(t *testing.T) {
	local, err := test.RandPeerID()
	require.NoError(t, err)
	s := NewProviderStore(kadkey.FromPeerID(local), DefaultProviderStoreConfig())

	prov, err := test.RandPeerID()
	require.NoError(t, err)
	require.NoError(t, s.AddProvider([]byte("k"), &ProviderRecord{Key: []byte("k"), Provider: prov}))

	provs := s.Providers([]byte("k"))
	require.Len(t, provs, 1)
	require.Equal(t, prov, provs[0].Provider)
}

func TestProviderStoreCapReplacesFarthest(t *testing.T) {
	local, err := test.RandPeerID()
	require.NoError(t, err)
	cfg := DefaultProviderStoreConfig()
	cfg.MaxProvidersPerKey = 1
	s := NewProviderStore(kadkey.FromPeerID(local), cfg)

	localKey := kadkey.FromPeerID(local)

	// Generate two candidate providers and determine which is closer to
	// local so the test is deterministic regardless of random IDs.
	a, err := test.RandPeerID()
	require.NoError(t, err)
	b, err := test.RandPeerID()
	require.NoError(t, err)

	da := kadkey.Xor(localKey, kadkey.FromPeerID(a))
	db := kadkey.Xor(localKey, kadkey.FromPeerID(b))
	closer, farther := a, b
	if db.Less(da) {
		closer, farther = b, a
	}

	require.NoError(t, s.AddProvider([]byte("k"), &ProviderRecord{Key: []byte("k"), Provider: farther}))
	require.NoError(t, s.AddProvider([]byte("k"), &ProviderRecord{Key: []byte("k"), Provider: closer}))

	provs := s.Providers([]byte("k"))
	require.Len(t, provs, 1)
	require.Equal(t, closer, provs[0].Provider)
}

func TestProviderStoreDoesNotReplaceWithFartherProvider(t *testing.T) {
	local, err := test.RandPeerID()
	require.NoError(t, err)
	cfg := DefaultProviderStoreConfig()
	cfg.MaxProvidersPerKey = 1
	s := NewProviderStore(kadkey.FromPeerID(local), cfg)
	localKey := kadkey.FromPeerID(local)

	a, err := test.RandPeerID()
	require.NoError(t, err)
	b, err := test.RandPeerID()
	require.NoError(t, err)

	da := kadkey.Xor(localKey, kadkey.FromPeerID(a))
	db := kadkey.Xor(localKey, kadkey.FromPeerID(b))
	closer, farther := a, b
	if db.Less(da) {
		closer, farther = b, a
	}

	require.NoError(t, s.AddProvider([]byte("k"), &ProviderRecord{Key: []byte("k"), Provider: closer}))
	require.NoError(t, s.AddProvider([]byte("k"), &ProviderRecord{Key: []byte("k"), Provider: farther}))

	provs := s.Providers([]byte("k"))
	require.Len(t, provs, 1)
	require.Equal(t, closer, provs[0].Provider)
}

func TestExpDecayNeverOverflows(t *testing.T) {
	for _, factor := range []float64{0, 1, 8, 64, 1000} {
		d := expDecay(48*3600*1e9, factor)
		require.GreaterOrEqual(t, int64(d), int64(0))
	}
}
