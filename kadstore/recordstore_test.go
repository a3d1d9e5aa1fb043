package kadstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordStorePutGetRoundTrip(t *testing.T) {
	s := NewRecordStore(DefaultRecordStoreConfig())
	rec := &Record{Key: []byte("k"), Value: []byte("v")}
	require.NoError(t, s.Put(rec))

	got, ok := s.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, rec.Value, got.Value)
	require.Equal(t, rec.Expires, got.Expires)
}

func TestRecordStoreValueTooLarge(t *testing.T) {
	cfg := DefaultRecordStoreConfig()
	cfg.MaxValueSize = 4
	s := NewRecordStore(cfg)
	err := s.Put(&Record{Key: []byte("k"), Value: []byte("toolarge")})
	require.ErrorIs(t, err, ErrValueTooLarge)
}

func TestRecordStoreExpiredNotReturned(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewRecordStore(DefaultRecordStoreConfig()).WithClock(func() time.Time { return now })

	past := now.Add(-time.Second)
	require.NoError(t, s.Put(&Record{Key: []byte("k"), Value: []byte("v"), Expires: &past}))

	_, ok := s.Get([]byte("k"))
	require.False(t, ok)
}

func TestRecordStoreMaxRecordsEvictsEarliestExpiry(t *testing.T) {
	cfg := DefaultRecordStoreConfig()
	cfg.MaxRecords = 2
	now := time.Unix(1000, 0)
	s := NewRecordStore(cfg).WithClock(func() time.Time { return now })

	soon := now.Add(time.Minute)
	later := now.Add(time.Hour)
	require.NoError(t, s.Put(&Record{Key: []byte("a"), Value: []byte("1"), Expires: &soon}))
	require.NoError(t, s.Put(&Record{Key: []byte("b"), Value: []byte("2"), Expires: &later}))
	require.NoError(t, s.Put(&Record{Key: []byte("c"), Value: []byte("3"), Expires: &later}))

	_, ok := s.Get([]byte("a"))
	require.False(t, ok, "earliest-expiring record should have been evicted")
	_, ok = s.Get([]byte("b"))
	require.True(t, ok)
	_, ok = s.Get([]byte("c"))
	require.True(t, ok)
}
