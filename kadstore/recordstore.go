package kadstore

import (
	"errors"
	"sync"
	"time"

	logging "github.com/ipfs/go-log"
)

var rlog = logging.Logger("kadstore")

var (
	// ErrValueTooLarge is returned by Put when a record's value exceeds
	// MaxValueSize.
	ErrValueTooLarge = errors.New("kadstore: value too large")
	// ErrMaxRecords is returned by Put when the store is at capacity, the
	// new record's key is not already present, and there is no record to
	// evict (MaxRecords <= 0); otherwise Put evicts the earliest-expiring
	// record to make room.
	ErrMaxRecords = errors.New("kadstore: maximum number of records reached")
)

// RecordStoreConfig bounds a RecordStore.
type RecordStoreConfig struct {
	MaxRecords   int
	MaxValueSize int
	RecordTTL    time.Duration
}

// DefaultRecordStoreConfig matches the common upstream defaults.
func DefaultRecordStoreConfig() RecordStoreConfig {
	return RecordStoreConfig{
		MaxRecords:   1024,
		MaxValueSize: 64 * 1024,
		RecordTTL:    36 * time.Hour,
	}
}

type recordEntry struct {
	rec     *Record
	expires time.Time
}

// RecordStore is a bounded, TTL-expiring map of key to Record (spec §4.2).
// Eviction, once at capacity, removes the entry with the earliest
// expiration so that space is made for fresher records first.
type RecordStore struct {
	cfg   RecordStoreConfig
	clock func() time.Time

	mu      sync.Mutex
	records map[string]*recordEntry
}

// NewRecordStore constructs a store with the given bound configuration.
func NewRecordStore(cfg RecordStoreConfig) *RecordStore {
	return &RecordStore{
		cfg:     cfg,
		clock:   time.Now,
		records: make(map[string]*recordEntry),
	}
}

// WithClock overrides the store's time source, for deterministic tests.
func (s *RecordStore) WithClock(clock func() time.Time) *RecordStore {
	s.clock = clock
	return s
}

// Put inserts or overwrites a record. If rec.Expires is nil, the
// configured default RecordTTL is applied and written back to rec.Expires.
func (s *RecordStore) Put(rec *Record) error {
	if len(rec.Value) > s.cfg.MaxValueSize {
		return ErrValueTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(rec.Key)
	now := s.clock()

	expires := now.Add(s.cfg.RecordTTL)
	if rec.Expires != nil {
		expires = *rec.Expires
	} else {
		t := expires
		rec.Expires = &t
	}

	if _, exists := s.records[key]; !exists && len(s.records) >= s.cfg.MaxRecords {
		if !s.evictOneLocked(now) {
			return ErrMaxRecords
		}
	}

	s.records[key] = &recordEntry{rec: rec, expires: expires}
	return nil
}

// Get returns the current non-expired record for key, or ok=false.
// Expired entries are lazily purged on access (spec §3 invariants).
func (s *RecordStore) Get(key []byte) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[string(key)]
	if !ok {
		return nil, false
	}
	now := s.clock()
	if now.After(e.expires) {
		delete(s.records, string(key))
		return nil, false
	}
	return e.rec, true
}

// Delete removes key unconditionally.
func (s *RecordStore) Delete(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, string(key))
}

// LocalKeys returns the keys of every non-expired record published by
// self, the working set the replication job republishes (spec §4.6).
func (s *RecordStore) LocalKeys(self func(*Record) bool) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var out [][]byte
	for k, e := range s.records {
		if now.After(e.expires) {
			continue
		}
		if self(e.rec) {
			out = append(out, []byte(k))
		}
	}
	return out
}

// GC eagerly purges every expired record, called by the replication job on
// each tick (spec §3 invariants: "eagerly purged by the jobs").
func (s *RecordStore) GC() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	n := 0
	for k, e := range s.records {
		if now.After(e.expires) {
			delete(s.records, k)
			n++
		}
	}
	return n
}

// evictOneLocked removes the entry with the earliest expiration to make
// room for a new record. Caller holds s.mu. Returns false if the store is
// empty (nothing to evict).
func (s *RecordStore) evictOneLocked(now time.Time) bool {
	var oldestKey string
	var oldest time.Time
	found := false
	for k, e := range s.records {
		if !found || e.expires.Before(oldest) {
			oldestKey = k
			oldest = e.expires
			found = true
		}
	}
	if !found {
		return false
	}
	delete(s.records, oldestKey)
	rlog.Debugf("evicted record to make room: %x", oldestKey)
	return true
}
