package kadstore

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/simplelru"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/libp2p/go-kad-core/kadkey"
)

// ErrMaxProvidedKeys is returned by AddProvider when the store already
// tracks MaxProvidedKeys distinct keys and key is not among them.
var ErrMaxProvidedKeys = errors.New("kadstore: maximum number of provided keys reached")

// ProviderStoreConfig bounds a ProviderStore.
type ProviderStoreConfig struct {
	MaxProvidedKeys    int
	MaxProvidersPerKey int
	ProviderTTL        time.Duration
}

// DefaultProviderStoreConfig matches common upstream defaults.
func DefaultProviderStoreConfig() ProviderStoreConfig {
	return ProviderStoreConfig{
		MaxProvidedKeys:    256 * 1024,
		MaxProvidersPerKey: 20,
		ProviderTTL:        48 * time.Hour,
	}
}

type providerEntry struct {
	rec     *ProviderRecord
	expires time.Time
}

type providerSet struct {
	byPeer map[peer.ID]*providerEntry
}

// ProviderStore is a bounded mapping of content key to a capped set of
// providers, evicting the farthest provider from the local key when a
// closer one arrives at capacity (spec §4.2).
type ProviderStore struct {
	cfg     ProviderStoreConfig
	local   kadkey.Key
	clock   func() time.Time

	mu    sync.Mutex
	cache lru.LRUCache // key(string) -> *providerSet, bounded to MaxProvidedKeys
}

// NewProviderStore constructs a store for localKey with the given bound
// configuration.
func NewProviderStore(localKey kadkey.Key, cfg ProviderStoreConfig) *ProviderStore {
	c, err := lru.NewLRU(cfg.MaxProvidedKeys, nil)
	if err != nil {
		// MaxProvidedKeys <= 0 is a programmer error; fall back to a
		// single-entry cache rather than panicking in a constructor.
		c, _ = lru.NewLRU(1, nil)
	}
	return &ProviderStore{
		cfg:   cfg,
		local: localKey,
		clock: time.Now,
		cache: c,
	}
}

// WithClock overrides the store's time source, for deterministic tests.
func (s *ProviderStore) WithClock(clock func() time.Time) *ProviderStore {
	s.clock = clock
	return s
}

func (s *ProviderStore) getSetLocked(key []byte, create bool) (*providerSet, bool) {
	k := string(key)
	if v, ok := s.cache.Get(k); ok {
		return v.(*providerSet), true
	}
	if !create {
		return nil, false
	}
	ps := &providerSet{byPeer: make(map[peer.ID]*providerEntry)}
	s.cache.Add(k, ps)
	return ps, true
}

// AddProvider records that prov serves key. If the per-key cap is reached,
// the new provider replaces the current farthest-from-local provider only
// if the new one is closer; otherwise it is dropped silently (the set is
// already "full enough").
func (s *ProviderStore) AddProvider(key []byte, rec *ProviderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	expires := now.Add(s.cfg.ProviderTTL)
	if rec.Expires != nil {
		expires = *rec.Expires
	} else {
		t := expires
		rec.Expires = &t
	}

	if s.cache.Len() >= s.cfg.MaxProvidedKeys {
		if _, ok := s.cache.Get(string(key)); !ok {
			return ErrMaxProvidedKeys
		}
	}

	ps, _ := s.getSetLocked(key, true)
	if existing, ok := ps.byPeer[rec.Provider]; ok {
		existing.rec = rec
		existing.expires = expires
		return nil
	}

	if len(ps.byPeer) < s.cfg.MaxProvidersPerKey {
		ps.byPeer[rec.Provider] = &providerEntry{rec: rec, expires: expires}
		return nil
	}

	farthest, farthestDist := s.farthestLocked(ps)
	newDist := kadkey.Xor(s.local, kadkey.FromPeerID(rec.Provider))
	if !newDist.Less(farthestDist) {
		// new provider is not closer than the current farthest: drop it.
		return nil
	}
	delete(ps.byPeer, farthest)
	ps.byPeer[rec.Provider] = &providerEntry{rec: rec, expires: expires}
	return nil
}

func (s *ProviderStore) farthestLocked(ps *providerSet) (peer.ID, kadkey.Distance) {
	var farthest peer.ID
	var farthestDist kadkey.Distance
	first := true
	for p := range ps.byPeer {
		d := kadkey.Xor(s.local, kadkey.FromPeerID(p))
		if first || farthestDist.Less(d) {
			farthest = p
			farthestDist = d
			first = false
		}
	}
	return farthest, farthestDist
}

// Providers returns the current non-expired provider set for key, lazily
// purging expired entries.
func (s *ProviderStore) Providers(key []byte) []*ProviderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.getSetLocked(key, false)
	if !ok {
		return nil
	}
	now := s.clock()
	out := make([]*ProviderRecord, 0, len(ps.byPeer))
	for p, e := range ps.byPeer {
		if now.After(e.expires) {
			delete(ps.byPeer, p)
			continue
		}
		out = append(out, e.rec)
	}
	return out
}

// RemoveProvider stops self (or any given peer) from providing key.
func (s *ProviderStore) RemoveProvider(key []byte, p peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.getSetLocked(key, false)
	if !ok {
		return
	}
	delete(ps.byPeer, p)
}

// ProvidedKeys returns every key with at least one non-expired provider
// equal to self, the working set the provider-republish job re-announces
// (spec §4.6).
func (s *ProviderStore) ProvidedKeys(self peer.ID) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var out [][]byte
	for _, k := range s.cache.Keys() {
		v, ok := s.cache.Peek(k)
		if !ok {
			continue
		}
		ps := v.(*providerSet)
		if e, ok := ps.byPeer[self]; ok && now.Before(e.expires) {
			out = append(out, []byte(k.(string)))
		}
	}
	return out
}

// GC eagerly purges every expired provider across every key (spec §3
// invariants).
func (s *ProviderStore) GC() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	n := 0
	for _, k := range s.cache.Keys() {
		v, ok := s.cache.Peek(k)
		if !ok {
			continue
		}
		ps := v.(*providerSet)
		for p, e := range ps.byPeer {
			if now.After(e.expires) {
				delete(ps.byPeer, p)
				n++
			}
		}
	}
	return n
}
