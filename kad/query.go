package kad

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-kad-core/kadkey"
	"github.com/libp2p/go-kad-core/kadproto"
	"github.com/libp2p/go-kad-core/kadquery"
	"github.com/libp2p/go-kad-core/kadstore"
)

func (b *Behaviour) newClosestIter(target kadkey.Key, bootstrapPeers []peer.ID) kadquery.Iterator {
	seed := append([]peer.ID{}, b.rt.NearestPeers(target, b.cfg.ReplicationFactor)...)
	seed = append(seed, bootstrapPeers...)
	params := kadquery.ClosestPeersParams{
		Alpha:       b.cfg.Parallelism,
		K:           b.cfg.ReplicationFactor,
		Beta:        b.cfg.Beta,
		PeerTimeout: b.cfg.PeerTimeout,
	}
	if b.cfg.DisjointQueryPaths {
		d := b.cfg.DisjointPaths
		if d <= 0 {
			d = b.cfg.Parallelism
		}
		return kadquery.NewClosestDisjointPeersIter(target, seed, d, params)
	}
	return kadquery.NewClosestPeersIter(target, seed, params)
}

func (b *Behaviour) addQuery(now time.Time, qc *queryContext, it kadquery.Iterator) kadquery.QueryID {
	return b.pool.Add(now, qc, it)
}

// GetClosestPeers starts a closest-peers lookup for target, optionally
// seeded with extra peers beyond the routing table's own (spec §4.5).
func (b *Behaviour) GetClosestPeers(target []byte, bootstrapPeers []peer.ID) (kadquery.QueryID, error) {
	if b.rt.Size() == 0 && len(bootstrapPeers) == 0 {
		return 0, ErrNoKnownPeers
	}
	it := b.newClosestIter(kadkey.FromBytes(target), bootstrapPeers)
	qc := &queryContext{kind: QueryGetClosestPeers, key: target}
	return b.addQuery(b.clock.Now(), qc, it), nil
}

// Bootstrap starts a self-lookup and one random lookup per non-empty
// bucket index (spec §4.5, §4.6).
func (b *Behaviour) Bootstrap() []kadquery.QueryID {
	selfKey := kadkey.FromPeerID(b.self)
	ids := []kadquery.QueryID{b.startBootstrapLookup(selfKey)}
	for _, idx := range b.rt.NonEmptyBucketIndices() {
		target := kadkey.RandomKeyForBucket(selfKey, idx, b.rng)
		ids = append(ids, b.startBootstrapLookup(target))
	}
	return ids
}

func (b *Behaviour) startBootstrapLookup(target kadkey.Key) kadquery.QueryID {
	it := b.newClosestIter(target, nil)
	qc := &queryContext{kind: QueryBootstrap, key: target.Bytes()}
	return b.addQuery(b.clock.Now(), qc, it)
}

// LocalRecord returns the record stored locally for key, if present and not
// expired, without issuing any network query.
func (b *Behaviour) LocalRecord(key []byte) (*kadstore.Record, bool) {
	return b.recordStore.Get(key)
}

// GetRecord starts a get_record query: a closest-peers lookup on key that
// short-circuits once quorum distinct records are collected, or when the
// lookup itself terminates, whichever comes first (spec §4.5).
func (b *Behaviour) GetRecord(key []byte, quorum int) (kadquery.QueryID, error) {
	if b.rt.Size() == 0 {
		return 0, ErrNoKnownPeers
	}
	if quorum <= 0 {
		quorum = 1
	}
	it := b.newClosestIter(kadkey.FromBytes(key), nil)
	qc := &queryContext{kind: QueryGetRecord, key: key, quorum: quorum}
	return b.addQuery(b.clock.Now(), qc, it), nil
}

// PutRecord starts the two-phase put_record composition (spec §4.5): phase
// 1 finds the k peers closest to the record's key, phase 2 issues PutValue
// to each of them up to the configured parallelism.
func (b *Behaviour) PutRecord(rec *kadstore.Record) (kadquery.QueryID, error) {
	if b.rt.Size() == 0 {
		return 0, ErrNoKnownPeers
	}
	it := b.newClosestIter(kadkey.FromBytes(rec.Key), nil)
	qc := &queryContext{kind: QueryPutRecordPhase1, key: rec.Key, record: rec}
	return b.addQuery(b.clock.Now(), qc, it), nil
}

// GetProviders starts a get_providers query: opportunistic, any
// intermediate response may carry providers (spec §4.5).
func (b *Behaviour) GetProviders(key []byte) (kadquery.QueryID, error) {
	if b.rt.Size() == 0 {
		return 0, ErrNoKnownPeers
	}
	it := b.newClosestIter(kadkey.FromBytes(key), nil)
	qc := &queryContext{kind: QueryGetProviders, key: key}
	return b.addQuery(b.clock.Now(), qc, it), nil
}

// StartProviding starts the two-phase start_providing composition (spec
// §4.5): phase 1 finds the k peers closest to key, phase 2 issues
// AddProvider to each, advertising self as the provider.
func (b *Behaviour) StartProviding(key []byte, addrs []ma.Multiaddr) (kadquery.QueryID, error) {
	if b.rt.Size() == 0 {
		return 0, ErrNoKnownPeers
	}
	it := b.newClosestIter(kadkey.FromBytes(key), nil)
	qc := &queryContext{
		kind:     QueryAddProviderPhase1,
		key:      key,
		provider: kadproto.PeerInfo{ID: b.self, Addrs: addrs},
	}
	return b.addQuery(b.clock.Now(), qc, it), nil
}

// Finish cancels query id, forcing its terminal event on the next Poll
// (spec §5: "queries are cancellable by id via query_mut(id).finish()").
func (b *Behaviour) Finish(id kadquery.QueryID) bool {
	return b.pool.Finish(id)
}
