package kad

import (
	"fmt"
	"math/rand"
	"time"

	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/libp2p/go-kad-core/kadjobs"
	"github.com/libp2p/go-kad-core/kadkey"
	"github.com/libp2p/go-kad-core/kadproto"
	"github.com/libp2p/go-kad-core/kadquery"
	"github.com/libp2p/go-kad-core/kadstore"
	"github.com/libp2p/go-kad-core/kbucket"
)

var log = logging.Logger("kad")

// Clock abstracts time for the behaviour's own scheduling decisions (query
// timeouts, mode changes), matching the Clock seam kbucket and kadquery
// already expose (spec §9 Design Notes).
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ToSwarmKind discriminates the outbound commands a poll call produces.
type ToSwarmKind int

const (
	// DialPeer asks the swarm to establish a connection before a request
	// can be sent.
	DialPeer ToSwarmKind = iota
	// SendRequest asks the swarm to deliver Request to Peer's handler.
	SendRequest
)

// ToSwarm is one outbound command emitted by Poll (spec §4.7:
// "poll(cx) -> emits ToSwarm commands").
type ToSwarm struct {
	Kind    ToSwarmKind
	Peer    peer.ID
	QueryID kadquery.QueryID
	Request kadproto.Request
}

// Behaviour is the DHT behaviour core of spec §4.7: it owns the routing
// table, the record/provider stores and the query pool, and exposes the
// user-facing API and event surface.
type Behaviour struct {
	self  peer.ID
	cfg   Config
	clock Clock
	rng   *rand.Rand

	rt            *kbucket.RoutingTable
	recordStore   *kadstore.RecordStore
	providerStore *kadstore.ProviderStore
	pool          *kadquery.Pool

	diversity *kbucket.DiversityFilter

	replicationJob *kadjobs.ReplicationJob
	providerJob    *kadjobs.ProviderJob
	bootstrapJob   *kadjobs.BootstrapJob

	mode Mode

	outbox []ToSwarm
	events []Event
}

// Option configures a Behaviour at construction time.
type Option func(*Behaviour) error

// WithClock overrides the behaviour's time source.
func WithClock(c Clock) Option {
	return func(b *Behaviour) error { b.clock = c; return nil }
}

// WithRand overrides the behaviour's source of randomness, for
// deterministic bootstrap target generation under test.
func WithRand(r *rand.Rand) Option {
	return func(b *Behaviour) error { b.rng = r; return nil }
}

// WithDiversityFilter installs an IP-group/ASN diversity gate on the
// routing table's bucket admission (spec §4.1 carries no diversity
// requirement itself; this is the same optional concern the real
// go-libp2p-kbucket package exposes via its peerdiversity subpackage).
func WithDiversityFilter(f *kbucket.DiversityFilter) Option {
	return func(b *Behaviour) error { b.diversity = f; return nil }
}

// NewBehaviour constructs a Behaviour for the local peer self.
func NewBehaviour(self peer.ID, cfg Config, opts ...Option) (*Behaviour, error) {
	b := &Behaviour{
		self:  self,
		cfg:   cfg,
		clock: realClock{},
		rng:   rand.New(rand.NewSource(1)),
		mode:  cfg.Mode,
	}
	for i, o := range opts {
		if err := o(b); err != nil {
			return nil, fmt.Errorf("kad: option %d: %w", i, err)
		}
	}

	rtOpts := []kbucket.Option{
		kbucket.WithClock(clockAdapter{b.clock}),
		kbucket.WithPendingTimeout(cfg.PendingTimeout),
	}
	if b.diversity != nil {
		rtOpts = append(rtOpts, kbucket.WithDiversityFilter(b.diversity))
	}
	rt, err := kbucket.NewRoutingTable(self, cfg.ReplicationFactor, rtOpts...)
	if err != nil {
		return nil, err
	}
	rt.PeerAdded = func(peer.ID) { b.bootstrapJob.NotifyRoutingUpdated(b.clock.Now()) }
	b.rt = rt

	b.recordStore = NewConfiguredRecordStore(cfg).WithClock(b.clock.Now)
	b.providerStore = kadstore.NewProviderStore(kadkey.FromPeerID(self), kadstore.ProviderStoreConfig{
		MaxProvidedKeys:    cfg.ProviderStoreConfig.MaxProvidedKeys,
		MaxProvidersPerKey: cfg.ProviderStoreConfig.MaxProvidersPerKey,
		ProviderTTL:        cfg.ProviderTTL,
	}).WithClock(b.clock.Now)
	b.pool = kadquery.NewPool()

	b.replicationJob = kadjobs.NewReplicationJob(cfg.RecordReplicationInterval, b.recordStore, func(r *kadstore.Record) bool {
		return r.IsLocal(self)
	})
	b.providerJob = kadjobs.NewProviderJob(cfg.ProviderPublicationInterval, b.providerStore, self)
	b.bootstrapJob = kadjobs.NewBootstrapJob(cfg.PeriodicBootstrapInterval, cfg.AutomaticBootstrapThrottle)

	return b, nil
}

// NewConfiguredRecordStore builds a RecordStore from cfg, the same way
// NewBehaviour builds its own.
func NewConfiguredRecordStore(cfg Config) *kadstore.RecordStore {
	return kadstore.NewRecordStore(kadstore.RecordStoreConfig{
		MaxRecords:   cfg.RecordStoreConfig.MaxRecords,
		MaxValueSize: cfg.RecordStoreConfig.MaxValueSize,
		RecordTTL:    cfg.RecordTTL,
	})
}

type clockAdapter struct{ c Clock }

func (a clockAdapter) Now() time.Time { return a.c.Now() }

// RoutingTable exposes the underlying table for inspection (e.g. by
// cmd/kad-demo to report how many peers a node knows).
func (b *Behaviour) RoutingTable() *kbucket.RoutingTable { return b.rt }

// Mode returns the behaviour's current Client/Server posture.
func (b *Behaviour) Mode() Mode { return b.mode }

// SetMode forces the behaviour's mode and emits a ModeChanged event on the
// next Poll (spec §4.7 Modes, §4.8 ModeChanged).
func (b *Behaviour) SetMode(m Mode) {
	if m == b.mode {
		return
	}
	b.mode = m
	b.events = append(b.events, Event{Kind: EventModeChanged, Mode: m})
}

// pushDispatch turns a pool Dispatch into an outbound ToSwarm command.
func (b *Behaviour) pushDispatch(d kadquery.Dispatch) {
	qc, _ := d.Info.(*queryContext)
	if qc == nil {
		return
	}
	b.outbox = append(b.outbox, ToSwarm{
		Kind:    SendRequest,
		Peer:    d.Peer,
		QueryID: d.ID,
		Request: qc.buildRequest(),
	})
}
