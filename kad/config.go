// Package kad implements the behaviour core of spec §4.7: it owns the
// routing table, the record/provider stores and the query pool, and maps
// swarm events, wire messages and user commands onto them (spec §2,
// component 7, "behaviour core").
package kad

import "time"

// Mode is the behaviour's Client/Server/Auto posture (spec §4.7, §6).
type Mode int

const (
	ModeAuto Mode = iota
	ModeClient
	ModeServer
)

func (m Mode) String() string {
	switch m {
	case ModeClient:
		return "client"
	case ModeServer:
		return "server"
	default:
		return "auto"
	}
}

// RecordFiltering controls whether inbound PutValue writes land directly in
// the record store or must be explicitly accepted by the user (spec §6).
type RecordFiltering int

const (
	Unfiltered RecordFiltering = iota
	FilterBoth
)

// BucketInserts controls whether a newly-confirmed peer is inserted into
// the routing table automatically or only after an explicit user call
// (spec §4.1, §6).
type BucketInserts int

const (
	OnConnected BucketInserts = iota
	ManualInserts
)

// Config collects every configuration knob recognised by the behaviour
// (spec §6).
type Config struct {
	// ReplicationFactor is k, and also the default target number of
	// holders for put/add-provider acknowledgement.
	ReplicationFactor int
	// Parallelism is α, the concurrent in-flight request cap per
	// iterator.
	Parallelism int
	// Beta is the number of succeeded peers required, within the k
	// closest, for a closest-peers iterator to finish; defaults to K.
	Beta int
	// DisjointQueryPaths, when true, routes closest-peers lookups through
	// the d-path disjoint composite instead of a single iterator.
	DisjointQueryPaths bool
	// DisjointPaths is d, the number of independent paths used when
	// DisjointQueryPaths is set; defaults to Parallelism.
	DisjointPaths int

	QueryTimeout time.Duration
	PeerTimeout  time.Duration

	RecordTTL   time.Duration
	ProviderTTL time.Duration

	RecordReplicationInterval   time.Duration
	RecordPublicationInterval   time.Duration
	ProviderPublicationInterval time.Duration

	RecordFiltering RecordFiltering
	KBucketInserts  BucketInserts

	PeriodicBootstrapInterval   time.Duration
	AutomaticBootstrapThrottle  time.Duration

	Mode Mode

	RecordStoreConfig   RecordStoreLimits
	ProviderStoreConfig ProviderStoreLimits

	// PendingTimeout bounds how long a pending bucket replacement waits
	// for a disconnected incumbent before being dropped (spec §4.1).
	PendingTimeout time.Duration
}

// RecordStoreLimits and ProviderStoreLimits mirror kadstore's own config
// types so kad.Config stays the single place a caller configures the
// behaviour, without importing kadstore just to name its types.
type RecordStoreLimits struct {
	MaxRecords   int
	MaxValueSize int
}

type ProviderStoreLimits struct {
	MaxProvidedKeys    int
	MaxProvidersPerKey int
}

// DefaultConfig returns the conventional defaults (k=20, α=3, β=k) used
// throughout the Kademlia DHT literature and by the upstream
// go-libp2p-kad-dht implementation.
func DefaultConfig() Config {
	return Config{
		ReplicationFactor:  20,
		Parallelism:        3,
		Beta:               20,
		DisjointQueryPaths: false,
		DisjointPaths:      3,

		QueryTimeout: 60 * time.Second,
		PeerTimeout:  10 * time.Second,

		RecordTTL:   36 * time.Hour,
		ProviderTTL: 48 * time.Hour,

		RecordReplicationInterval:   time.Hour,
		RecordPublicationInterval:   24 * time.Hour,
		ProviderPublicationInterval: 22 * time.Hour,

		RecordFiltering: Unfiltered,
		KBucketInserts:  OnConnected,

		PeriodicBootstrapInterval:  10 * time.Minute,
		AutomaticBootstrapThrottle: 5 * time.Minute,

		Mode: ModeAuto,

		RecordStoreConfig:   RecordStoreLimits{MaxRecords: 1024, MaxValueSize: 64 * 1024},
		ProviderStoreConfig: ProviderStoreLimits{MaxProvidedKeys: 256 * 1024, MaxProvidersPerKey: 20},

		PendingTimeout: time.Minute,
	}
}
