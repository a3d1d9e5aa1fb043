package kad

import (
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-kad-core/kadproto"
	"github.com/libp2p/go-kad-core/kadquery"
	"github.com/libp2p/go-kad-core/kadstore"
)

// EventKind discriminates the user-visible event surface of spec §4.8.
type EventKind int

const (
	EventOutboundQueryProgressed EventKind = iota
	EventInboundRequest
	EventRoutablePeer
	EventModeChanged
)

// QueryResult is the terminal payload of an OutboundQueryProgressed event,
// interpreted according to the query's Kind.
type QueryResult struct {
	Kind QueryKind

	// GetClosestPeers, Bootstrap
	ClosestPeers []peer.ID

	// GetRecord
	Record *kadstore.Record
	// GetProviders
	Providers []kadproto.PeerInfo

	// PutRecord, AddProvider
	NumSuccesses int
	NumFailures  int

	// Err is non-nil on failure (Timeout, QuorumFailed, NotFound); Result
	// fields above are best-effort partial data. ErrNoKnownPeers is never
	// reported here: the call that would start the query returns it.
	Err error
}

// InboundRequest describes one piece of inbound traffic served from the
// stores, surfaced to the user for observability and, under
// FilterBoth, for explicit record acceptance (spec §4.8).
type InboundRequest struct {
	Type kadproto.MessageType
	From peer.ID
	Key  []byte

	// PutRecord is populated only when RecordFiltering == FilterBoth and
	// Type == PutValue; the record is NOT yet in the store, the user must
	// call Behaviour.AcceptRecord to insert it.
	PutRecord *kadstore.Record
}

// Event is the single type returned by Behaviour.Poll (and sent on the
// channel Behaviour.Run returns); exactly the fields relevant to Kind are
// populated.
type Event struct {
	Kind EventKind

	// EventOutboundQueryProgressed
	QueryID kadquery.QueryID
	Result  QueryResult
	Stats   kadquery.Stats
	Step    kadquery.ProgressStep

	// EventInboundRequest
	Request InboundRequest

	// EventRoutablePeer
	Peer    peer.ID
	Address ma.Multiaddr

	// EventModeChanged
	Mode Mode
}
