// Package kadproto defines the abstract, transport-agnostic wire message
// set and connection-handler contract of spec §4.7: any substream framing
// the host application chooses can carry these messages, as long as it
// implements Handler.
package kadproto

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-kad-core/kadstore"
)

// DefaultProtocolID is the conventional protocol name negotiated on a
// substream before any RPC is exchanged; successful negotiation of it is
// what ProtocolConfirmed reports.
const DefaultProtocolID protocol.ID = "/ipfs/kad/1.0.0"

// PeerInfo is a routable peer as carried in closer_peers / provider
// listings: identity plus the addresses the responder knows for it.
type PeerInfo struct {
	ID    peer.ID
	Addrs []ma.Multiaddr
}

// MessageType discriminates the five RPCs of the abstract wire format.
type MessageType int

const (
	FindNode MessageType = iota
	GetProviders
	AddProvider
	GetValue
	PutValue
)

func (t MessageType) String() string {
	switch t {
	case FindNode:
		return "FIND_NODE"
	case GetProviders:
		return "GET_PROVIDERS"
	case AddProvider:
		return "ADD_PROVIDER"
	case GetValue:
		return "GET_VALUE"
	case PutValue:
		return "PUT_VALUE"
	default:
		return "UNKNOWN"
	}
}

// Request is the outbound half of one RPC exchange. Key is set for every
// Type; Provider and Record are meaningful only for AddProvider and
// PutValue respectively.
type Request struct {
	Type MessageType

	// every Type
	Key []byte

	// AddProvider
	Provider PeerInfo

	// PutValue
	Record *kadstore.Record
}

// Response is the inbound half of one RPC exchange (spec §4.7: "all
// responses carry up to k closer peers ... filtered to omit the requester
// and self").
type Response struct {
	CloserPeers []PeerInfo

	// GetProviders
	Providers []PeerInfo

	// GetValue
	Record *kadstore.Record

	// PutValue: the echoed record on success.
	RecordEcho *kadstore.Record

	// Err is set when the remote reported a protocol-level failure (a
	// refused store-write in Client mode, or a store error such as a value
	// too large) rather than a transport failure; transport failures are
	// reported to the caller as a plain Go error instead of via Response.
	Err error
}

// RPCTimeout bounds a single request/response exchange at the handler
// level, independent of the behaviour's peer_timeout and query_timeout
// (spec §6).
const RPCTimeout = 10 * time.Second
