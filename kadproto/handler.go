package kadproto

import (
	"context"
	"errors"

	"github.com/libp2p/go-libp2p/core/peer"
)

// ErrProtocolTimeout and ErrMalformedMessage are the two handler-level
// failure kinds of spec §7 ("Handler errors: protocol timeout, malformed
// message"); both are reported to the owning behaviour as a failed
// inbound/outbound request rather than aborting the query they belong to.
var (
	ErrProtocolTimeout  = errors.New("kadproto: protocol timeout")
	ErrMalformedMessage = errors.New("kadproto: malformed message")
)

// Handler is the wire-protocol-facing state machine for a single peer
// connection (spec §8: "the connection handler contract"). One Handler
// exists per open connection; the behaviour never talks to the wire
// directly.
type Handler interface {
	// SendRequest opens a substream, sends req, awaits the response, and
	// closes the substream (spec §6: "each RPC is a request/response pair
	// over a freshly opened substream; the substream closes after one
	// exchange").
	SendRequest(ctx context.Context, req Request) (Response, error)
	// Close tears down any handler-owned resources.
	Close() error
}

// HandlerEventKind discriminates the four kinds of event a Handler
// reports back to the owning behaviour via on_connection_handler_event.
type HandlerEventKind int

const (
	// ProtocolConfirmedEvent reports that the protocol name was
	// successfully negotiated on a substream with Peer.
	ProtocolConfirmedEvent HandlerEventKind = iota
	// InboundRequestEvent carries a request received from Peer that the
	// behaviour must answer.
	InboundRequestEvent
	// OutboundResponseEvent carries the response to a request the
	// behaviour previously sent to Peer.
	OutboundResponseEvent
	// HandlerErrorEvent reports a protocol timeout or malformed message.
	HandlerErrorEvent
)

// HandlerEvent is what a Handler delivers to the owning behaviour; at most
// one of Request/Response/Err is populated, selected by Kind
// (ProtocolConfirmedEvent carries only Peer).
type HandlerEvent struct {
	Kind     HandlerEventKind
	Peer     peer.ID
	Request  *Request
	Response *Response
	Err      error
}
