package kad

import (
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
)

// ErrNoKnownPeers is returned when a query is started with an empty routing
// table and no bootstrap peers supplied (spec §7).
var ErrNoKnownPeers = errors.New("kad: no known peers to query")

// ErrClientModeRefusesWrites is the response error for an inbound
// AddProvider/PutValue received while in Client mode (spec §4.7: "in
// Client mode ... inbound store-writes are refused").
var ErrClientModeRefusesWrites = errors.New("kad: client mode refuses inbound store writes")

// TimeoutError reports that a query exceeded query_timeout before reaching
// its normal completion condition (a peer_timeout only marks that one peer
// failed and does not produce this error); Partial holds whatever
// result the iterator had converged on so far (spec §7).
type TimeoutError struct {
	Partial []peer.ID
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("kad: query timed out with %d partial results", len(e.Partial))
}

// QuorumFailedError reports that a put_record or add_provider query
// collected fewer acknowledgements than its target quorum (spec §7).
type QuorumFailedError struct {
	NumSuccesses int
	Quorum       int
}

func (e *QuorumFailedError) Error() string {
	return fmt.Sprintf("kad: quorum failed: got %d acks, needed %d", e.NumSuccesses, e.Quorum)
}

// NotFoundError reports that a get_record query finished without locating a
// record; ClosestPeers is the terminal closest-peers result, useful for a
// caller that wants to retry a put to them (spec §7).
type NotFoundError struct {
	Key          []byte
	ClosestPeers []peer.ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("kad: record not found for key %x", e.Key)
}
