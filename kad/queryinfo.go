package kad

import (
	"github.com/libp2p/go-kad-core/kadproto"
	"github.com/libp2p/go-kad-core/kadstore"
)

// QueryKind discriminates the user-visible purpose of a query (spec §4.3:
// "a query couples a QueryInfo ... with a peer iterator").
type QueryKind int

const (
	QueryGetClosestPeers QueryKind = iota
	QueryBootstrap
	QueryGetRecord
	QueryGetProviders
	QueryPutRecordPhase1
	QueryPutRecordPhase2
	QueryAddProviderPhase1
	QueryAddProviderPhase2
)

// queryContext is the opaque per-query state stashed in the pool's Info
// field; the pool never interprets it, only the behaviour does (spec §5:
// "the query pool owns its queries; queries never alias state" — aliasing
// here is deliberate and confined to the behaviour that created it).
type queryContext struct {
	kind QueryKind
	key  []byte

	// GetRecord
	quorum  int
	records []*kadstore.Record

	// GetProviders
	providers []kadproto.PeerInfo

	// PutRecord
	record *kadstore.Record

	// AddProvider
	provider kadproto.PeerInfo

	// timedOut is set by the behaviour's query_timeout enforcement before
	// forcing the iterator to finish, so the terminal event reports
	// Timeout rather than a normal completion.
	timedOut bool
}

// buildRequest turns a dispatch for this query into the abstract wire
// request to send to peer (spec §4.7).
func (qc *queryContext) buildRequest() kadproto.Request {
	switch qc.kind {
	case QueryGetRecord:
		return kadproto.Request{Type: kadproto.GetValue, Key: qc.key}
	case QueryGetProviders:
		return kadproto.Request{Type: kadproto.GetProviders, Key: qc.key}
	case QueryPutRecordPhase2:
		return kadproto.Request{Type: kadproto.PutValue, Key: qc.key, Record: qc.record}
	case QueryAddProviderPhase2:
		return kadproto.Request{Type: kadproto.AddProvider, Key: qc.key, Provider: qc.provider}
	default: // GetClosestPeers, Bootstrap, PutRecordPhase1, AddProviderPhase1
		return kadproto.Request{Type: kadproto.FindNode, Key: qc.key}
	}
}

// recordResponse folds an inbound response's payload into the query
// context's bookkeeping; it never touches the pool — the caller is
// responsible for feeding CloserPeers to Pool.OnSuccess separately.
func (qc *queryContext) recordResponse(resp kadproto.Response) {
	switch qc.kind {
	case QueryGetRecord:
		if resp.Record != nil {
			qc.records = append(qc.records, resp.Record)
		}
	case QueryGetProviders:
		if len(resp.Providers) > 0 {
			qc.providers = append(qc.providers, resp.Providers...)
		}
	}
}

// quorumReached reports whether a GetRecord query has collected enough
// distinct records to short-circuit (spec §4.5: "finish after n records
// collected or the closest-peers query terminates, whichever comes
// first").
func (qc *queryContext) quorumReached() bool {
	return qc.kind == QueryGetRecord && qc.quorum > 0 && len(qc.records) >= qc.quorum
}
