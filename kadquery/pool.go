package kadquery

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// QueryID identifies a single active query within a Pool.
type QueryID uint64

// Stats tracks a query's request/response counters (spec §4.8).
type Stats struct {
	Start        time.Time
	End          *time.Time
	NumRequests  int
	NumSuccesses int
	NumFailures  int
}

// ProgressStep accompanies every emitted progress event, with Count
// monotonically increasing per query and Last true on (and only on) the
// query's terminal event (spec §4.4).
type ProgressStep struct {
	Count int
	Last  bool
}

// Dispatch is a peer a query wants contacted next.
type Dispatch struct {
	ID   QueryID
	Info interface{}
	Peer peer.ID
}

// ProgressEvent is the pool's generic notion of "something happened to
// query ID"; the owning behaviour interprets Result/Info into its
// user-facing Event type.
type ProgressEvent struct {
	ID     QueryID
	Info   interface{}
	Result []peer.ID
	Stats  Stats
	Step   ProgressStep
}

type queryState struct {
	id       QueryID
	info     interface{}
	iter     Iterator
	stats    Stats
	step     int
	finished bool
}

// Pool is the set of active queries described in spec §4.4. It places no
// cap on the number of queries itself; an owner that needs one checks Len
// before adding. It is driven entirely by its owner's poll loop; nothing
// inside it spawns
// goroutines, matching the single-threaded cooperative model of spec §5.
type Pool struct {
	queries map[QueryID]*queryState
	order   []QueryID
	nextID  QueryID
}

// NewPool constructs an empty pool.
func NewPool() *Pool {
	return &Pool{queries: make(map[QueryID]*queryState)}
}

// Len reports the number of currently active queries.
func (p *Pool) Len() int {
	return len(p.queries)
}

// Add registers a new query with the given opaque caller context and
// starts tracking it. info is returned verbatim in every event for this
// query id, letting the owning behaviour stash its own per-query state
// (e.g. a GetRecord quorum counter) without the pool knowing about it.
func (p *Pool) Add(now time.Time, info interface{}, iter Iterator) QueryID {
	p.nextID++
	id := p.nextID
	p.queries[id] = &queryState{
		id:    id,
		info:  info,
		iter:  iter,
		stats: Stats{Start: now},
	}
	p.order = append(p.order, id)
	return id
}

// Info returns the opaque context attached to id, if it is still active.
func (p *Pool) Info(id QueryID) (interface{}, bool) {
	q, ok := p.queries[id]
	if !ok {
		return nil, false
	}
	return q.info, true
}

// QueryStats returns id's current Stats, if it is still active; used by a
// Pool owner to enforce a wall-clock query_timeout that the iterators
// themselves don't know about (spec §5: "Timeouts live per-peer
// (peer_timeout) and per-query (query_timeout)").
func (p *Pool) QueryStats(id QueryID) (Stats, bool) {
	q, ok := p.queries[id]
	if !ok {
		return Stats{}, false
	}
	return q.stats, true
}

// IDs returns the currently active query ids, in submission order.
func (p *Pool) IDs() []QueryID {
	out := make([]QueryID, len(p.order))
	copy(out, p.order)
	return out
}

// Finish forces id to report a terminal event on the next Poll call.
func (p *Pool) Finish(id QueryID) bool {
	q, ok := p.queries[id]
	if !ok {
		return false
	}
	q.iter.Finish()
	return true
}

// OnSuccess routes a response to id's iterator. Returns ok=false if id is
// not an active query, in which case the caller must discard the response
// (spec §4.4: "mismatched responses are discarded").
func (p *Pool) OnSuccess(id QueryID, from peer.ID, closerPeers []peer.ID) (ProgressEvent, bool) {
	q, ok := p.queries[id]
	if !ok {
		return ProgressEvent{}, false
	}
	q.iter.OnSuccess(from, closerPeers)
	q.stats.NumSuccesses++
	q.step++
	return p.snapshot(q, false), true
}

// OnFailure routes a failure to id's iterator.
func (p *Pool) OnFailure(id QueryID, from peer.ID) (ProgressEvent, bool) {
	q, ok := p.queries[id]
	if !ok {
		return ProgressEvent{}, false
	}
	q.iter.OnFailure(from)
	q.stats.NumFailures++
	q.step++
	return p.snapshot(q, false), true
}

func (p *Pool) snapshot(q *queryState, last bool) ProgressEvent {
	return ProgressEvent{
		ID:     q.id,
		Info:   q.info,
		Result: q.iter.Result(),
		Stats:  q.stats,
		Step:   ProgressStep{Count: q.step, Last: last},
	}
}

// Poll advances every active query by one tick: it gathers the peers that
// should now be contacted and, for any query that has just finished,
// exactly one terminal ProgressEvent (spec §4.4).
func (p *Pool) Poll(now time.Time) ([]Dispatch, []ProgressEvent) {
	var dispatches []Dispatch
	var progress []ProgressEvent

	live := p.order[:0]
	for _, id := range p.order {
		q, ok := p.queries[id]
		if !ok {
			continue
		}

		peerID, ok2, state := q.iter.Next(now)
		if ok2 {
			q.stats.NumRequests++
			dispatches = append(dispatches, Dispatch{ID: q.id, Info: q.info, Peer: peerID})
		}

		if state == Finished {
			end := now
			q.stats.End = &end
			q.step++
			progress = append(progress, p.snapshot(q, true))
			delete(p.queries, id)
			continue
		}

		live = append(live, id)
	}
	p.order = live
	return dispatches, progress
}
