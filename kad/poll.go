package kad

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/libp2p/go-kad-core/kadproto"
	"github.com/libp2p/go-kad-core/kadquery"
)

// OnOutboundResponse routes a response received for an in-flight request of
// query id back into the pool, folding in whatever key/provider/record
// payload the message type carries (spec §4.7 on_connection_handler_event,
// §5 "mismatched responses are discarded").
func (b *Behaviour) OnOutboundResponse(id kadquery.QueryID, from peer.ID, resp kadproto.Response) {
	infoRaw, ok := b.pool.Info(id)
	if !ok {
		return
	}
	if resp.Err != nil {
		b.onOutboundFailure(id, from)
		return
	}

	closer := make([]peer.ID, 0, len(resp.CloserPeers))
	for _, pi := range resp.CloserPeers {
		closer = append(closer, pi.ID)
		if len(pi.Addrs) > 0 {
			b.rt.UpdateAddrs(pi.ID, pi.Addrs)
		}
	}

	if qc, _ := infoRaw.(*queryContext); qc != nil {
		qc.recordResponse(resp)
		if qc.quorumReached() {
			b.pool.Finish(id)
		}
	}

	if ev, ok := b.pool.OnSuccess(id, from, closer); ok {
		b.handleProgress(ev)
	}
}

// OnOutboundFailure reports that a request sent as part of query id to from
// failed or timed out at the handler level (spec §7: "transient errors ...
// never abort a query; they increment num_failures").
func (b *Behaviour) OnOutboundFailure(id kadquery.QueryID, from peer.ID) {
	b.onOutboundFailure(id, from)
}

func (b *Behaviour) onOutboundFailure(id kadquery.QueryID, from peer.ID) {
	if ev, ok := b.pool.OnFailure(id, from); ok {
		b.handleProgress(ev)
	}
}

// Poll drains one scheduling tick: it advances every active query, hands
// any ready dispatch to the swarm, folds job ticks into new queries, and
// returns the events/commands accumulated since the last call (spec §4.7
// poll(cx), §5 "only poll suspends").
func (b *Behaviour) Poll(now time.Time) ([]Event, []ToSwarm) {
	b.enforceQueryTimeouts(now)

	dispatches, progress := b.pool.Poll(now)
	for _, d := range dispatches {
		b.pushDispatch(d)
	}
	for _, ev := range progress {
		b.handleProgress(ev)
	}

	b.runJobs(now)

	events := b.events
	b.events = nil
	toSwarm := b.outbox
	b.outbox = nil
	return events, toSwarm
}

// enforceQueryTimeouts forces any query older than query_timeout to finish
// on this tick, marking it so its terminal event reports Timeout rather
// than a normal completion.
func (b *Behaviour) enforceQueryTimeouts(now time.Time) {
	if b.cfg.QueryTimeout <= 0 {
		return
	}
	for _, id := range b.pool.IDs() {
		stats, ok := b.pool.QueryStats(id)
		if !ok {
			continue
		}
		if now.Sub(stats.Start) < b.cfg.QueryTimeout {
			continue
		}
		if qc, ok := b.queryContextOf(id); ok {
			qc.timedOut = true
		}
		b.pool.Finish(id)
	}
}

func (b *Behaviour) queryContextOf(id kadquery.QueryID) (*queryContext, bool) {
	infoRaw, ok := b.pool.Info(id)
	if !ok {
		return nil, false
	}
	qc, ok := infoRaw.(*queryContext)
	return qc, ok
}

// runJobs checks every background job's ticker and starts the resulting
// work, respecting the pool-saturation throttle for the replication and
// provider jobs (spec §4.6).
func (b *Behaviour) runJobs(now time.Time) {
	const jobsMaxQueries = 100

	b.rt.CheckPendingReplacements()

	// While the pool is saturated the replication and provider jobs are not
	// polled, so a tick that already fired stays pending for a later Poll.
	if b.pool.Len() < jobsMaxQueries {
		if keys := b.replicationJob.Poll(); len(keys) > 0 {
			for _, k := range keys {
				if rec, ok := b.recordStore.Get(k); ok {
					if _, err := b.PutRecord(rec); err != nil {
						log.Debugf("replication: skipping %x: %v", k, err)
					}
				}
			}
		}
	}

	if b.pool.Len() < jobsMaxQueries {
		if keys := b.providerJob.Poll(); len(keys) > 0 {
			for _, k := range keys {
				if _, err := b.StartProviding(k, nil); err != nil {
					log.Debugf("provider republish: skipping %x: %v", k, err)
				}
			}
		}
	}

	if b.bootstrapJob.Poll(now) {
		b.Bootstrap()
	}
}
