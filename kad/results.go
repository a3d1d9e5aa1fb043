package kad

import (
	"github.com/libp2p/go-kad-core/kadquery"
)

// handleProgress turns one pool ProgressEvent into a user-facing Event,
// and — for the two-phase compositions — starts phase 2 once phase 1's
// terminal event arrives (spec §4.5).
func (b *Behaviour) handleProgress(ev kadquery.ProgressEvent) {
	qc, _ := ev.Info.(*queryContext)
	if qc == nil {
		return
	}

	if !ev.Step.Last {
		if qc.kind == QueryPutRecordPhase1 || qc.kind == QueryAddProviderPhase1 {
			// Phase 1 of a two-phase composition is an implementation
			// detail; only the composed PutRecord/AddProvider query (and
			// its eventual phase-2 terminal event) is user-visible.
			return
		}
		b.events = append(b.events, Event{
			Kind:    EventOutboundQueryProgressed,
			QueryID: ev.ID,
			Stats:   ev.Stats,
			Step:    ev.Step,
			Result:  b.interpretResult(qc, ev, nil),
		})
		return
	}

	switch qc.kind {
	case QueryPutRecordPhase1:
		b.startPutPhase2(ev, qc)
		return
	case QueryAddProviderPhase1:
		b.startAddProviderPhase2(ev, qc)
		return
	}

	var err error
	if qc.timedOut {
		err = &TimeoutError{Partial: ev.Result}
	}
	b.events = append(b.events, Event{
		Kind:    EventOutboundQueryProgressed,
		QueryID: ev.ID,
		Stats:   ev.Stats,
		Step:    ev.Step,
		Result:  b.interpretResult(qc, ev, err),
	})
}

// interpretResult folds a query's accumulated bookkeeping into a
// user-facing QueryResult. The terminal-only errors (NotFoundError,
// QuorumFailedError) are only ever assigned on ev.Step.Last: an
// intermediate progress event simply reports what has arrived so far,
// never a premature failure.
func (b *Behaviour) interpretResult(qc *queryContext, ev kadquery.ProgressEvent, err error) QueryResult {
	closest := ev.Result
	r := QueryResult{Kind: qc.kind, ClosestPeers: closest, Err: err}
	switch qc.kind {
	case QueryGetRecord:
		if len(qc.records) > 0 {
			r.Record = qc.records[0]
		} else if err == nil && ev.Step.Last {
			r.Err = &NotFoundError{Key: qc.key, ClosestPeers: closest}
		}
	case QueryGetProviders:
		r.Providers = qc.providers
	case QueryPutRecordPhase2, QueryAddProviderPhase2:
		r.NumSuccesses, r.NumFailures = ev.Stats.NumSuccesses, ev.Stats.NumFailures
		if err == nil && ev.Step.Last && r.NumSuccesses < qc.quorum {
			r.Err = &QuorumFailedError{NumSuccesses: r.NumSuccesses, Quorum: qc.quorum}
		}
	}
	return r
}

// startPutPhase2 fans the record out to the k closest peers found by phase
// 1, in parallel up to α (spec §4.5 put_record phase 2).
func (b *Behaviour) startPutPhase2(ev kadquery.ProgressEvent, phase1 *queryContext) {
	qc := &queryContext{
		kind:   QueryPutRecordPhase2,
		key:    phase1.key,
		record: phase1.record,
		quorum: b.cfg.ReplicationFactor,
	}
	it := kadquery.NewFixedPeersIter(ev.Result, kadquery.FixedPeersParams{
		Alpha:       b.cfg.Parallelism,
		PeerTimeout: b.cfg.PeerTimeout,
	})
	b.addQuery(b.clock.Now(), qc, it)
}

// startAddProviderPhase2 fans a provider advertisement out to the k closest
// peers found by phase 1 (spec §4.5 start_providing phase 2).
func (b *Behaviour) startAddProviderPhase2(ev kadquery.ProgressEvent, phase1 *queryContext) {
	qc := &queryContext{
		kind:     QueryAddProviderPhase2,
		key:      phase1.key,
		provider: phase1.provider,
		quorum:   b.cfg.ReplicationFactor,
	}
	it := kadquery.NewFixedPeersIter(ev.Result, kadquery.FixedPeersParams{
		Alpha:       b.cfg.Parallelism,
		PeerTimeout: b.cfg.PeerTimeout,
	})
	b.addQuery(b.clock.Now(), qc, it)
}
