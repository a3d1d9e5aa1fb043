package kad

import (
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-kad-core/kadkey"
	"github.com/libp2p/go-kad-core/kadproto"
	"github.com/libp2p/go-kad-core/kadstore"
)

// OnInboundRequest answers a request arriving on an established connection,
// serving it from the local stores and surfacing it to the user via an
// InboundRequest event (spec §4.7, §4.8). FindNode requests and store
// writes refused in Client mode emit no event. Every response carries up to k
// closer peers relative to the request's key, excluding the requester and
// self.
func (b *Behaviour) OnInboundRequest(from peer.ID, req kadproto.Request) kadproto.Response {
	target := kadkey.FromBytes(req.Key)
	nearest := b.rt.NearestPeers(target, b.cfg.ReplicationFactor)
	closer := kadproto.CloserPeers(b.self, from, nearest, func(p peer.ID) []ma.Multiaddr {
		addrs, _, _ := b.rt.Find(p)
		return addrs
	})
	resp := kadproto.Response{CloserPeers: closer}

	switch req.Type {
	case kadproto.FindNode:
		// closer peers only, already populated above.

	case kadproto.GetProviders:
		for _, pr := range b.providerStore.Providers(req.Key) {
			resp.Providers = append(resp.Providers, kadproto.PeerInfo{ID: pr.Provider, Addrs: pr.Addrs})
		}
		b.reportInbound(req, from, nil)

	case kadproto.AddProvider:
		if b.mode == ModeClient {
			resp.Err = ErrClientModeRefusesWrites
			break
		}
		rec := &kadstore.ProviderRecord{Key: req.Key, Provider: req.Provider.ID, Addrs: req.Provider.Addrs}
		if err := b.providerStore.AddProvider(req.Key, rec); err != nil {
			resp.Err = err
		}
		b.reportInbound(req, from, nil)

	case kadproto.GetValue:
		if rec, ok := b.recordStore.Get(req.Key); ok {
			resp.Record = rec
		}
		b.reportInbound(req, from, nil)

	case kadproto.PutValue:
		if b.mode == ModeClient {
			resp.Err = ErrClientModeRefusesWrites
			break
		}
		if b.cfg.RecordFiltering == FilterBoth {
			b.reportInbound(req, from, req.Record)
			break
		}
		if err := b.recordStore.Put(req.Record); err != nil {
			resp.Err = err
		} else {
			resp.RecordEcho = req.Record
		}
		b.reportInbound(req, from, nil)
	}

	return resp
}

func (b *Behaviour) reportInbound(req kadproto.Request, from peer.ID, unfiltered *kadstore.Record) {
	b.events = append(b.events, Event{
		Kind: EventInboundRequest,
		Request: InboundRequest{
			Type:      req.Type,
			From:      from,
			Key:       req.Key,
			PutRecord: unfiltered,
		},
	})
}

// AcceptRecord inserts rec into the local record store; the call a
// FilterBoth user makes after inspecting an InboundRequest's PutRecord
// payload (spec §4.8, §6 record_filtering).
func (b *Behaviour) AcceptRecord(rec *kadstore.Record) error {
	return b.recordStore.Put(rec)
}
