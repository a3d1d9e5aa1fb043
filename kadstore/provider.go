package kadstore

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// ProviderRecord is an advertisement that a peer can serve some key (spec
// §3).
type ProviderRecord struct {
	Key      []byte
	Provider peer.ID
	Expires  *time.Time
	Addrs    []ma.Multiaddr
}

func (p *ProviderRecord) expired(now time.Time) bool {
	return p.Expires != nil && now.After(*p.Expires)
}

// providerDecay safely shrinks a provider record's remaining validity as a
// function of how many hops deep in a replicated put it travelled,
// clamping to zero for arbitrarily large factors instead of overflowing
// (spec §8: "Exponential expiration decrease is safe for all (ttl,
// factor)").
func providerDecay(ttl time.Duration, factor float64) time.Duration {
	return expDecay(ttl, factor)
}
