// Package kadstore implements the bounded, TTL-expiring record and
// provider stores of spec §4.2.
package kadstore

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Record is an opaque key/value pair held by the DHT (spec §3).
type Record struct {
	Key       []byte
	Value     []byte
	Publisher *peer.ID
	Expires   *time.Time
}

// IsLocal reports whether self authored this record, the marker that
// determines whether the replication job republishes it (spec §3
// Lifecycles).
func (r *Record) IsLocal(self peer.ID) bool {
	return r.Publisher != nil && *r.Publisher == self
}

func (r *Record) expired(now time.Time) bool {
	return r.Expires != nil && now.After(*r.Expires)
}
