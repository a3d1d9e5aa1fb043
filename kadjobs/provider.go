package kadjobs

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/libp2p/go-kad-core/kadstore"
)

// ProviderJob periodically re-announces every key this node provides, so
// that its provider records survive the provider_ttl on other hosts (spec
// §4.6: the provider-republish counterpart of ReplicationJob, driven by the
// same publication_interval knob family).
type ProviderJob struct {
	ticker *Ticker
	store  *kadstore.ProviderStore
	self   peer.ID
}

// NewProviderJob builds a job that fires every interval for self's own
// provider records.
func NewProviderJob(interval time.Duration, store *kadstore.ProviderStore, self peer.ID) *ProviderJob {
	return &ProviderJob{
		ticker: NewTicker(interval),
		store:  store,
		self:   self,
	}
}

// Asap requests an out-of-schedule run on the next Poll.
func (j *ProviderJob) Asap() {
	j.ticker.Asap()
}

// Stop releases the job's ticker resources.
func (j *ProviderJob) Stop() {
	j.ticker.Stop()
}

// Poll checks whether the job is due and, if so, purges expired provider
// entries and returns the keys self must re-announce via add_provider.
func (j *ProviderJob) Poll() [][]byte {
	if !j.ticker.Due() {
		return nil
	}
	n := j.store.GC()
	if n > 0 {
		log.Debugf("provider: purged %d expired provider entries", n)
	}
	keys := j.store.ProvidedKeys(j.self)
	log.Debugf("provider: re-announcing %d keys", len(keys))
	return keys
}
