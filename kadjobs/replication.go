package kadjobs

import (
	"time"

	"github.com/libp2p/go-kad-core/kadstore"
)

// ReplicationJob periodically re-publishes every record this node has
// itself stored, so that it survives the record's TTL on other hosts (spec
// §4.6: "the replication job walks the local record store on the
// republish_interval and reissues put_record for every key still owned by
// self").
type ReplicationJob struct {
	ticker *Ticker
	store  *kadstore.RecordStore
	isSelf func(*kadstore.Record) bool
}

// NewReplicationJob builds a job that fires every interval; interval <= 0
// disables periodic republication (the job then runs only after Asap).
func NewReplicationJob(interval time.Duration, store *kadstore.RecordStore, isSelf func(*kadstore.Record) bool) *ReplicationJob {
	return &ReplicationJob{
		ticker: NewTicker(interval),
		store:  store,
		isSelf: isSelf,
	}
}

// Asap requests an out-of-schedule run on the next Poll.
func (j *ReplicationJob) Asap() {
	j.ticker.Asap()
}

// Stop releases the job's ticker resources.
func (j *ReplicationJob) Stop() {
	j.ticker.Stop()
}

// Poll checks whether the job is due and, if so, purges expired records and
// returns the keys that must be re-published. The caller is responsible for
// actually issuing the put_record queries and for respecting the query
// pool's saturation (spec §4.6: jobs "refuse to issue new work while the
// pool is saturated"), which is why this method never touches a Pool
// itself — it only reports work, it does not dispatch it.
func (j *ReplicationJob) Poll() [][]byte {
	if !j.ticker.Due() {
		return nil
	}
	n := j.store.GC()
	if n > 0 {
		log.Debugf("replication: purged %d expired records", n)
	}
	keys := j.store.LocalKeys(j.isSelf)
	log.Debugf("replication: republishing %d keys", len(keys))
	return keys
}
