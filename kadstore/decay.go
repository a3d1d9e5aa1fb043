package kadstore

import (
	"time"

	u "github.com/ipfs/go-ipfs-util"
)

// expDecay wraps go-ipfs-util's exponential decay helper, used to shrink a
// freshly received provider record's remaining validity by how many
// replication hops it has already travelled.
func expDecay(ttl time.Duration, factor float64) time.Duration {
	return u.ExpDecay(ttl, factor)
}
