package kbucket

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// bucket holds at most capacity entries plus a single pending replacement
// candidate (spec §4.1, §3 invariants).
type bucket struct {
	capacity int
	entries  []*entry
	pending  *pendingEntry
}

func newBucket(capacity int) *bucket {
	return &bucket{capacity: capacity}
}

func (b *bucket) len() int {
	return len(b.entries)
}

func (b *bucket) find(p peer.ID) *entry {
	for _, e := range b.entries {
		if e.peer == p {
			return e
		}
	}
	return nil
}

func (b *bucket) indexOf(p peer.ID) int {
	for i, e := range b.entries {
		if e.peer == p {
			return i
		}
	}
	return -1
}

// touch updates p's lastSeen timestamp (the LRU ordering key) and status;
// the entry keeps its position in the slice.
func (b *bucket) touch(p peer.ID, status Status, now time.Time) bool {
	i := b.indexOf(p)
	if i < 0 {
		return false
	}
	e := b.entries[i]
	e.status = status
	e.lastSeen = now
	return true
}

func (b *bucket) remove(p peer.ID) *entry {
	i := b.indexOf(p)
	if i < 0 {
		return nil
	}
	e := b.entries[i]
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	return e
}

func (b *bucket) insert(e *entry) {
	b.entries = append(b.entries, e)
}

// leastRecentlySeenDisconnected returns the index of the oldest entry with
// Disconnected status, or -1 if none.
func (b *bucket) leastRecentlySeenDisconnected() int {
	idx := -1
	var oldest time.Time
	for i, e := range b.entries {
		if e.status != Disconnected {
			continue
		}
		if idx < 0 || e.lastSeen.Before(oldest) {
			idx = i
			oldest = e.lastSeen
		}
	}
	return idx
}

func (b *bucket) allConnected() bool {
	for _, e := range b.entries {
		if e.status != Connected {
			return false
		}
	}
	return true
}

func (b *bucket) peers() []peer.ID {
	out := make([]peer.ID, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.peer
	}
	return out
}

// checkPending resolves the pending candidate once its deadline has
// passed: if the bucket gained a free slot in the meantime the candidate
// takes it; otherwise it replaces the least-recently-seen disconnected
// entry, or is dropped if no entry is disconnected. Returns the evicted
// peer, if any, and whether a promotion happened.
func (b *bucket) checkPending(now time.Time) (evicted peer.ID, promoted bool) {
	if b.pending == nil || now.Before(b.pending.deadline) {
		return "", false
	}
	p := b.pending
	b.pending = nil

	if len(b.entries) < b.capacity {
		b.insert(p.entry)
		return "", true
	}

	idx := b.leastRecentlySeenDisconnected()
	if idx < 0 {
		// No disconnected entry appeared before the deadline: drop the
		// candidate per spec §4.1.
		return "", false
	}
	old := b.entries[idx]
	b.entries = append(b.entries[:idx], b.entries[idx+1:]...)
	b.insert(p.entry)
	return old.peer, true
}
