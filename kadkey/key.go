// Package kadkey implements the XOR keyspace that the routing table, the
// record/provider stores and the query iterators all compare peers and
// content keys against.
package kadkey

import (
	"bytes"
	"fmt"
	"math/rand"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/minio/sha256-simd"
	"github.com/multiformats/go-multihash"
)

// KeySize is the length in bytes of a Key: SHA-256 produces a 256-bit
// keyspace per spec.
const KeySize = 32

// Key is a 256-bit value in the XOR keyspace, the canonical form any peer
// ID or content key is hashed into before distance comparisons are made.
type Key [KeySize]byte

// FromBytes hashes an arbitrary canonical byte form (a peer ID's raw bytes,
// or a content key) into the keyspace.
func FromBytes(b []byte) Key {
	return Key(sha256.Sum256(b))
}

// FromPeerID hashes a peer's canonical byte form into the keyspace.
func FromPeerID(p peer.ID) Key {
	return FromBytes([]byte(p))
}

// Bytes returns the big-endian byte representation of the key.
func (k Key) Bytes() []byte {
	return k[:]
}

// Loggable renders the key as a multihash-wrapped string suitable for
// structured logging, grounded on how go-libp2p-kad-dht formats keys for
// its query-event logs.
func (k Key) Loggable() string {
	mh, err := multihash.Encode(k.Bytes(), multihash.SHA2_256)
	if err != nil {
		return fmt.Sprintf("%x", k.Bytes())
	}
	return multihash.Multihash(mh).B58String()
}

// Distance is the XOR of two keys, compared lexicographically as a
// big-endian unsigned integer.
type Distance [KeySize]byte

// Xor computes the XOR distance between two keys.
func Xor(a, b Key) Distance {
	var d Distance
	for i := range a {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// IsZero reports whether the distance is zero, i.e. the two keys are equal.
func (d Distance) IsZero() bool {
	var zero Distance
	return d == zero
}

// Less reports whether d is strictly closer (numerically smaller) than o.
func (d Distance) Less(o Distance) bool {
	return bytes.Compare(d[:], o[:]) < 0
}

// CommonPrefixLen returns the number of leading bits shared between two
// keys — equivalently, the number of leading zero bits of their XOR
// distance.
func CommonPrefixLen(a, b Key) int {
	d := Xor(a, b)
	return leadingZeroBits(d[:])
}

// BucketIndex returns the index of the k-bucket that a key at distance d
// from the local key belongs in: 255 - leading_zero_bits(d). Distance zero
// (the local key itself) has no bucket and returns -1.
func BucketIndex(d Distance) int {
	if d.IsZero() {
		return -1
	}
	return KeySize*8 - 1 - leadingZeroBits(d[:])
}

// RandomKeyForBucket returns a random key whose distance from local falls
// in bucket bucketIndex, the lookup target the bootstrap job uses to
// refresh a specific, otherwise-idle bucket (spec §4.6: "random lookups
// across each non-empty bucket index").
func RandomKeyForBucket(local Key, bucketIndex int, rng *rand.Rand) Key {
	lz := KeySize*8 - 1 - bucketIndex
	var d Distance
	rng.Read(d[:])
	zeroLeadingBits(d[:], lz)
	setBit(d[:], lz)
	return Xor(local, Key(d))
}

func zeroLeadingBits(b []byte, n int) {
	full := n / 8
	for i := 0; i < full && i < len(b); i++ {
		b[i] = 0
	}
	if rem := n % 8; rem > 0 && full < len(b) {
		b[full] &= byte(0xFF) >> uint(rem)
	}
}

func setBit(b []byte, pos int) {
	byteIdx := pos / 8
	if byteIdx >= len(b) {
		return
	}
	b[byteIdx] |= 1 << uint(7-pos%8)
}

func leadingZeroBits(b []byte) int {
	n := 0
	for _, by := range b {
		if by == 0 {
			n += 8
			continue
		}
		for i := 7; i >= 0; i-- {
			if by&(1<<uint(i)) != 0 {
				return n
			}
			n++
		}
	}
	return n
}
