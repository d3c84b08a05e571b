// Package search implements the pilot search at the heart of construction:
// a backtracking-free greedy placement of buckets, largest first, into a
// shared slot table.
package search

import "github.com/tamirms/pthash/internal/bits"

// pilotMixC is the odd constant mixed into the pilot before finalizing.
// Being odd, multiplication by it is a bijection on uint64.
const pilotMixC = 0x517cc1b727220a95

// pilotCacheSize is the number of hashed pilots precomputed per seed.
// Nearly every bucket settles below this, so the hot loop avoids the
// mixer entirely.
const pilotCacheSize = 4096

// HashPilot mixes a pilot value with the seed into a well-distributed
// 64-bit displacement. The SplitMix64 finalizer (Stafford variant) makes
// consecutive pilots behave as independent trials; without it the raw
// multiplication leaves nearby pilots correlated and the search needs
// visibly more attempts per bucket.
func HashPilot(pilot, seed uint64) uint64 {
	x := pilotMixC * (pilot ^ seed)
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Position maps a key's second hash half and a hashed pilot to a table
// slot. The xor is the secondary displacement step; the reduction is
// Lemire fastmod with the precomputed magic for tableSize.
func Position(h2, hashedPilot uint64, m bits.M64, tableSize uint64) uint64 {
	return bits.FastMod64(h2^hashedPilot, m, tableSize)
}

// newPilotCache precomputes the first pilotCacheSize hashed pilots for a
// seed.
func newPilotCache(seed uint64) []uint64 {
	cache := make([]uint64, pilotCacheSize)
	for i := range cache {
		cache[i] = HashPilot(uint64(i), seed)
	}
	return cache
}
