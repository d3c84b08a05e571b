package search

import "github.com/tamirms/pthash/internal/bits"

// FillFreeSlots builds the minimal-output remap table. For every virtual
// position v in [numKeys, tableSize), ascending, an occupied v consumes
// the next ascending free slot below numKeys. Unoccupied virtual
// positions repeat the previously assigned slot: member keys never land
// on them, but the sequence must stay monotone for Elias-Fano encoding
// and in range for non-member queries.
//
// The result has exactly tableSize-numKeys entries, every entry below
// numKeys, and is non-decreasing.
func FillFreeSlots(taken *bits.BitVector, numKeys, tableSize uint64) []uint64 {
	if tableSize <= numKeys {
		return nil
	}
	slots := make([]uint64, 0, tableSize-numKeys)
	var next, last uint64
	for v := numKeys; v < tableSize; v++ {
		if taken.Get(v) {
			for taken.Get(next) {
				next++
			}
			slots = append(slots, next)
			last = next
			next++
		} else {
			slots = append(slots, last)
		}
	}
	return slots
}
