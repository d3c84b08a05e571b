package pthash

import (
	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/bits"
	"github.com/tamirms/pthash/internal/search"
)

// Partitioned composes independent per-partition functions behind a
// partition router. Global position = partition offset + local position.
//
// Like Single, a Partitioned is immutable and safe for concurrent Lookup
// calls.
type Partitioned struct {
	seed    uint64
	numKeys uint64
	minimal bool
	hasher  HasherID

	parts   []*Single
	offsets []uint64 // len(parts)+1 prefix sums; derived on load

	stats BuildStats
}

// Lookup returns the global position of key. Minimal output covers
// exactly [0, NumKeys()); otherwise positions are unique within
// [0, TableSize()).
func (f *Partitioned) Lookup(key []byte) uint64 {
	h1, h2 := hash128(f.hasher, key, f.seed)
	part := bits.FastRange64(h1, uint64(len(f.parts)))
	sub := f.parts[part]
	if sub.numKeys == 0 {
		// Only non-member keys route to an empty partition; its span is
		// zero, so answer from slot 0 to stay in the global range.
		return 0
	}
	return f.offsets[part] + sub.lookupHash(search.HashPilot(h1, sub.seed), h2)
}

// NumKeys returns the number of keys the function was built over.
func (f *Partitioned) NumKeys() uint64 { return f.numKeys }

// TableSize returns the total position range: the sum of partition table
// sizes, or NumKeys() for minimal output.
func (f *Partitioned) TableSize() uint64 { return f.offsets[len(f.parts)] }

// NumPartitions returns the partition count.
func (f *Partitioned) NumPartitions() int { return len(f.parts) }

// Minimal reports whether Lookup is onto [0, NumKeys()).
func (f *Partitioned) Minimal() bool { return f.minimal }

// Seed returns the construction seed, pinned or discovered.
func (f *Partitioned) Seed() uint64 { return f.seed }

// NumBits returns the size of the queryable structure in bits.
func (f *Partitioned) NumBits() uint64 {
	var n uint64
	for _, p := range f.parts {
		n += p.NumBits()
	}
	n += uint64(len(f.offsets)) * 64
	return n
}

// BitsPerKey returns NumBits() / NumKeys().
func (f *Partitioned) BitsPerKey() float64 {
	if f.numKeys == 0 {
		return 0
	}
	return float64(f.NumBits()) / float64(f.numKeys)
}

// BuildStats returns the construction diagnostics.
func (f *Partitioned) BuildStats() BuildStats { return f.stats }

// computeOffsets fills the prefix-sum table from partition sizes.
func (f *Partitioned) computeOffsets() {
	f.offsets = make([]uint64, len(f.parts)+1)
	for i, p := range f.parts {
		span := p.tableSize
		if f.minimal {
			span = p.numKeys
		}
		f.offsets[i+1] = f.offsets[i] + span
	}
}

func (f *Partitioned) appendCore(dst []byte) []byte {
	dst = appendUint64(dst, uint64(len(f.parts)))
	for _, p := range f.parts {
		dst = p.appendCore(dst)
	}
	return dst
}

func parsePartitionedCore(data []byte, minimal bool, hasher HasherID,
	seed, numKeys uint64) (*Partitioned, []byte, error) {

	if len(data) < 8 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	numParts := readUint64(data[0:8])
	data = data[8:]
	if numParts == 0 || numParts > uint64(len(data)) {
		// Each partition needs at least its fixed prefix; a huge count is
		// a corrupt blob, not an allocation request.
		return nil, nil, pterrors.ErrCorrupted
	}
	f := &Partitioned{
		seed:    seed,
		numKeys: numKeys,
		minimal: minimal,
		hasher:  hasher,
		parts:   make([]*Single, numParts),
	}
	var total uint64
	for i := range f.parts {
		var err error
		f.parts[i], data, err = parseSingleCore(data, minimal, hasher)
		if err != nil {
			return nil, nil, err
		}
		total += f.parts[i].numKeys
	}
	if total != numKeys {
		return nil, nil, pterrors.ErrCorrupted
	}
	f.computeOffsets()
	return f, data, nil
}
