// Package pilots compresses the per-bucket pilot table into one of several
// interchangeable constant-time-access forms.
//
// The encoder is chosen at build time and recorded in the serialized
// header; it cannot change after construction. Every encoder round-trips
// exactly: Access(i) returns precisely the pilot the builder handed in.
package pilots

import (
	"fmt"

	pterrors "github.com/tamirms/pthash/errors"
)

// ID identifies a pilot encoding strategy. Stored in the file header.
type ID uint16

const (
	// Dictionary encodes the dense-bucket and sparse-bucket halves of the
	// pilot table with separate value dictionaries. Good general-purpose
	// space/speed balance.
	Dictionary ID = 0

	// CompactBlocks bit-packs fixed-size blocks of pilots, each block at
	// the width of its local maximum. Fastest access, slightly larger.
	CompactBlocks ID = 1

	// EliasFano stores the prefix sums of the pilot table as an
	// Elias-Fano sequence. Strong space guarantees, two selects per
	// access.
	EliasFano ID = 2
)

// String returns the encoder name.
func (id ID) String() string {
	switch id {
	case Dictionary:
		return "dictionary"
	case CompactBlocks:
		return "compact-blocks"
	case EliasFano:
		return "elias-fano"
	default:
		return "unknown"
	}
}

// Encoder is the read side of an encoded pilot table.
//
// Encoders are immutable after construction and safe for concurrent
// Access calls.
type Encoder interface {
	// Access returns the pilot of bucket i in O(1).
	Access(i uint64) uint64

	// Size returns the number of encoded pilots.
	Size() uint64

	// NumBits returns the in-memory footprint in bits.
	NumBits() uint64

	// ID returns the strategy tag for header encoding.
	ID() ID

	// AppendTo serializes the encoder, ID prefix included.
	AppendTo(dst []byte) []byte
}

// New encodes the pilot table with the given strategy. numDense is the
// dense/sparse boundary of the skew bucketer; only Dictionary uses it.
func New(id ID, pilots []uint64, numDense uint64) (Encoder, error) {
	switch id {
	case Dictionary:
		return newDictionary(pilots, numDense), nil
	case CompactBlocks:
		return newCompactBlocks(pilots), nil
	case EliasFano:
		return newEliasFano(pilots), nil
	}
	return nil, fmt.Errorf("%w: unknown pilot encoder ID %d", pterrors.ErrInvalidConfig, id)
}

// Parse decodes an encoder serialized by AppendTo and returns the
// remaining bytes.
func Parse(data []byte) (Encoder, []byte, error) {
	if len(data) < 2 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	id := ID(uint16(data[0]) | uint16(data[1])<<8)
	data = data[2:]
	switch id {
	case Dictionary:
		return parseDictionary(data)
	case CompactBlocks:
		return parseCompactBlocks(data)
	case EliasFano:
		return parseEliasFano(data)
	}
	return nil, nil, fmt.Errorf("%w: unknown pilot encoder ID %d", pterrors.ErrCorrupted, id)
}

func appendID(dst []byte, id ID) []byte {
	return append(dst, byte(id), byte(id>>8))
}
