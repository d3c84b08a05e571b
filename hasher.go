package pthash

import (
	"fmt"
	"log"

	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/pilots"
)

// HasherID identifies the 128-bit key hasher. Stored in the file header;
// loading a blob built with an unknown hasher fails.
type HasherID uint16

const (
	// HasherXXH128 is xxHash3-128, the default.
	HasherXXH128 HasherID = 0

	// HasherMurmur128 is MurmurHash3 x64-128. Its seed parameter is 32
	// bits wide, so the build seed is folded to 32 bits before hashing.
	HasherMurmur128 HasherID = 1
)

// String returns the hasher name.
func (id HasherID) String() string {
	name, err := hasherName(id)
	if err != nil {
		return "unknown"
	}
	return name
}

func hasherName(id HasherID) (string, error) {
	switch id {
	case HasherXXH128:
		return "xxh3-128", nil
	case HasherMurmur128:
		return "murmur3-128", nil
	}
	return "", fmt.Errorf("%w: unknown hasher ID %d", pterrors.ErrInvalidConfig, id)
}

// hash128 maps a key to its two 64-bit hash halves under seed. The first
// half drives bucketing and partition routing, the second drives slot
// placement.
func hash128(id HasherID, key []byte, seed uint64) (h1, h2 uint64) {
	switch id {
	case HasherMurmur128:
		return murmur3.Sum128WithSeed(key, uint32(seed)^uint32(seed>>32))
	default:
		h := xxh3.Hash128Seed(key, seed)
		return h.Hi, h.Lo
	}
}

// Encoder identifies the pilot table encoding. Stored in the file header.
type Encoder uint16

// The three interchangeable pilot encodings. See internal/pilots for the
// space/speed trade-offs.
const (
	EncoderDictionary    Encoder = Encoder(pilots.Dictionary)
	EncoderCompactBlocks Encoder = Encoder(pilots.CompactBlocks)
	EncoderEliasFano     Encoder = Encoder(pilots.EliasFano)
)

// String returns the encoder name.
func (e Encoder) String() string { return pilots.ID(e).String() }

// logPrintf is the verbose-mode logging sink.
func logPrintf(format string, args ...any) {
	log.Printf(format, args...)
}
