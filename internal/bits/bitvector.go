package bits

import (
	"encoding/binary"
	"math/bits"

	pterrors "github.com/tamirms/pthash/errors"
)

// BitVector is a fixed-size bit array backed by 64-bit words.
//
// During construction it is written through Set by a single owner; finished
// vectors are read-only and safe for concurrent Get calls.
type BitVector struct {
	words []uint64
	size  uint64
}

// NewBitVector creates a zeroed bit vector of n bits.
func NewBitVector(n uint64) *BitVector {
	return &BitVector{
		words: make([]uint64, (n+63)/64),
		size:  n,
	}
}

// Size returns the number of bits.
func (v *BitVector) Size() uint64 { return v.size }

// Set sets bit i. The caller must guarantee i < Size().
func (v *BitVector) Set(i uint64) {
	v.words[i>>6] |= uint64(1) << (i & 63)
}

// Clear clears bit i. The caller must guarantee i < Size().
func (v *BitVector) Clear(i uint64) {
	v.words[i>>6] &^= uint64(1) << (i & 63)
}

// Get reports whether bit i is set. The caller must guarantee i < Size().
func (v *BitVector) Get(i uint64) bool {
	return v.words[i>>6]&(uint64(1)<<(i&63)) != 0
}

// OnesCount returns the total number of set bits.
func (v *BitVector) OnesCount() uint64 {
	var c uint64
	for _, w := range v.words {
		c += uint64(bits.OnesCount64(w))
	}
	return c
}

// Words exposes the backing words for select indexing and serialization.
func (v *BitVector) Words() []uint64 { return v.words }

// NumBits returns the in-memory footprint in bits.
func (v *BitVector) NumBits() uint64 {
	return uint64(len(v.words)) * 64
}

// AppendTo serializes the vector as [size u64][word count u64][words...],
// all little-endian.
func (v *BitVector) AppendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, v.size)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(v.words)))
	for _, w := range v.words {
		dst = binary.LittleEndian.AppendUint64(dst, w)
	}
	return dst
}

// ParseBitVector decodes a vector serialized by AppendTo and returns the
// remaining bytes.
func ParseBitVector(data []byte) (*BitVector, []byte, error) {
	if len(data) < 16 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	size := binary.LittleEndian.Uint64(data[0:8])
	nw := binary.LittleEndian.Uint64(data[8:16])
	if nw != (size+63)/64 {
		return nil, nil, pterrors.ErrCorrupted
	}
	data = data[16:]
	if uint64(len(data)) < nw*8 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	words := make([]uint64, nw)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return &BitVector{words: words, size: size}, data[nw*8:], nil
}
