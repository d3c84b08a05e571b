// Package eliasfano implements the Elias-Fano encoding of monotone
// sequences with constant-time random access.
//
// A sequence of n non-decreasing values bounded by a universe u is split
// into low bits (stored verbatim at a fixed width l = floor(log2(u/n)))
// and high bits (stored in negated unary inside a bit vector with a
// sampled select index). Access(i) is a select1 plus a packed read.
package eliasfano

import (
	"encoding/binary"
	mathbits "math/bits"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/bits"
)

// Sequence is an Elias-Fano encoded monotone sequence.
type Sequence struct {
	high    *bits.BitVector
	highSel *bits.SelectIndex
	low     *bits.CompactVector
	size    uint64
	lowBits uint8
}

// New encodes values, which must be non-decreasing. An empty sequence is
// valid and occupies only its header.
func New(values []uint64) *Sequence {
	n := uint64(len(values))
	s := &Sequence{size: n}
	if n == 0 {
		s.high = bits.NewBitVector(0)
		s.highSel = bits.NewSelectIndex(s.high)
		s.low = bits.NewCompactVector(nil, 0)
		return s
	}
	universe := values[n-1] + 1
	s.lowBits = lowBitsFor(universe, n)

	lows := make([]uint64, n)
	var lowMask uint64
	if s.lowBits > 0 {
		lowMask = (uint64(1) << s.lowBits) - 1
	}
	for i, v := range values {
		lows[i] = v & lowMask
	}
	s.low = bits.NewCompactVector(lows, s.lowBits)

	highUniverse := (universe >> s.lowBits) + n + 1
	s.high = bits.NewBitVector(highUniverse)
	for i, v := range values {
		s.high.Set((v >> s.lowBits) + uint64(i))
	}
	s.highSel = bits.NewSelectIndex(s.high)
	return s
}

// lowBitsFor returns floor(log2(universe/n)), clamped to [0, 64).
func lowBitsFor(universe, n uint64) uint8 {
	if universe <= n {
		return 0
	}
	return uint8(mathbits.Len64(universe/n) - 1)
}

// Access returns the i-th value. The caller must guarantee i < Size().
func (s *Sequence) Access(i uint64) uint64 {
	high := s.highSel.Select(i) - i
	return (high << s.lowBits) | s.low.Access(i)
}

// Size returns the number of encoded values.
func (s *Sequence) Size() uint64 { return s.size }

// NumBits returns the in-memory footprint in bits.
func (s *Sequence) NumBits() uint64 {
	return s.high.NumBits() + s.highSel.NumBits() + s.low.NumBits()
}

// AppendTo serializes the sequence. The select index is rebuilt on parse
// rather than stored; it is derived data.
func (s *Sequence) AppendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, s.size)
	dst = append(dst, s.lowBits)
	dst = s.high.AppendTo(dst)
	dst = s.low.AppendTo(dst)
	return dst
}

// Parse decodes a sequence serialized by AppendTo and returns the
// remaining bytes.
func Parse(data []byte) (*Sequence, []byte, error) {
	if len(data) < 9 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	s := &Sequence{
		size:    binary.LittleEndian.Uint64(data[0:8]),
		lowBits: data[8],
	}
	if s.lowBits >= 64 {
		return nil, nil, pterrors.ErrCorrupted
	}
	data = data[9:]
	var err error
	s.high, data, err = bits.ParseBitVector(data)
	if err != nil {
		return nil, nil, err
	}
	s.low, data, err = bits.ParseCompactVector(data)
	if err != nil {
		return nil, nil, err
	}
	if s.low.Size() != s.size || s.high.OnesCount() != s.size {
		return nil, nil, pterrors.ErrCorrupted
	}
	s.highSel = bits.NewSelectIndex(s.high)
	return s, data, nil
}
