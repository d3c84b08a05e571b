package bits

import (
	"encoding/binary"
	"math/bits"

	pterrors "github.com/tamirms/pthash/errors"
)

// CompactVector stores n unsigned integers at a fixed bit width, packed
// back to back across 64-bit words. Access is O(1): a value spans at most
// two adjacent words because widths are capped at 64.
type CompactVector struct {
	words []uint64
	size  uint64
	width uint8
}

// WidthFor returns the minimum bit width able to represent max.
// A width of zero (max == 0) is valid: the vector stores no words and
// Access always returns 0.
func WidthFor(max uint64) uint8 {
	if max == 0 {
		return 0
	}
	return uint8(bits.Len64(max))
}

// NewCompactVector builds a packed vector from values at the given width.
// The caller must guarantee every value fits in width bits.
func NewCompactVector(values []uint64, width uint8) *CompactVector {
	v := &CompactVector{
		size:  uint64(len(values)),
		width: width,
	}
	if width == 0 {
		return v
	}
	totalBits := v.size * uint64(width)
	v.words = make([]uint64, (totalBits+63)/64)
	for i, val := range values {
		v.set(uint64(i), val)
	}
	return v
}

func (v *CompactVector) set(i, val uint64) {
	pos := i * uint64(v.width)
	word := pos >> 6
	shift := pos & 63
	v.words[word] |= val << shift
	if shift+uint64(v.width) > 64 {
		v.words[word+1] |= val >> (64 - shift)
	}
}

// Access returns the i-th value. The caller must guarantee i < Size().
func (v *CompactVector) Access(i uint64) uint64 {
	if v.width == 0 {
		return 0
	}
	pos := i * uint64(v.width)
	word := pos >> 6
	shift := pos & 63
	val := v.words[word] >> shift
	if shift+uint64(v.width) > 64 {
		val |= v.words[word+1] << (64 - shift)
	}
	if v.width == 64 {
		return val
	}
	return val & ((uint64(1) << v.width) - 1)
}

// Size returns the number of stored values.
func (v *CompactVector) Size() uint64 { return v.size }

// Width returns the per-value bit width.
func (v *CompactVector) Width() uint8 { return v.width }

// NumBits returns the in-memory footprint in bits.
func (v *CompactVector) NumBits() uint64 {
	return uint64(len(v.words)) * 64
}

// AppendTo serializes the vector as [size u64][width u8][words...].
func (v *CompactVector) AppendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, v.size)
	dst = append(dst, v.width)
	for _, w := range v.words {
		dst = binary.LittleEndian.AppendUint64(dst, w)
	}
	return dst
}

// ParseCompactVector decodes a vector serialized by AppendTo and returns
// the remaining bytes.
func ParseCompactVector(data []byte) (*CompactVector, []byte, error) {
	if len(data) < 9 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	size := binary.LittleEndian.Uint64(data[0:8])
	width := data[8]
	if width > 64 {
		return nil, nil, pterrors.ErrCorrupted
	}
	data = data[9:]
	var nw uint64
	if width > 0 {
		nw = (size*uint64(width) + 63) / 64
	}
	if uint64(len(data)) < nw*8 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	words := make([]uint64, nw)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return &CompactVector{words: words, size: size, width: width}, data[nw*8:], nil
}
