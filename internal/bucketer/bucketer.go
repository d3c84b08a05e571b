// Package bucketer maps first-stage hash values to bucket ids.
//
// Two schemes are provided. The skew bucketer biases bucket-size variance:
// 60% of the hash space lands in the first 30% of buckets, so those
// buckets run larger than average. Larger buckets are placed first during
// the pilot search, while the table is still mostly empty, which sharply
// reduces expected retries. The uniform bucketer is kept for contexts
// where variance is unwanted, such as partition routing.
package bucketer

import (
	"encoding/binary"
	"math"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/bits"
)

const (
	// skewSpaceFraction is the fraction of the 64-bit hash space routed
	// to the dense buckets.
	skewSpaceFraction = 0.6

	// skewBucketFraction is the fraction of buckets that are dense.
	skewBucketFraction = 0.3
)

// skewThreshold is skewSpaceFraction of the 64-bit hash space.
var skewThreshold = uint64(skewSpaceFraction * float64(math.MaxUint64))

// Skew is the skewed bucketer used by single-function builds.
// It is pure and reproducible bit-for-bit from its bucket count.
type Skew struct {
	numDense  uint64
	numSparse uint64
	mDense    bits.M64
	mSparse   bits.M64
}

// NewSkew creates a skew bucketer over numBuckets > 0 buckets.
func NewSkew(numBuckets uint64) *Skew {
	numDense := uint64(skewBucketFraction * float64(numBuckets))
	if numDense == 0 {
		numDense = 1
	}
	if numDense >= numBuckets {
		numDense = numBuckets
	}
	b := &Skew{
		numDense:  numDense,
		numSparse: numBuckets - numDense,
	}
	b.mDense = bits.ComputeM64(b.numDense)
	if b.numSparse > 0 {
		b.mSparse = bits.ComputeM64(b.numSparse)
	}
	return b
}

// Bucket maps a first-stage hash to a bucket id in [0, NumBuckets()).
func (b *Skew) Bucket(hash uint64) uint64 {
	if hash < skewThreshold || b.numSparse == 0 {
		return bits.FastMod64(hash, b.mDense, b.numDense)
	}
	return b.numDense + bits.FastMod64(hash, b.mSparse, b.numSparse)
}

// NumBuckets returns the total bucket count.
func (b *Skew) NumBuckets() uint64 { return b.numDense + b.numSparse }

// NumDense returns the number of dense buckets. The dual-dictionary pilot
// encoder splits its halves at this boundary.
func (b *Skew) NumDense() uint64 { return b.numDense }

// AppendTo serializes the bucketer as [numDense u64][numSparse u64].
// The fastmod magics are recomputed on parse.
func (b *Skew) AppendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, b.numDense)
	return binary.LittleEndian.AppendUint64(dst, b.numSparse)
}

// ParseSkew decodes a bucketer serialized by AppendTo and returns the
// remaining bytes.
func ParseSkew(data []byte) (*Skew, []byte, error) {
	if len(data) < 16 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	b := &Skew{
		numDense:  binary.LittleEndian.Uint64(data[0:8]),
		numSparse: binary.LittleEndian.Uint64(data[8:16]),
	}
	if b.numDense == 0 {
		return nil, nil, pterrors.ErrCorrupted
	}
	b.mDense = bits.ComputeM64(b.numDense)
	if b.numSparse > 0 {
		b.mSparse = bits.ComputeM64(b.numSparse)
	}
	return b, data[16:], nil
}

// Uniform maps hashes to buckets without skew, via fastrange.
type Uniform struct {
	numBuckets uint64
}

// NewUniform creates a uniform bucketer over numBuckets > 0 buckets.
func NewUniform(numBuckets uint64) *Uniform {
	return &Uniform{numBuckets: numBuckets}
}

// Bucket maps a hash to a bucket id in [0, NumBuckets()).
func (b *Uniform) Bucket(hash uint64) uint64 {
	return bits.FastRange64(hash, b.numBuckets)
}

// NumBuckets returns the total bucket count.
func (b *Uniform) NumBuckets() uint64 { return b.numBuckets }
