package bits

import "math/bits"

// selectSampleRate is the number of ones between consecutive position
// samples. Larger rates shrink the index; smaller rates shorten the scan
// between a sample and the target one.
const selectSampleRate = 256

// SelectIndex answers select1 queries over a BitVector: the position of
// the i-th set bit (0-based). It samples the position of every 256th one
// and scans forward by popcount from the nearest sample.
//
// For the Elias-Fano high-bits vectors this index serves, density is close
// to one set bit per two bits, so a query scans a handful of words.
type SelectIndex struct {
	v       *BitVector
	samples []uint64
}

// NewSelectIndex builds the sampled index over v. The vector must not be
// mutated afterwards.
func NewSelectIndex(v *BitVector) *SelectIndex {
	s := &SelectIndex{v: v}
	var rank uint64
	for wi, w := range v.words {
		c := uint64(bits.OnesCount64(w))
		nextSample := ((rank + selectSampleRate - 1) / selectSampleRate) * selectSampleRate
		if c > 0 && nextSample < rank+c {
			// At least one sampled rank falls inside this word.
			for w != 0 {
				tz := bits.TrailingZeros64(w)
				if rank%selectSampleRate == 0 {
					s.samples = append(s.samples, uint64(wi)*64+uint64(tz))
				}
				rank++
				w &= w - 1
			}
		} else {
			rank += c
		}
	}
	return s
}

// Select returns the position of the i-th set bit. The caller must
// guarantee i < OnesCount().
func (s *SelectIndex) Select(i uint64) uint64 {
	start := s.samples[i/selectSampleRate]
	rank := i - i%selectSampleRate
	wi := start >> 6
	// Mask off the bits below the sampled position in the first word.
	w := s.v.words[wi] &^ ((uint64(1) << (start & 63)) - 1)
	for {
		c := uint64(bits.OnesCount64(w))
		if rank+c > i {
			break
		}
		rank += c
		wi++
		w = s.v.words[wi]
	}
	// The target one is inside w; peel ones until we reach it.
	for rank < i {
		w &= w - 1
		rank++
	}
	return wi*64 + uint64(bits.TrailingZeros64(w))
}

// NumBits returns the in-memory footprint of the index in bits.
func (s *SelectIndex) NumBits() uint64 {
	return uint64(len(s.samples)) * 64
}
