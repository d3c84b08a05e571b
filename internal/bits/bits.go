// Package bits provides the low-level bit-packed containers and range
// reduction primitives shared by the bucketers, the pilot encoders and the
// search loop.
package bits

import "math/bits"

// FastRange32 maps a 64-bit hash uniformly to [0, n) returning uint32.
// Uses the "fastrange" technique: multiply and take high bits.
// This is the standard way to map hashes to ranges without modulo bias.
func FastRange32(hash uint64, n uint32) uint32 {
	if n == 0 {
		return 0
	}
	hi, _ := bits.Mul64(hash, uint64(n))
	return uint32(hi)
}

// FastRange64 maps a 64-bit hash uniformly to [0, n) returning uint64.
// Same multiply-high technique as FastRange32 widened to 64-bit ranges.
func FastRange64(hash, n uint64) uint64 {
	hi, _ := bits.Mul64(hash, n)
	return hi
}
