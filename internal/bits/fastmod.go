package bits

import "math/bits"

// M64 is the precomputed 128-bit magic constant for 64-bit fastmod,
// M = ceil(2^128 / d), stored as {lo, hi}.
//
// Fastmod (Lemire et al.) turns the modulo in the hot position computation
// into two multiplications. The divisor (the table size) is fixed for the
// whole search, so M is computed once per build and stored alongside it.
type M64 struct {
	Lo, Hi uint64
}

// ComputeM64 computes M = ceil(2^128 / d). Panics if d == 0; divisors are
// validated by the configuration layer before any M64 is computed.
func ComputeM64(d uint64) M64 {
	if d == 0 {
		panic("bits: ComputeM64 with zero divisor")
	}
	// floor((2^128 - 1) / d) via schoolbook division, then + 1.
	qh := ^uint64(0) / d
	rh := ^uint64(0) - qh*d
	ql, _ := bits.Div64(rh, ^uint64(0), d)

	var m M64
	var carry uint64
	m.Lo, carry = bits.Add64(ql, 1, 0)
	m.Hi, _ = bits.Add64(qh, 0, carry)
	return m
}

// mulHi128x64 returns the high 64 bits of the 192-bit product
// (hi<<64 | lo) * d.
func mulHi128x64(hi, lo, d uint64) uint64 {
	phh, phl := bits.Mul64(hi, d)
	plh, _ := bits.Mul64(lo, d)
	_, carry := bits.Add64(phl, plh, 0)
	res, _ := bits.Add64(phh, 0, carry)
	return res
}

// FastMod64 computes a % d using the precomputed magic m for d.
func FastMod64(a uint64, m M64, d uint64) uint64 {
	// lowbits = low 128 bits of M * a.
	p1h, p1l := bits.Mul64(m.Lo, a)
	p0l := m.Hi * a
	lowHi := p1h + p0l
	return mulHi128x64(lowHi, p1l, d)
}

// FastDiv64 computes a / d using the precomputed magic m for d, d > 1.
func FastDiv64(a uint64, m M64) uint64 {
	return mulHi128x64(m.Hi, m.Lo, a)
}
