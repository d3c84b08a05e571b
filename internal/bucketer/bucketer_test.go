package bucketer

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"
)

const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

func TestSkewBucketBounds(t *testing.T) {
	rng := newTestRNG(t)
	for _, n := range []uint64{1, 2, 3, 10, 1000, 1 << 20} {
		b := NewSkew(n)
		if b.NumBuckets() != n {
			t.Fatalf("n=%d: NumBuckets = %d", n, b.NumBuckets())
		}
		if b.NumDense() == 0 || b.NumDense() > n {
			t.Fatalf("n=%d: NumDense = %d", n, b.NumDense())
		}
		for i := 0; i < 10000; i++ {
			if got := b.Bucket(rng.Uint64()); got >= n {
				t.Fatalf("n=%d: bucket %d out of range", n, got)
			}
		}
	}
}

// TestSkewSplit verifies the defining property: hashes below the 60%
// threshold land in the dense buckets, the rest in the sparse ones.
func TestSkewSplit(t *testing.T) {
	rng := newTestRNG(t)
	b := NewSkew(1000)
	dense := b.NumDense()
	for i := 0; i < 100000; i++ {
		h := rng.Uint64()
		got := b.Bucket(h)
		if h < skewThreshold {
			if got >= dense {
				t.Fatalf("hash %x below threshold mapped to sparse bucket %d", h, got)
			}
		} else if got < dense {
			t.Fatalf("hash %x above threshold mapped to dense bucket %d", h, got)
		}
	}
}

// TestSkewDensity verifies dense buckets receive more keys per bucket
// than sparse ones under uniform hashes.
func TestSkewDensity(t *testing.T) {
	rng := newTestRNG(t)
	b := NewSkew(1000)
	counts := make([]uint64, b.NumBuckets())
	const samples = 1_000_000
	for i := 0; i < samples; i++ {
		counts[b.Bucket(rng.Uint64())]++
	}
	var denseTotal, sparseTotal uint64
	for i, c := range counts {
		if uint64(i) < b.NumDense() {
			denseTotal += c
		} else {
			sparseTotal += c
		}
	}
	denseAvg := float64(denseTotal) / float64(b.NumDense())
	sparseAvg := float64(sparseTotal) / float64(b.NumBuckets()-b.NumDense())
	// Expected ratio is (0.6/0.3)/(0.4/0.7) = 3.5; allow generous slack.
	if denseAvg < 2*sparseAvg {
		t.Errorf("dense avg %.1f not clearly above sparse avg %.1f", denseAvg, sparseAvg)
	}
}

func TestSkewDeterministic(t *testing.T) {
	rng := newTestRNG(t)
	a, b := NewSkew(12345), NewSkew(12345)
	for i := 0; i < 10000; i++ {
		h := rng.Uint64()
		if a.Bucket(h) != b.Bucket(h) {
			t.Fatalf("two bucketers over the same count disagree on %x", h)
		}
	}
}

func TestSkewRoundTrip(t *testing.T) {
	rng := newTestRNG(t)
	for _, n := range []uint64{1, 2, 100, 99999} {
		b := NewSkew(n)
		blob := b.AppendTo(nil)
		got, rest, err := ParseSkew(blob)
		if err != nil {
			t.Fatalf("n=%d: parse failed: %v", n, err)
		}
		if len(rest) != 0 {
			t.Fatalf("n=%d: %d trailing bytes", n, len(rest))
		}
		for i := 0; i < 10000; i++ {
			h := rng.Uint64()
			if got.Bucket(h) != b.Bucket(h) {
				t.Fatalf("n=%d: parsed bucketer disagrees on %x", n, h)
			}
		}
	}
}

func TestParseSkewRejectsZeroDense(t *testing.T) {
	blob := make([]byte, 16)
	binary.LittleEndian.PutUint64(blob[8:16], 5)
	if _, _, err := ParseSkew(blob); err == nil {
		t.Error("zero dense count not rejected")
	}
}

func TestUniformBucketBounds(t *testing.T) {
	rng := newTestRNG(t)
	b := NewUniform(777)
	for i := 0; i < 10000; i++ {
		if got := b.Bucket(rng.Uint64()); got >= 777 {
			t.Fatalf("bucket %d out of range", got)
		}
	}
}
