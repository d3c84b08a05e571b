package eliasfano

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"testing"

	pterrors "github.com/tamirms/pthash/errors"
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

func randomMonotone(rng *rand.Rand, n int, universe uint64) []uint64 {
	values := make([]uint64, n)
	for i := range values {
		values[i] = rng.Uint64N(universe)
	}
	slices.Sort(values)
	return values
}

func TestSequenceAccess(t *testing.T) {
	rng := newTestRNG(t)
	cases := []struct {
		name   string
		values []uint64
	}{
		{"single zero", []uint64{0}},
		{"single large", []uint64{1 << 50}},
		{"all equal", []uint64{7, 7, 7, 7, 7}},
		{"consecutive", []uint64{0, 1, 2, 3, 4, 5}},
		{"sparse", randomMonotone(rng, 1000, 1<<40)},
		{"dense", randomMonotone(rng, 1000, 1200)},
		{"tiny universe", randomMonotone(rng, 500, 3)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := New(c.values)
			if s.Size() != uint64(len(c.values)) {
				t.Fatalf("Size: got %d, want %d", s.Size(), len(c.values))
			}
			for i, want := range c.values {
				if got := s.Access(uint64(i)); got != want {
					t.Fatalf("Access(%d) = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestSequenceRoundTrip(t *testing.T) {
	rng := newTestRNG(t)
	for _, n := range []int{0, 1, 100, 5000} {
		values := randomMonotone(rng, n, 1<<30)
		blob := New(values).AppendTo(nil)
		s, rest, err := Parse(blob)
		if err != nil {
			t.Fatalf("n=%d: parse failed: %v", n, err)
		}
		if len(rest) != 0 {
			t.Fatalf("n=%d: %d trailing bytes", n, len(rest))
		}
		if s.Size() != uint64(n) {
			t.Fatalf("n=%d: parsed size %d", n, s.Size())
		}
		for i, want := range values {
			if got := s.Access(uint64(i)); got != want {
				t.Fatalf("n=%d: Access(%d) = %d, want %d", n, i, got, want)
			}
		}
	}
}

func TestParseTruncated(t *testing.T) {
	rng := newTestRNG(t)
	blob := New(randomMonotone(rng, 200, 1<<20)).AppendTo(nil)
	for cut := 0; cut < len(blob); cut += 7 {
		if _, _, err := Parse(blob[:cut]); err == nil {
			t.Fatalf("truncation at %d/%d not detected", cut, len(blob))
		}
	}
}

func TestParseRejectsSizeMismatch(t *testing.T) {
	blob := New([]uint64{1, 2, 3}).AppendTo(nil)
	// Inflate the declared size; the high-bits popcount no longer matches.
	binary.LittleEndian.PutUint64(blob[0:8], 4)
	_, _, err := Parse(blob)
	if !errors.Is(err, pterrors.ErrCorrupted) {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
}
