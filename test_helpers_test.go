package pthash

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

// generateRandomKeys creates n deterministic pseudo-random keys of the
// specified size. Keys are distinct with overwhelming probability at the
// sizes tests use.
func generateRandomKeys(rng *rand.Rand, n, keySize int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = make([]byte, keySize)
		fillFromRNG(rng, keys[i])
	}
	return keys
}

// fillFromRNG fills buf with pseudo-random bytes from rng.
func fillFromRNG(rng *rand.Rand, buf []byte) {
	for i := 0; i+8 <= len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], rng.Uint64())
	}
	if tail := len(buf) % 8; tail > 0 {
		v := rng.Uint64()
		start := len(buf) - tail
		for j := 0; j < tail; j++ {
			buf[start+j] = byte(v >> (j * 8))
		}
	}
}

// checkPerfect verifies the perfect hashing contract over the build set:
// every key maps to a distinct position below the bound. For minimal
// functions the bound is NumKeys() and coverage is exact, so the mapping
// is a bijection onto [0, n).
func checkPerfect(t *testing.T, fn Function, keys [][]byte) {
	t.Helper()
	if fn.NumKeys() != uint64(len(keys)) {
		t.Fatalf("NumKeys: got %d, want %d", fn.NumKeys(), len(keys))
	}
	bound := fn.TableSize()
	if fn.Minimal() {
		bound = fn.NumKeys()
	}
	seen := make(map[uint64][]byte, len(keys))
	for _, key := range keys {
		pos := fn.Lookup(key)
		if pos >= bound {
			t.Fatalf("key %x: position %d out of range [0, %d)", key, pos, bound)
		}
		if prev, dup := seen[pos]; dup {
			t.Fatalf("keys %x and %x collide at position %d", prev, key, pos)
		}
		seen[pos] = key
	}
}

// checkNonMembersInRange probes keys outside the build set; their
// positions carry no uniqueness guarantee but must stay in range.
func checkNonMembersInRange(t *testing.T, fn Function, rng *rand.Rand) {
	t.Helper()
	bound := fn.TableSize()
	if fn.Minimal() {
		bound = fn.NumKeys()
	}
	probe := make([]byte, 24)
	for i := 0; i < 1000; i++ {
		fillFromRNG(rng, probe)
		if pos := fn.Lookup(probe); pos >= bound {
			t.Fatalf("non-member position %d out of range [0, %d)", pos, bound)
		}
	}
}

// marshalFn serializes via the concrete type's MarshalBinary.
func marshalFn(t *testing.T, fn Function) []byte {
	t.Helper()
	m, ok := fn.(interface{ MarshalBinary() ([]byte, error) })
	if !ok {
		t.Fatalf("function %T does not serialize", fn)
	}
	blob, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	return blob
}
