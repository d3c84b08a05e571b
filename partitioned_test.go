package pthash

import (
	"bytes"
	"context"
	"errors"
	"testing"

	pterrors "github.com/tamirms/pthash/errors"
)

func TestBuildPartitionedMinimal(t *testing.T) {
	rng := newTestRNG(t)
	ctx := context.Background()
	for _, parts := range []int{1, 2, 4, 16} {
		keys := generateRandomKeys(rng, 10_000, 24)
		fn, err := BuildPartitioned(ctx, SliceKeys(keys), WithPartitions(parts))
		if err != nil {
			t.Fatalf("parts=%d: BuildPartitioned failed: %v", parts, err)
		}
		if fn.NumPartitions() != parts {
			t.Fatalf("parts=%d: NumPartitions = %d", parts, fn.NumPartitions())
		}
		if !fn.Minimal() {
			t.Fatalf("parts=%d: default build is not minimal", parts)
		}
		if fn.TableSize() != fn.NumKeys() {
			t.Fatalf("parts=%d: minimal table size %d != %d keys",
				parts, fn.TableSize(), fn.NumKeys())
		}
		checkPerfect(t, fn, keys)
		checkNonMembersInRange(t, fn, rng)
	}
}

func TestBuildPartitionedNonMinimal(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 8000, 24)
	fn, err := BuildPartitioned(context.Background(), SliceKeys(keys),
		WithPartitions(4), NonMinimal(), WithAlpha(0.95))
	if err != nil {
		t.Fatalf("BuildPartitioned failed: %v", err)
	}
	if fn.TableSize() <= fn.NumKeys() {
		t.Fatalf("table size %d not above key count %d", fn.TableSize(), fn.NumKeys())
	}
	checkPerfect(t, fn, keys)
	checkNonMembersInRange(t, fn, rng)
}

// TestBuildPartitionedSparse drives the partition count far above the key
// count so most partitions are empty, which exercises the empty-partition
// placeholder on both the build and the lookup path.
func TestBuildPartitionedSparse(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 3, 24)
	fn, err := BuildPartitioned(context.Background(), SliceKeys(keys), WithPartitions(16))
	if err != nil {
		t.Fatalf("BuildPartitioned failed: %v", err)
	}
	checkPerfect(t, fn, keys)
	checkNonMembersInRange(t, fn, rng)
}

// TestBuildPartitionedSpillEquality builds the same key set with and
// without a RAM budget tight enough to force disk spilling. Spilling is a
// resource policy only; the serialized functions must be identical.
func TestBuildPartitionedSpillEquality(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 20_000, 24)
	seed := rng.Uint64()

	unbounded, err := BuildPartitioned(context.Background(), SliceKeys(keys),
		WithPartitions(4), WithSeed(seed))
	if err != nil {
		t.Fatalf("unbounded build failed: %v", err)
	}
	// 20k keys * 16 bytes = 320KB of pairs; a 200KB budget forces every
	// store through its spill file while each partition still fits.
	spilled, err := BuildPartitioned(context.Background(), SliceKeys(keys),
		WithPartitions(4), WithSeed(seed),
		WithRAMBudget(200_000), TempDir(t.TempDir()))
	if err != nil {
		t.Fatalf("budgeted build failed: %v", err)
	}

	if !bytes.Equal(marshalFn(t, unbounded), marshalFn(t, spilled)) {
		t.Error("spilled build serializes differently from in-memory build")
	}
}

func TestBuildPartitionedWorkersDeterministic(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 15_000, 24)
	seed := rng.Uint64()

	var base []byte
	for _, workers := range []int{1, 4} {
		fn, err := BuildPartitioned(context.Background(), SliceKeys(keys),
			WithPartitions(8), WithSeed(seed), WithWorkers(workers))
		if err != nil {
			t.Fatalf("workers=%d: build failed: %v", workers, err)
		}
		blob := marshalFn(t, fn)
		if base == nil {
			base = blob
		} else if !bytes.Equal(blob, base) {
			t.Fatalf("workers=%d: serialized function differs", workers)
		}
	}
}

func TestBuildPartitionedOverBudget(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 5000, 24)
	// 5000 pairs in 2 partitions ~ 40KB each; a 16KB budget cannot hold a
	// partition at materialization time.
	_, err := BuildPartitioned(context.Background(), SliceKeys(keys),
		WithPartitions(2), WithRAMBudget(16_384), TempDir(t.TempDir()))
	if !errors.Is(err, pterrors.ErrResourceExhausted) {
		t.Errorf("expected ErrResourceExhausted, got %v", err)
	}
}

func TestBuildPartitionedEmptyKeySet(t *testing.T) {
	_, err := BuildPartitioned(context.Background(), SliceKeys(nil), WithPartitions(4))
	if !errors.Is(err, pterrors.ErrEmptyKeySet) {
		t.Errorf("expected ErrEmptyKeySet, got %v", err)
	}
}

func TestBuildPartitionedDuplicateKeys(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 1000, 24)
	keys = append(keys, keys[77])
	_, err := BuildPartitioned(context.Background(), SliceKeys(keys), WithPartitions(4))
	if !errors.Is(err, pterrors.ErrDuplicateKeys) {
		t.Errorf("expected ErrDuplicateKeys, got %v", err)
	}
}

func TestPartitionedStats(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 4000, 24)
	fn, err := BuildPartitioned(context.Background(), SliceKeys(keys), WithPartitions(4))
	if err != nil {
		t.Fatal(err)
	}
	stats := fn.BuildStats()
	if stats.SeedAttempts < 1 || stats.LargestBucket == 0 || stats.SearchTime <= 0 {
		t.Errorf("implausible stats: %+v", stats)
	}
	if fn.BitsPerKey() <= 0 || fn.BitsPerKey() > 64 {
		t.Errorf("BitsPerKey out of plausible range: %f", fn.BitsPerKey())
	}
}
