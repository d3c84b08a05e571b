package pthash

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkBuildN(b *testing.B, n int) {
	rng := newTestRNG(b)
	keys := generateRandomKeys(rng, n, 24)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		if _, err := Build(ctx, SliceKeys(keys)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuild1K(b *testing.B)   { benchmarkBuildN(b, 1000) }
func BenchmarkBuild10K(b *testing.B)  { benchmarkBuildN(b, 10000) }
func BenchmarkBuild100K(b *testing.B) { benchmarkBuildN(b, 100000) }

func BenchmarkBuildWorkers(b *testing.B) {
	rng := newTestRNG(b)
	keys := generateRandomKeys(rng, 100_000, 24)
	ctx := context.Background()
	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for range b.N {
				if _, err := Build(ctx, SliceKeys(keys), WithWorkers(workers)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func benchmarkLookup(b *testing.B, opts ...BuildOption) {
	rng := newTestRNG(b)
	const n = 100_000
	keys := generateRandomKeys(rng, n, 24)
	fn, err := Build(context.Background(), SliceKeys(keys), opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	var sink uint64
	for i := range b.N {
		sink += fn.Lookup(keys[i%n])
	}
	_ = sink
}

func BenchmarkLookupDictionary(b *testing.B) { benchmarkLookup(b) }
func BenchmarkLookupCompactBlocks(b *testing.B) {
	benchmarkLookup(b, WithEncoder(EncoderCompactBlocks))
}
func BenchmarkLookupEliasFano(b *testing.B) {
	benchmarkLookup(b, WithEncoder(EncoderEliasFano))
}

func BenchmarkLookupPartitioned(b *testing.B) {
	rng := newTestRNG(b)
	const n = 100_000
	keys := generateRandomKeys(rng, n, 24)
	fn, err := BuildPartitioned(context.Background(), SliceKeys(keys), WithPartitions(8))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	var sink uint64
	for i := range b.N {
		sink += fn.Lookup(keys[i%n])
	}
	_ = sink
}

func BenchmarkLoad(b *testing.B) {
	rng := newTestRNG(b)
	keys := generateRandomKeys(rng, 100_000, 24)
	fn, err := Build(context.Background(), SliceKeys(keys))
	if err != nil {
		b.Fatal(err)
	}
	blob, err := fn.MarshalBinary()
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		if _, err := Load(blob); err != nil {
			b.Fatal(err)
		}
	}
}
