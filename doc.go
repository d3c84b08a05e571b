// Package pthash builds and queries minimal (or near-minimal) perfect hash
// functions over static key sets, after the PTHash algorithm: bucketed
// greedy pilot search over a compactly encoded displacement table.
//
// A built function maps every key of the build set to a distinct position,
// in [0, n) for minimal output, using a few bits per key. Querying a key
// outside the build set returns some in-range position; membership is not
// tracked.
//
// # Basic Usage
//
// Building and querying a minimal function:
//
//	f, err := pthash.Build(ctx, pthash.SliceKeys(keys))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pos := f.Lookup(keys[0]) // unique, in [0, len(keys))
//
// Large key sets build partition by partition within a memory budget:
//
//	f, err := pthash.BuildPartitioned(ctx, pthash.SliceKeys(keys),
//	    pthash.WithPartitions(64),
//	    pthash.WithWorkers(8),
//	    pthash.WithRAMBudget(2<<30),
//	    pthash.TempDir(scratch))
//
// Finished functions are immutable and safe for concurrent queries. They
// serialize to a self-describing blob (MarshalBinary/Load) or to a file
// that can be memory-mapped back (WriteFile/Open).
//
// # Package Structure
//
//   - Public API: build.go (Build, BuildPartitioned), single.go (Single),
//     partitioned.go (Partitioned)
//   - Configuration: options.go (BuildOption, With* functions)
//   - Hashing front-end: hasher.go (HasherID, hash128)
//   - Scratch storage: store.go (pair spill store for bounded-RAM builds)
//   - Serialization: header.go, serialize.go (MarshalBinary, Load, Open)
//   - Algorithm internals: internal/search (pilot search),
//     internal/bucketer, internal/pilots (encoders), internal/eliasfano,
//     internal/bits
//   - Platform: fallocate_*.go, fadvise_*.go, warm_*.go
package pthash
