package pthash

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/bits"
	"github.com/tamirms/pthash/internal/bucketer"
	"github.com/tamirms/pthash/internal/search"
)

// KeySource produces a fresh pass over the key set each time it is
// called. Build may iterate more than once: automatic seed retries rehash
// the whole set, so a single-use iterator is not enough. Yielded byte
// slices are only read during the yield; the source may reuse buffers.
type KeySource func() iter.Seq[[]byte]

// SliceKeys adapts an in-memory key slice to a KeySource.
func SliceKeys(keys [][]byte) KeySource {
	return func() iter.Seq[[]byte] {
		return func(yield func([]byte) bool) {
			for _, k := range keys {
				if !yield(k) {
					return
				}
			}
		}
	}
}

// StringKeys adapts a string slice to a KeySource without copying.
func StringKeys(keys []string) KeySource {
	return func() iter.Seq[[]byte] {
		return func(yield func([]byte) bool) {
			for _, k := range keys {
				if !yield([]byte(k)) {
					return
				}
			}
		}
	}
}

// hashBatchSize is the number of keys gathered before dispatching a
// parallel hashing batch.
const hashBatchSize = 1 << 16

// Build constructs a single perfect hash function over keys.
//
// The defaults build a minimal function (positions exactly [0, n)) with
// automatic seed selection. See the With* options for the knobs. For
// multi-partition or bounded-memory construction use BuildPartitioned.
func Build(ctx context.Context, keys KeySource, opts ...BuildOption) (*Single, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.numPartitions != 1 {
		return nil, fmt.Errorf("%w: Build is single-partition; use BuildPartitioned", pterrors.ErrInvalidConfig)
	}

	var f *Single
	err := withSeedRetries(cfg, func(seed uint64, attempt int) error {
		var err error
		f, err = buildSingleAttempt(ctx, cfg, keys, seed)
		if err == nil {
			f.stats.SeedAttempts = attempt
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	cfg.logf("pthash: built n=%d table=%d seed=%#x attempts=%d largest-bucket=%d max-pilot=%d bits/key=%.2f",
		f.numKeys, f.tableSize, f.seed, f.stats.SeedAttempts, f.stats.LargestBucket, f.stats.MaxPilot, f.BitsPerKey())
	return f, nil
}

// withSeedRetries runs one build attempt per seed. A pinned seed gets a
// single attempt; auto mode draws fresh seeds until the cap.
func withSeedRetries(cfg *buildConfig, attemptFn func(seed uint64, attempt int) error) error {
	if cfg.seed != InvalidSeed {
		err := attemptFn(cfg.seed, 1)
		if search.IsSeedFailure(err) {
			return fmt.Errorf("%w: pinned seed %#x failed", pterrors.ErrSeedsExhausted, cfg.seed)
		}
		return err
	}
	for attempt := 1; attempt <= maxSeedAttempts; attempt++ {
		seed := rand.Uint64()
		if seed == InvalidSeed {
			seed--
		}
		err := attemptFn(seed, attempt)
		if !search.IsSeedFailure(err) {
			return err
		}
		cfg.logf("pthash: seed %#x failed (attempt %d/%d), retrying", seed, attempt, maxSeedAttempts)
	}
	return fmt.Errorf("%w: %d attempts", pterrors.ErrSeedsExhausted, maxSeedAttempts)
}

func buildSingleAttempt(ctx context.Context, cfg *buildConfig, keys KeySource, seed uint64) (*Single, error) {
	store := newPairStore(cfg.tmpDir, cfg.memCapPairs(1))
	defer store.close()

	err := hashPass(ctx, cfg, keys, seed, func(h1, h2 uint64) error {
		return store.append(search.Pair{Bucket: h1, Payload: h2})
	})
	if err != nil {
		return nil, err
	}
	n := store.total
	if n == 0 {
		return nil, pterrors.ErrEmptyKeySet
	}
	if cfg.ram > 0 && n*pairSize > cfg.ram {
		return nil, fmt.Errorf("%w: %d keys need %d bytes resident, budget is %d; use BuildPartitioned",
			pterrors.ErrResourceExhausted, n, n*pairSize, cfg.ram)
	}

	pairs, err := store.load()
	if err != nil {
		return nil, err
	}
	skew := bucketer.NewSkew(cfg.derivedBuckets(n))
	f, err := buildPartFromRawPairs(cfg, pairs, skew, seed, n, cfg.derivedTableSize(n), cfg.workers)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// buildPartFromRawPairs maps raw first-half hashes to buckets, sorts, and
// runs the pilot search.
func buildPartFromRawPairs(cfg *buildConfig, pairs []search.Pair, skew *bucketer.Skew,
	seed, numKeys, tableSize uint64, searchWorkers int) (*Single, error) {

	for i := range pairs {
		pairs[i].Bucket = skew.Bucket(pairs[i].Bucket)
	}
	sortPairs(pairs)
	return buildSingleFromPairs(cfg, pairs, skew, seed, numKeys, tableSize, searchWorkers)
}

func sortPairs(pairs []search.Pair) {
	slices.SortFunc(pairs, func(a, b search.Pair) int {
		if a.Bucket != b.Bucket {
			if a.Bucket < b.Bucket {
				return -1
			}
			return 1
		}
		if a.Payload < b.Payload {
			return -1
		}
		if a.Payload > b.Payload {
			return 1
		}
		return 0
	})
}

// memCapPairs splits the RAM budget across numStores spill buffers,
// reserving half the budget for the materialization at build time.
func (cfg *buildConfig) memCapPairs(numStores int) int {
	if cfg.ram == 0 {
		return 0
	}
	per := cfg.ram / 2 / uint64(numStores) / pairSize
	if per < 1024 {
		per = 1024
	}
	return int(per)
}

// hashPass iterates the key source once, hashing every key under seed and
// handing both halves to sink. With more than one worker, keys are
// gathered into batches and hashed in parallel; sink still runs on the
// calling goroutine, in batch order.
func hashPass(ctx context.Context, cfg *buildConfig, keys KeySource, seed uint64,
	sink func(h1, h2 uint64) error) error {

	if cfg.workers <= 1 {
		var err error
		for key := range keys() {
			if err = ctx.Err(); err != nil {
				return err
			}
			h1, h2 := hash128(cfg.hasher, key, seed)
			if err = sink(h1, h2); err != nil {
				return err
			}
		}
		return nil
	}

	batch := make([][]byte, 0, hashBatchSize)
	results := make([]search.Pair, hashBatchSize)

	flush := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(cfg.workers)
		chunk := (len(batch) + cfg.workers - 1) / cfg.workers
		for lo := 0; lo < len(batch); lo += chunk {
			hi := min(lo+chunk, len(batch))
			g.Go(func() error {
				for i := lo; i < hi; i++ {
					h1, h2 := hash128(cfg.hasher, batch[i], seed)
					results[i] = search.Pair{Bucket: h1, Payload: h2}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i := range batch {
			if err := sink(results[i].Bucket, results[i].Payload); err != nil {
				return err
			}
		}
		batch = batch[:0]
		return nil
	}

	for key := range keys() {
		// The source may reuse the yielded buffer, so batched keys are
		// copied before the parallel hash touches them.
		batch = append(batch, slices.Clone(key))
		if len(batch) == hashBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// BuildPartitioned constructs a partitioned perfect hash function: keys
// are routed to partitions by their first hash half, each partition gets
// an independent Single, and global positions compose the partition
// offset with the local result.
//
// Partitions build in parallel up to WithWorkers, and under a RAM budget
// only one partition's hashes are resident at a time; the rest wait in
// spill files under TempDir.
func BuildPartitioned(ctx context.Context, keys KeySource, opts ...BuildOption) (*Partitioned, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var f *Partitioned
	err := withSeedRetries(cfg, func(seed uint64, attempt int) error {
		var err error
		f, err = buildPartitionedAttempt(ctx, cfg, keys, seed)
		if err == nil {
			f.stats.SeedAttempts = attempt
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	cfg.logf("pthash: built partitioned n=%d partitions=%d seed=%#x attempts=%d bits/key=%.2f",
		f.numKeys, len(f.parts), f.seed, f.stats.SeedAttempts, f.BitsPerKey())
	return f, nil
}

func buildPartitionedAttempt(ctx context.Context, cfg *buildConfig, keys KeySource, seed uint64) (*Partitioned, error) {
	numParts := cfg.numPartitions
	stores := make([]*pairStore, numParts)
	memCap := cfg.memCapPairs(numParts)
	for i := range stores {
		stores[i] = newPairStore(cfg.tmpDir, memCap)
	}
	defer func() {
		for _, st := range stores {
			st.close()
		}
	}()

	subSeeds := make([]uint64, numParts)
	for i := range subSeeds {
		subSeeds[i] = search.HashPilot(uint64(i)+1, seed)
	}

	err := hashPass(ctx, cfg, keys, seed, func(h1, h2 uint64) error {
		part := bits.FastRange64(h1, uint64(numParts))
		// Partition routing consumes the high bits of h1, which would
		// starve the skew bucketer's threshold test. Remixing under the
		// partition's sub-seed restores a uniform first half.
		return stores[part].append(search.Pair{
			Bucket:  search.HashPilot(h1, subSeeds[part]),
			Payload: h2,
		})
	})
	if err != nil {
		return nil, err
	}

	var numKeys uint64
	for _, st := range stores {
		numKeys += st.total
		if cfg.ram > 0 && st.total*pairSize > cfg.ram {
			return nil, fmt.Errorf("%w: partition holds %d keys, budget allows %d; increase partitions",
				pterrors.ErrResourceExhausted, st.total, cfg.ram/pairSize)
		}
	}
	if numKeys == 0 {
		return nil, pterrors.ErrEmptyKeySet
	}

	// Partition builds are independent; parallelism moves up a level, so
	// each partition searches serially.
	parts := make([]*Single, numParts)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for i := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := stores[i].total
			if n == 0 {
				parts[i] = emptyPartition(cfg, subSeeds[i])
				return nil
			}
			pairs, err := stores[i].load()
			if err != nil {
				return err
			}
			skew := bucketer.NewSkew(cfg.derivedBuckets(n))
			parts[i], err = buildPartFromRawPairs(cfg, pairs, skew, subSeeds[i], n, cfg.derivedTableSize(n), 1)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f := &Partitioned{
		seed:    seed,
		numKeys: numKeys,
		minimal: cfg.minimal,
		hasher:  cfg.hasher,
		parts:   parts,
		stats: BuildStats{
			Seed:       seed,
			SearchTime: time.Since(start),
		},
	}
	for _, p := range parts {
		if p.stats.LargestBucket > f.stats.LargestBucket {
			f.stats.LargestBucket = p.stats.LargestBucket
		}
		if p.stats.MaxPilot > f.stats.MaxPilot {
			f.stats.MaxPilot = p.stats.MaxPilot
		}
	}
	f.computeOffsets()
	return f, nil
}

// emptyPartition is a placeholder for a partition that received no keys.
// It still serializes and answers lookups (vacuously; no member key
// routes here).
func emptyPartition(cfg *buildConfig, seed uint64) *Single {
	skew := bucketer.NewSkew(1)
	f, err := buildSingleFromPairs(cfg, nil, skew, seed, 0, 1, 1)
	if err != nil {
		// Searching zero buckets cannot fail.
		panic(err)
	}
	return f
}
