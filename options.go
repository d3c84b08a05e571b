package pthash

import (
	"fmt"
	"math"
	"os"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/pilots"
)

// InvalidSeed is the sentinel meaning "no seed pinned": the builder picks
// seeds itself and retries until construction succeeds or the retry cap
// is reached.
const InvalidSeed uint64 = math.MaxUint64

const (
	defaultC     = 4.5
	defaultAlpha = 0.98

	// maxSeedAttempts caps automatic seed retries before the build fails
	// with ErrSeedsExhausted. A healthy configuration succeeds on the
	// first seed almost always; ten consecutive failures mean the
	// configuration itself is hostile (alpha too high, c too low).
	maxSeedAttempts = 10

	// pairSize is the in-memory and on-disk footprint of one hashed key.
	pairSize = 16
)

// BuildOption is a functional option for configuring builds.
type BuildOption func(*buildConfig)

type buildConfig struct {
	c             float64
	alpha         float64
	numPartitions int
	workers       int
	seed          uint64
	ram           uint64 // bytes; 0 = unbounded
	tmpDir        string
	numBuckets    uint64 // 0 = derive from n and c
	minimal       bool
	verbose       bool
	encoder       pilots.ID
	hasher        HasherID
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		c:             defaultC,
		alpha:         defaultAlpha,
		numPartitions: 1,
		workers:       1,
		seed:          InvalidSeed,
		tmpDir:        os.TempDir(),
		minimal:       true,
		encoder:       pilots.Dictionary,
		hasher:        HasherXXH128,
	}
}

// WithC sets the bucket-density constant c. Larger values mean fewer keys
// per bucket: faster construction, more space. Typical range 3.0-11.0.
func WithC(c float64) BuildOption {
	return func(cfg *buildConfig) { cfg.c = c }
}

// WithAlpha sets the table load factor in (0, 1]. alpha == 1 is only
// valid for minimal output.
func WithAlpha(alpha float64) BuildOption {
	return func(cfg *buildConfig) { cfg.alpha = alpha }
}

// WithPartitions sets the number of partitions for BuildPartitioned.
func WithPartitions(n int) BuildOption {
	return func(cfg *buildConfig) { cfg.numPartitions = n }
}

// WithWorkers sets the number of parallel workers used for key hashing,
// the pilot search, and per-partition builds. The built function is
// bit-identical regardless of worker count.
func WithWorkers(n int) BuildOption {
	return func(cfg *buildConfig) { cfg.workers = n }
}

// WithSeed pins the construction seed. A pinned seed is never retried:
// if the pilot search fails under it, the build fails.
func WithSeed(seed uint64) BuildOption {
	return func(cfg *buildConfig) { cfg.seed = seed }
}

// WithRAMBudget bounds construction memory in bytes. When the hashed key
// pairs exceed the budget they are spilled to the temp directory and read
// back partition by partition. The budget changes peak memory only; the
// built function is identical with or without spilling.
func WithRAMBudget(bytes uint64) BuildOption {
	return func(cfg *buildConfig) { cfg.ram = bytes }
}

// TempDir sets the scratch directory for spill files. The directory must
// exist and be on a local filesystem; spill files are unlinked while open.
func TempDir(dir string) BuildOption {
	return func(cfg *buildConfig) { cfg.tmpDir = dir }
}

// WithBuckets overrides the derived bucket count. Mostly useful for
// experiments; the default ceil(c*n/log2(n)) tracks the PTHash paper.
func WithBuckets(n uint64) BuildOption {
	return func(cfg *buildConfig) { cfg.numBuckets = n }
}

// NonMinimal builds a non-minimal function: positions are unique over the
// key set but range over [0, tableSize) with tableSize ≈ n/alpha, and no
// free-slot remap table is stored.
func NonMinimal() BuildOption {
	return func(cfg *buildConfig) { cfg.minimal = false }
}

// WithEncoder selects the pilot table encoding.
func WithEncoder(id Encoder) BuildOption {
	return func(cfg *buildConfig) { cfg.encoder = pilots.ID(id) }
}

// WithHasher selects the 128-bit key hasher.
func WithHasher(id HasherID) BuildOption {
	return func(cfg *buildConfig) { cfg.hasher = id }
}

// WithVerbose enables progress logging to the standard logger.
func WithVerbose(v bool) BuildOption {
	return func(cfg *buildConfig) { cfg.verbose = v }
}

// validate rejects bad parameter combinations before any work starts.
func (cfg *buildConfig) validate() error {
	if cfg.c <= 0 {
		return fmt.Errorf("%w: c must be positive, got %v", pterrors.ErrInvalidConfig, cfg.c)
	}
	if cfg.alpha <= 0 || cfg.alpha > 1 {
		return fmt.Errorf("%w: alpha must be in (0, 1], got %v", pterrors.ErrInvalidConfig, cfg.alpha)
	}
	if cfg.alpha == 1 && !cfg.minimal {
		return fmt.Errorf("%w: alpha == 1 requires minimal output", pterrors.ErrInvalidConfig)
	}
	if cfg.numPartitions < 1 {
		return fmt.Errorf("%w: partitions must be >= 1, got %d", pterrors.ErrInvalidConfig, cfg.numPartitions)
	}
	if cfg.workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", pterrors.ErrInvalidConfig, cfg.workers)
	}
	if _, err := hasherName(cfg.hasher); err != nil {
		return err
	}
	if cfg.ram > 0 {
		if info, err := os.Stat(cfg.tmpDir); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: RAM budget requires a usable temp dir, %q is not one",
				pterrors.ErrInvalidConfig, cfg.tmpDir)
		}
	}
	return nil
}

// derivedBuckets returns the bucket count for n keys: the configured
// override, or ceil(c*n/log2(n)).
func (cfg *buildConfig) derivedBuckets(n uint64) uint64 {
	if cfg.numBuckets > 0 {
		return cfg.numBuckets
	}
	logN := math.Log2(float64(n))
	if logN < 1 {
		logN = 1
	}
	b := uint64(math.Ceil(cfg.c * float64(n) / logN))
	if b == 0 {
		b = 1
	}
	return b
}

// derivedTableSize returns the slot table size for n keys: ceil(n/alpha),
// at least n, bumped off powers of two so the xor displacement never
// degenerates to masking a few bits.
func (cfg *buildConfig) derivedTableSize(n uint64) uint64 {
	ts := uint64(math.Ceil(float64(n) / cfg.alpha))
	if ts < n {
		ts = n
	}
	if ts > 0 && ts&(ts-1) == 0 {
		ts++
	}
	return ts
}

func (cfg *buildConfig) logf(format string, args ...any) {
	if cfg.verbose {
		logPrintf(format, args...)
	}
}
