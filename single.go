package pthash

import (
	"time"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/bits"
	"github.com/tamirms/pthash/internal/bucketer"
	"github.com/tamirms/pthash/internal/eliasfano"
	"github.com/tamirms/pthash/internal/pilots"
	"github.com/tamirms/pthash/internal/search"
)

// Single is a perfect hash function over one key set, built by Build.
//
// A Single is immutable and safe for concurrent Lookup calls. For minimal
// output, Lookup is a bijection from the build set onto [0, NumKeys());
// otherwise positions are unique within [0, TableSize()).
type Single struct {
	seed      uint64
	numKeys   uint64
	tableSize uint64
	minimal   bool
	hasher    HasherID

	bucketer  *bucketer.Skew
	pilots    pilots.Encoder
	freeSlots *eliasfano.Sequence // nil unless minimal with virtual slots

	mTableSize bits.M64 // derived, not serialized

	stats BuildStats
}

// BuildStats describes how the construction went. Loaded functions report
// zero stats; only the builder fills them in.
type BuildStats struct {
	Seed          uint64
	SeedAttempts  int
	LargestBucket uint32
	MaxPilot      uint64
	SearchTime    time.Duration
}

// Lookup returns the position of key. For keys of the build set the
// result is unique; for any other key it is some value in the same range.
func (f *Single) Lookup(key []byte) uint64 {
	h1, h2 := hash128(f.hasher, key, f.seed)
	return f.lookupHash(h1, h2)
}

// lookupHash is the hash-level query path, shared with Partitioned, which
// routes on its own hash and passes a remixed first half.
func (f *Single) lookupHash(h1, h2 uint64) uint64 {
	b := f.bucketer.Bucket(h1)
	pilot := f.pilots.Access(b)
	raw := search.Position(h2, search.HashPilot(pilot, f.seed), f.mTableSize, f.tableSize)
	if f.minimal && raw >= f.numKeys {
		return f.freeSlots.Access(raw - f.numKeys)
	}
	return raw
}

// NumKeys returns the number of keys the function was built over.
func (f *Single) NumKeys() uint64 { return f.numKeys }

// TableSize returns the slot table size. Equal to NumKeys() + the virtual
// range for minimal output.
func (f *Single) TableSize() uint64 { return f.tableSize }

// Minimal reports whether Lookup is onto [0, NumKeys()).
func (f *Single) Minimal() bool { return f.minimal }

// Seed returns the construction seed, pinned or discovered.
func (f *Single) Seed() uint64 { return f.seed }

// NumBits returns the size of the queryable structure in bits, excluding
// constant-size bookkeeping.
func (f *Single) NumBits() uint64 {
	n := f.pilots.NumBits()
	if f.freeSlots != nil {
		n += f.freeSlots.NumBits()
	}
	return n
}

// BitsPerKey returns NumBits() / NumKeys().
func (f *Single) BitsPerKey() float64 {
	if f.numKeys == 0 {
		return 0
	}
	return float64(f.NumBits()) / float64(f.numKeys)
}

// BuildStats returns the construction diagnostics.
func (f *Single) BuildStats() BuildStats { return f.stats }

// buildSingleFromPairs runs the pilot search over sorted-ready pairs and
// assembles the queryable structure. pairs carry bucket ids already
// assigned by skew; they only need sorting, which the store did.
func buildSingleFromPairs(cfg *buildConfig, pairs []search.Pair, skew *bucketer.Skew,
	seed, numKeys, tableSize uint64, searchWorkers int) (*Single, error) {

	start := time.Now()
	res, err := search.Run(search.Params{
		TableSize:  tableSize,
		NumBuckets: skew.NumBuckets(),
		Seed:       seed,
		Workers:    searchWorkers,
	}, pairs)
	if err != nil {
		return nil, err
	}

	enc, err := pilots.New(cfg.encoder, res.Pilots, skew.NumDense())
	if err != nil {
		return nil, err
	}

	f := &Single{
		seed:       seed,
		numKeys:    numKeys,
		tableSize:  tableSize,
		minimal:    cfg.minimal,
		hasher:     cfg.hasher,
		bucketer:   skew,
		pilots:     enc,
		mTableSize: bits.ComputeM64(tableSize),
		stats: BuildStats{
			Seed:          seed,
			LargestBucket: res.LargestBucket,
			MaxPilot:      res.MaxPilot,
			SearchTime:    time.Since(start),
		},
	}
	if cfg.minimal && tableSize > numKeys {
		f.freeSlots = eliasfano.New(search.FillFreeSlots(res.Taken, numKeys, tableSize))
	}
	return f, nil
}

// appendCore serializes the per-function sections shared by standalone
// and embedded (partitioned) forms.
func (f *Single) appendCore(dst []byte) []byte {
	dst = appendUint64(dst, f.seed)
	dst = appendUint64(dst, f.numKeys)
	dst = appendUint64(dst, f.tableSize)
	dst = f.bucketer.AppendTo(dst)
	dst = f.pilots.AppendTo(dst)
	if f.minimal {
		fs := f.freeSlots
		if fs == nil {
			fs = eliasfano.New(nil)
		}
		dst = fs.AppendTo(dst)
	}
	return dst
}

// parseSingleCore decodes the sections written by appendCore.
func parseSingleCore(data []byte, minimal bool, hasher HasherID) (*Single, []byte, error) {
	if len(data) < 24 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	f := &Single{
		seed:      readUint64(data[0:8]),
		numKeys:   readUint64(data[8:16]),
		tableSize: readUint64(data[16:24]),
		minimal:   minimal,
		hasher:    hasher,
	}
	data = data[24:]
	if f.tableSize == 0 || f.tableSize < f.numKeys {
		return nil, nil, pterrors.ErrCorrupted
	}
	var err error
	f.bucketer, data, err = bucketer.ParseSkew(data)
	if err != nil {
		return nil, nil, err
	}
	f.pilots, data, err = pilots.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	if f.pilots.Size() != f.bucketer.NumBuckets() {
		return nil, nil, pterrors.ErrCorrupted
	}
	if minimal {
		f.freeSlots, data, err = eliasfano.Parse(data)
		if err != nil {
			return nil, nil, err
		}
		if f.freeSlots.Size() != f.tableSize-f.numKeys {
			return nil, nil, pterrors.ErrCorrupted
		}
		if f.freeSlots.Size() == 0 {
			f.freeSlots = nil
		}
	}
	f.mTableSize = bits.ComputeM64(f.tableSize)
	return f, data, nil
}
