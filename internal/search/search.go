package search

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tamirms/pthash/internal/bits"
)

// DefaultMaxPilotAttempts bounds the pilot search for a single bucket.
// In a healthy build the largest bucket settles within a few thousand
// attempts; hitting this cap means the seed drew a pathological bucket
// and the whole attempt should be retried with a fresh seed.
const DefaultMaxPilotAttempts = 10_000_000

// errPilotLimit reports a bucket that exhausted the attempt budget.
// It stays internal to the package: Run wraps it with bucket context and
// the caller only needs to recognize seed failure via IsSeedFailure.
var errPilotLimit = errors.New("pilot search attempt budget exhausted")

// IsSeedFailure reports whether err means the current seed cannot place
// all buckets and the build should retry with a different seed.
func IsSeedFailure(err error) bool {
	return errors.Is(err, errPilotLimit)
}

// Params configures one search run.
type Params struct {
	TableSize        uint64
	NumBuckets       uint64
	Seed             uint64
	Workers          int    // wave width; <= 1 means serial
	MaxPilotAttempts uint64 // 0 means DefaultMaxPilotAttempts
}

// Result is a successful placement of every bucket.
type Result struct {
	// Pilots holds one pilot per bucket, indexed by bucket id.
	Pilots []uint64

	// Taken marks the occupied slots of the table. Exactly one bit is
	// set per key.
	Taken *bits.BitVector

	// LargestBucket and MaxPilot are diagnostics surfaced in build stats.
	LargestBucket uint32
	MaxPilot      uint64
}

// Run searches a pilot for every bucket of the sorted pair slice.
//
// Buckets are placed in descending size order. With Workers > 1 the
// search proceeds in waves: each wave member scans for its pilot against
// a snapshot of the slot table in parallel, then the wave commits
// serially in order, resuming any member whose candidate was invalidated
// by an earlier commit. A candidate found against a subset of the
// committed state lower-bounds the serial answer, so resuming the scan
// upward lands on exactly the pilot the serial search would have chosen;
// the output is bit-identical for every worker count.
func Run(params Params, pairs []Pair) (*Result, error) {
	refs, err := assembleBuckets(pairs)
	if err != nil {
		return nil, err
	}

	maxAttempts := params.MaxPilotAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxPilotAttempts
	}

	s := &searcher{
		pairs:       pairs,
		taken:       bits.NewBitVector(params.TableSize),
		tableSize:   params.TableSize,
		mTableSize:  bits.ComputeM64(params.TableSize),
		seed:        params.Seed,
		cache:       newPilotCache(params.Seed),
		maxAttempts: maxAttempts,
	}

	res := &Result{
		Pilots: make([]uint64, params.NumBuckets),
		Taken:  s.taken,
	}
	if len(refs) > 0 {
		res.LargestBucket = refs[0].size
	}

	if params.Workers > 1 && len(refs) >= params.Workers*2 {
		err = s.runWaves(refs, res, params.Workers)
	} else {
		err = s.runSerial(refs, res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

type searcher struct {
	pairs       []Pair
	taken       *bits.BitVector
	tableSize   uint64
	mTableSize  bits.M64
	seed        uint64
	cache       []uint64
	maxAttempts uint64
}

func (s *searcher) bucketPayloads(ref bucketRef) []Pair {
	return s.pairs[ref.start : ref.start+uint64(ref.size)]
}

// findPilot scans pilots upward from start until every key of the bucket
// lands on a free slot with no in-bucket collision. positions receives
// the chosen slots. The scan does not mark the table; committing is the
// caller's job.
func (s *searcher) findPilot(bucket []Pair, start uint64, positions []uint64) (uint64, error) {
	positions = positions[:0]
	for pilot := start; pilot < s.maxAttempts; pilot++ {
		var hp uint64
		if pilot < pilotCacheSize {
			hp = s.cache[pilot]
		} else {
			hp = HashPilot(pilot, s.seed)
		}

		positions = positions[:0]
		ok := true
		for _, e := range bucket {
			p := Position(e.Payload, hp, s.mTableSize, s.tableSize)
			if s.taken.Get(p) {
				ok = false
				break
			}
			positions = append(positions, p)
		}
		if !ok {
			continue
		}
		// In-bucket collision check. Buckets are small (lambda keys on
		// average), so the quadratic scan beats sorting.
		for i := 1; i < len(positions) && ok; i++ {
			for j := 0; j < i; j++ {
				if positions[i] == positions[j] {
					ok = false
					break
				}
			}
		}
		if ok {
			return pilot, nil
		}
	}
	return 0, errPilotLimit
}

func (s *searcher) commit(positions []uint64) {
	for _, p := range positions {
		s.taken.Set(p)
	}
}

func (s *searcher) runSerial(refs []bucketRef, res *Result) error {
	positions := make([]uint64, 0, 64)
	for _, ref := range refs {
		pilot, err := s.findPilot(s.bucketPayloads(ref), 0, positions)
		if err != nil {
			return fmt.Errorf("bucket %d (size %d): %w", ref.id, ref.size, err)
		}
		positions = s.slotsFor(ref, pilot, positions)
		s.commit(positions)
		res.Pilots[ref.id] = pilot
		if pilot > res.MaxPilot {
			res.MaxPilot = pilot
		}
	}
	return nil
}

// slotsFor recomputes the slots of a bucket under a known-good pilot.
func (s *searcher) slotsFor(ref bucketRef, pilot uint64, positions []uint64) []uint64 {
	hp := HashPilot(pilot, s.seed)
	positions = positions[:0]
	for _, e := range s.bucketPayloads(ref) {
		positions = append(positions, Position(e.Payload, hp, s.mTableSize, s.tableSize))
	}
	return positions
}

// runWaves is the parallel variant of runSerial described on Run.
func (s *searcher) runWaves(refs []bucketRef, res *Result, workers int) error {
	candidates := make([]uint64, workers)
	candidateErrs := make([]error, workers)
	positions := make([]uint64, 0, 64)

	for base := 0; base < len(refs); base += workers {
		wave := refs[base:min(base+workers, len(refs))]

		// Scan phase: read-only against the pre-wave table.
		var g errgroup.Group
		for i := range wave {
			g.Go(func() error {
				buf := make([]uint64, 0, wave[i].size)
				candidates[i], candidateErrs[i] = s.findPilot(s.bucketPayloads(wave[i]), 0, buf)
				return nil
			})
		}
		_ = g.Wait()

		// Commit phase: serial, in wave order. A candidate invalidated by
		// an earlier commit resumes its scan from where it stopped.
		for i, ref := range wave {
			if candidateErrs[i] != nil {
				return fmt.Errorf("bucket %d (size %d): %w", ref.id, ref.size, candidateErrs[i])
			}
			pilot := candidates[i]
			positions = s.slotsFor(ref, pilot, positions)
			if i > 0 && !s.slotsFree(positions) {
				var err error
				pilot, err = s.findPilot(s.bucketPayloads(ref), pilot+1, positions)
				if err != nil {
					return fmt.Errorf("bucket %d (size %d): %w", ref.id, ref.size, err)
				}
				positions = s.slotsFor(ref, pilot, positions)
			}
			s.commit(positions)
			res.Pilots[ref.id] = pilot
			if pilot > res.MaxPilot {
				res.MaxPilot = pilot
			}
		}
	}
	return nil
}

// slotsFree reports whether all slots are currently unoccupied.
func (s *searcher) slotsFree(positions []uint64) bool {
	for _, p := range positions {
		if s.taken.Get(p) {
			return false
		}
	}
	return true
}
