package pthash

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/search"
)

// pairStore accumulates the hashed key pairs destined for one partition's
// build. Under a RAM budget it holds a bounded buffer in memory and
// spills overflow to an unlinked temp file; load() materializes and sorts
// the partition, which at that point is the only one resident.
//
// Spilling is a resource policy, not a semantic one: load() returns the
// same sorted pairs whether or not anything hit disk.
type pairStore struct {
	tmpDir string
	mem    []search.Pair
	memCap int // pairs buffered before spilling; 0 = never spill
	file   *os.File
	w      *bufio.Writer
	spill  [pairSize]byte
	total  uint64
}

func newPairStore(tmpDir string, memCapPairs int) *pairStore {
	return &pairStore{
		tmpDir: tmpDir,
		memCap: memCapPairs,
	}
}

func (st *pairStore) append(p search.Pair) error {
	st.total++
	if st.memCap == 0 || len(st.mem) < st.memCap {
		st.mem = append(st.mem, p)
		return nil
	}
	if err := st.flush(); err != nil {
		return err
	}
	st.mem = append(st.mem, p)
	return nil
}

// flush writes the memory buffer to the spill file and empties it.
func (st *pairStore) flush() error {
	if st.file == nil {
		f, err := os.CreateTemp(st.tmpDir, "pthash-*.tmp")
		if err != nil {
			return fmt.Errorf("%w: create spill file: %v", pterrors.ErrResourceExhausted, err)
		}
		// Unlink while open so the scratch space is reclaimed even if the
		// process dies mid-build.
		_ = os.Remove(f.Name())
		st.file = f
		st.w = bufio.NewWriterSize(f, 1<<20)
	}
	for _, p := range st.mem {
		binary.LittleEndian.PutUint64(st.spill[0:8], p.Bucket)
		binary.LittleEndian.PutUint64(st.spill[8:16], p.Payload)
		if _, err := st.w.Write(st.spill[:]); err != nil {
			return fmt.Errorf("%w: write spill file: %v", pterrors.ErrResourceExhausted, err)
		}
	}
	st.mem = st.mem[:0]
	return nil
}

// load materializes all pairs in append order; bucketing and sorting are
// the builder's job because bucket geometry is only known once the whole
// pass has been counted. The store is drained afterwards.
func (st *pairStore) load() ([]search.Pair, error) {
	pairs := make([]search.Pair, 0, st.total)
	if st.file != nil {
		if err := st.w.Flush(); err != nil {
			return nil, fmt.Errorf("%w: flush spill file: %v", pterrors.ErrResourceExhausted, err)
		}
		if _, err := st.file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: rewind spill file: %v", pterrors.ErrResourceExhausted, err)
		}
		fadviseSequential(int(st.file.Fd()), 0, 0)
		r := bufio.NewReaderSize(st.file, 1<<20)
		var rec [pairSize]byte
		for {
			if _, err := io.ReadFull(r, rec[:]); err != nil {
				if err == io.EOF {
					break
				}
				return nil, fmt.Errorf("%w: read spill file: %v", pterrors.ErrResourceExhausted, err)
			}
			pairs = append(pairs, search.Pair{
				Bucket:  binary.LittleEndian.Uint64(rec[0:8]),
				Payload: binary.LittleEndian.Uint64(rec[8:16]),
			})
		}
	}
	pairs = append(pairs, st.mem...)
	st.mem = nil
	return pairs, nil
}

func (st *pairStore) close() {
	if st.file != nil {
		_ = st.file.Close()
		st.file = nil
	}
	st.mem = nil
}
