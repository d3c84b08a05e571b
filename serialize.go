package pthash

import (
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/pilots"
)

// Function is the query surface shared by Single and Partitioned. Load
// returns it because the blob, not the caller, knows which kind it holds.
type Function interface {
	// Lookup returns the position of key: unique for build-set keys,
	// some in-range value for anything else.
	Lookup(key []byte) uint64

	// NumKeys returns the number of keys the function was built over.
	NumKeys() uint64

	// TableSize returns the exclusive upper bound of Lookup results.
	TableSize() uint64

	// Minimal reports whether Lookup is onto [0, NumKeys()).
	Minimal() bool

	// Seed returns the construction seed.
	Seed() uint64

	// NumBits returns the size of the queryable structure in bits.
	NumBits() uint64
}

func marshal(h header, core func(dst []byte) []byte) []byte {
	buf := make([]byte, headerSize, headerSize+4096)
	buf = core(buf)
	h.SectionsLen = uint64(len(buf) - headerSize)
	h.encodeTo(buf[:headerSize])

	ftr := footer{
		SectionsHash: xxhash.Sum64(buf[headerSize:]),
		HeaderHash:   xxhash.Sum64(buf[:headerSize]),
	}
	var ftrBuf [footerSize]byte
	ftr.encodeTo(ftrBuf[:])
	return append(buf, ftrBuf[:]...)
}

// MarshalBinary serializes the function to a self-describing blob.
func (f *Single) MarshalBinary() ([]byte, error) {
	return marshal(header{
		Kind:    kindSingle,
		Hasher:  f.hasher,
		Encoder: f.pilots.ID(),
		Minimal: f.minimal,
		Seed:    f.seed,
		NumKeys: f.numKeys,
	}, f.appendCore), nil
}

// MarshalBinary serializes the function to a self-describing blob.
func (f *Partitioned) MarshalBinary() ([]byte, error) {
	enc := pilots.Dictionary
	if len(f.parts) > 0 {
		enc = f.parts[0].pilots.ID()
	}
	return marshal(header{
		Kind:    kindPartitioned,
		Hasher:  f.hasher,
		Encoder: enc,
		Minimal: f.minimal,
		Seed:    f.seed,
		NumKeys: f.numKeys,
	}, f.appendCore), nil
}

// Load reconstructs a function from a blob produced by MarshalBinary.
// The blob is fully validated: framing, checksums, and internal geometry.
// The returned function does not retain data.
func Load(data []byte) (Function, error) {
	if len(data) < headerSize+footerSize {
		return nil, pterrors.ErrTruncatedBlob
	}
	h, err := decodeHeader(data[:headerSize])
	if err != nil {
		return nil, err
	}
	end := headerSize + h.SectionsLen
	if uint64(len(data)) < end+footerSize {
		return nil, pterrors.ErrTruncatedBlob
	}
	sections := data[headerSize:end]
	ftr := decodeFooter(data[end : end+footerSize])
	if ftr.HeaderHash != xxhash.Sum64(data[:headerSize]) ||
		ftr.SectionsHash != xxhash.Sum64(sections) {
		return nil, pterrors.ErrChecksumFailed
	}

	switch h.Kind {
	case kindSingle:
		f, rest, err := parseSingleCore(sections, h.Minimal, h.Hasher)
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 || f.seed != h.Seed || f.numKeys != h.NumKeys {
			return nil, pterrors.ErrCorrupted
		}
		return f, nil
	default:
		f, rest, err := parsePartitionedCore(sections, h.Minimal, h.Hasher, h.Seed, h.NumKeys)
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, pterrors.ErrCorrupted
		}
		return f, nil
	}
}

// LoadSingle is Load restricted to single functions.
func LoadSingle(data []byte) (*Single, error) {
	fn, err := Load(data)
	if err != nil {
		return nil, err
	}
	f, ok := fn.(*Single)
	if !ok {
		return nil, fmt.Errorf("%w: blob holds a partitioned function", pterrors.ErrCorrupted)
	}
	return f, nil
}

// LoadPartitioned is Load restricted to partitioned functions.
func LoadPartitioned(data []byte) (*Partitioned, error) {
	fn, err := Load(data)
	if err != nil {
		return nil, err
	}
	f, ok := fn.(*Partitioned)
	if !ok {
		return nil, fmt.Errorf("%w: blob holds a single function", pterrors.ErrCorrupted)
	}
	return f, nil
}

// WriteFile serializes the function to path. Space is preallocated before
// writing so a full disk fails fast instead of leaving a torn file.
func WriteFile(f Function, path string) error {
	m, ok := f.(interface{ MarshalBinary() ([]byte, error) })
	if !ok {
		return fmt.Errorf("%w: function kind does not serialize", pterrors.ErrInvalidConfig)
	}
	blob, err := m.MarshalBinary()
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create function file: %w", err)
	}
	if err := fallocateFile(file, int64(len(blob))); err != nil {
		return errors.Join(fmt.Errorf("preallocate function file: %w", err), file.Close(), os.Remove(path))
	}
	if _, err := file.Write(blob); err != nil {
		return errors.Join(fmt.Errorf("write function file: %w", err), file.Close(), os.Remove(path))
	}
	if err := file.Sync(); err != nil {
		return errors.Join(fmt.Errorf("sync function file: %w", err), file.Close(), os.Remove(path))
	}
	return file.Close()
}

// Open loads a function file written by WriteFile. The file is read
// through a transient memory mapping, warmed up front, and fully parsed;
// the mapping is released before Open returns, so the result owns no file
// resources.
func Open(path string) (Function, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open function file: %w", err)
	}
	defer file.Close()

	mm, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap function file: %w", err)
	}
	warmMapping(mm)
	fn, err := Load(mm)
	if err != nil {
		return nil, errors.Join(err, mm.Unmap())
	}
	return fn, mm.Unmap()
}
