package pthash

import (
	"encoding/binary"
	"math"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/pilots"
)

const (
	// magic number for serialized pthash functions, "PTHF" little-endian.
	magic = uint32(0x46485450)

	// version is the current format version.
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header.
	headerSize = 64

	// footerSize is the exact size of the serialized footer.
	footerSize = 32
)

// functionKind distinguishes the two top-level structures in the header.
type functionKind uint16

const (
	kindSingle      functionKind = 0
	kindPartitioned functionKind = 1
)

const flagMinimal = uint8(1 << 0)

// header is the fixed 64-byte prefix of a serialized function.
//
// Layout:
//
//	Offset  Size  Field         Type
//	0       4     Magic         0x46485450 ("PTHF")
//	4       2     Version       0x0001
//	6       2     Kind          uint16_le (0=single, 1=partitioned)
//	8       2     Hasher        uint16_le
//	10      2     Encoder       uint16_le
//	12      1     Flags         bit0 = minimal
//	13      3     Reserved      zero
//	16      8     Seed          uint64_le
//	24      8     NumKeys       uint64_le
//	32      8     SectionsLen   uint64_le (bytes between header and footer)
//	40      24    Reserved      zero
//
// Geometry (table sizes, bucket counts) lives in the per-function
// sections; each partition carries its own.
type header struct {
	Kind        functionKind
	Hasher      HasherID
	Encoder     pilots.ID
	Minimal     bool
	Seed        uint64
	NumKeys     uint64
	SectionsLen uint64
}

func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:6], version)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.Kind))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(h.Hasher))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(h.Encoder))
	if h.Minimal {
		buf[12] = flagMinimal
	}
	binary.LittleEndian.PutUint64(buf[16:24], h.Seed)
	binary.LittleEndian.PutUint64(buf[24:32], h.NumKeys)
	binary.LittleEndian.PutUint64(buf[32:40], h.SectionsLen)
}

func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, pterrors.ErrTruncatedBlob
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return nil, pterrors.ErrInvalidMagic
	}
	if binary.LittleEndian.Uint16(buf[4:6]) != version {
		return nil, pterrors.ErrInvalidVersion
	}
	h := &header{
		Kind:        functionKind(binary.LittleEndian.Uint16(buf[6:8])),
		Hasher:      HasherID(binary.LittleEndian.Uint16(buf[8:10])),
		Encoder:     pilots.ID(binary.LittleEndian.Uint16(buf[10:12])),
		Minimal:     buf[12]&flagMinimal != 0,
		Seed:        binary.LittleEndian.Uint64(buf[16:24]),
		NumKeys:     binary.LittleEndian.Uint64(buf[24:32]),
		SectionsLen: binary.LittleEndian.Uint64(buf[32:40]),
	}
	if h.Kind != kindSingle && h.Kind != kindPartitioned {
		return nil, pterrors.ErrCorrupted
	}
	if _, err := hasherName(h.Hasher); err != nil {
		return nil, pterrors.ErrCorrupted
	}
	if h.SectionsLen > math.MaxInt64 {
		return nil, pterrors.ErrCorrupted
	}
	return h, nil
}

// footer is the fixed 32-byte suffix.
//
// Layout:
//
//	Offset  Size  Field         Type
//	0       8     SectionsHash  uint64_le (xxHash64 of the sections region)
//	8       8     HeaderHash    uint64_le (xxHash64 of the 64-byte header)
//	16      16    Reserved      zero
type footer struct {
	SectionsHash uint64
	HeaderHash   uint64
}

func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.SectionsHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.HeaderHash)
}

func decodeFooter(buf []byte) footer {
	return footer{
		SectionsHash: binary.LittleEndian.Uint64(buf[0:8]),
		HeaderHash:   binary.LittleEndian.Uint64(buf[8:16]),
	}
}

func appendUint64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

func readUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
