package pilots

import (
	"encoding/binary"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/bits"
)

// blockSize is the number of pilots per compact block. A power of two so
// block arithmetic compiles to shifts and masks.
const blockSize = 256

// compactBlocks bit-packs pilots in blocks of 256, each block at the
// width of its local maximum. A lone outlier pilot only widens its own
// block instead of the whole table, which is what makes this competitive
// with the dictionary encoder on skewed pilot distributions.
type compactBlocks struct {
	words   []uint64 // packed values, blocks back to back
	offsets []uint64 // per-block starting bit offset into words
	widths  []uint8  // per-block value width
	size    uint64
}

func newCompactBlocks(values []uint64) *compactBlocks {
	n := uint64(len(values))
	numBlocks := (n + blockSize - 1) / blockSize
	c := &compactBlocks{
		offsets: make([]uint64, numBlocks),
		widths:  make([]uint8, numBlocks),
		size:    n,
	}

	var totalBits uint64
	for b := uint64(0); b < numBlocks; b++ {
		var max uint64
		for _, v := range blockOf(values, b) {
			if v > max {
				max = v
			}
		}
		c.offsets[b] = totalBits
		c.widths[b] = bits.WidthFor(max)
		totalBits += uint64(len(blockOf(values, b))) * uint64(c.widths[b])
	}

	c.words = make([]uint64, (totalBits+63)/64)
	for b := uint64(0); b < numBlocks; b++ {
		w := uint64(c.widths[b])
		if w == 0 {
			continue
		}
		pos := c.offsets[b]
		for _, v := range blockOf(values, b) {
			writeBits(c.words, pos, v, w)
			pos += w
		}
	}
	return c
}

func blockOf(values []uint64, b uint64) []uint64 {
	lo := b * blockSize
	hi := min(lo+blockSize, uint64(len(values)))
	return values[lo:hi]
}

// writeBits stores the low width bits of v at bit offset pos. The caller
// must guarantee v fits in width bits and width <= 64.
func writeBits(words []uint64, pos, v, width uint64) {
	word := pos >> 6
	shift := pos & 63
	words[word] |= v << shift
	if shift+width > 64 {
		words[word+1] |= v >> (64 - shift)
	}
}

// readBits extracts width bits at bit offset pos, width in [1, 64].
func readBits(words []uint64, pos, width uint64) uint64 {
	word := pos >> 6
	shift := pos & 63
	v := words[word] >> shift
	if shift+width > 64 {
		v |= words[word+1] << (64 - shift)
	}
	if width == 64 {
		return v
	}
	return v & ((uint64(1) << width) - 1)
}

func (c *compactBlocks) Access(i uint64) uint64 {
	b := i / blockSize
	w := uint64(c.widths[b])
	if w == 0 {
		return 0
	}
	return readBits(c.words, c.offsets[b]+(i%blockSize)*w, w)
}

func (c *compactBlocks) Size() uint64 { return c.size }

func (c *compactBlocks) NumBits() uint64 {
	return uint64(len(c.words))*64 + uint64(len(c.offsets))*64 + uint64(len(c.widths))*8
}

func (c *compactBlocks) ID() ID { return CompactBlocks }

func (c *compactBlocks) AppendTo(dst []byte) []byte {
	dst = appendID(dst, CompactBlocks)
	dst = binary.LittleEndian.AppendUint64(dst, c.size)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(c.words)))
	dst = append(dst, c.widths...)
	for _, o := range c.offsets {
		dst = binary.LittleEndian.AppendUint64(dst, o)
	}
	for _, w := range c.words {
		dst = binary.LittleEndian.AppendUint64(dst, w)
	}
	return dst
}

func parseCompactBlocks(data []byte) (Encoder, []byte, error) {
	if len(data) < 16 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	c := &compactBlocks{size: binary.LittleEndian.Uint64(data[0:8])}
	numWords := binary.LittleEndian.Uint64(data[8:16])
	data = data[16:]

	numBlocks := (c.size + blockSize - 1) / blockSize
	need := numBlocks + numBlocks*8 + numWords*8
	if uint64(len(data)) < need {
		return nil, nil, pterrors.ErrTruncatedBlob
	}

	c.widths = make([]uint8, numBlocks)
	copy(c.widths, data[:numBlocks])
	data = data[numBlocks:]

	c.offsets = make([]uint64, numBlocks)
	for i := range c.offsets {
		c.offsets[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	data = data[numBlocks*8:]

	c.words = make([]uint64, numWords)
	for i := range c.words {
		c.words[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	data = data[numWords*8:]

	// Offsets must stay inside the word array or Access would read out
	// of bounds on a corrupt blob.
	totalBits := numWords * 64
	for b := range c.offsets {
		blockLen := uint64(blockSize)
		if uint64(b) == numBlocks-1 && c.size%blockSize != 0 {
			blockLen = c.size % blockSize
		}
		if c.widths[b] > 64 || c.offsets[b]+blockLen*uint64(c.widths[b]) > totalBits {
			return nil, nil, pterrors.ErrCorrupted
		}
	}
	return c, data, nil
}
