package pilots

import (
	"encoding/binary"
	"slices"

	pterrors "github.com/tamirms/pthash/errors"
	"github.com/tamirms/pthash/internal/bits"
)

// dictHalf dictionary-encodes one half of the pilot table: the sorted
// distinct pilot values in a packed dictionary, and per-bucket ranks into
// it. Pilot values repeat heavily (most buckets settle on small pilots),
// so ranks are much narrower than raw pilots.
type dictHalf struct {
	dict  *bits.CompactVector
	ranks *bits.CompactVector
}

func newDictHalf(pilots []uint64) dictHalf {
	distinct := slices.Clone(pilots)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	var maxVal uint64
	if len(distinct) > 0 {
		maxVal = distinct[len(distinct)-1]
	}

	ranks := make([]uint64, len(pilots))
	for i, p := range pilots {
		r, _ := slices.BinarySearch(distinct, p)
		ranks[i] = uint64(r)
	}

	var maxRank uint64
	if len(distinct) > 0 {
		maxRank = uint64(len(distinct) - 1)
	}
	return dictHalf{
		dict:  bits.NewCompactVector(distinct, bits.WidthFor(maxVal)),
		ranks: bits.NewCompactVector(ranks, bits.WidthFor(maxRank)),
	}
}

func (h dictHalf) access(i uint64) uint64 {
	return h.dict.Access(h.ranks.Access(i))
}

func (h dictHalf) numBits() uint64 {
	return h.dict.NumBits() + h.ranks.NumBits()
}

func (h dictHalf) appendTo(dst []byte) []byte {
	dst = h.dict.AppendTo(dst)
	return h.ranks.AppendTo(dst)
}

func parseDictHalf(data []byte) (dictHalf, []byte, error) {
	var h dictHalf
	var err error
	h.dict, data, err = bits.ParseCompactVector(data)
	if err != nil {
		return h, nil, err
	}
	h.ranks, data, err = bits.ParseCompactVector(data)
	if err != nil {
		return h, nil, err
	}
	return h, data, nil
}

// dictionary is the dual-dictionary encoder. The two halves follow the
// skew bucketer's dense/sparse split: dense buckets are larger and need
// bigger pilots, so giving each half its own dictionary keeps both rank
// widths tight.
type dictionary struct {
	front    dictHalf
	back     dictHalf
	numDense uint64
	size     uint64
}

func newDictionary(pilots []uint64, numDense uint64) *dictionary {
	if numDense > uint64(len(pilots)) {
		numDense = uint64(len(pilots))
	}
	return &dictionary{
		front:    newDictHalf(pilots[:numDense]),
		back:     newDictHalf(pilots[numDense:]),
		numDense: numDense,
		size:     uint64(len(pilots)),
	}
}

func (d *dictionary) Access(i uint64) uint64 {
	if i < d.numDense {
		return d.front.access(i)
	}
	return d.back.access(i - d.numDense)
}

func (d *dictionary) Size() uint64 { return d.size }

func (d *dictionary) NumBits() uint64 {
	return d.front.numBits() + d.back.numBits()
}

func (d *dictionary) ID() ID { return Dictionary }

func (d *dictionary) AppendTo(dst []byte) []byte {
	dst = appendID(dst, Dictionary)
	dst = binary.LittleEndian.AppendUint64(dst, d.numDense)
	dst = binary.LittleEndian.AppendUint64(dst, d.size)
	dst = d.front.appendTo(dst)
	return d.back.appendTo(dst)
}

func parseDictionary(data []byte) (Encoder, []byte, error) {
	if len(data) < 16 {
		return nil, nil, pterrors.ErrTruncatedBlob
	}
	d := &dictionary{
		numDense: binary.LittleEndian.Uint64(data[0:8]),
		size:     binary.LittleEndian.Uint64(data[8:16]),
	}
	data = data[16:]
	var err error
	d.front, data, err = parseDictHalf(data)
	if err != nil {
		return nil, nil, err
	}
	d.back, data, err = parseDictHalf(data)
	if err != nil {
		return nil, nil, err
	}
	if d.numDense > d.size ||
		d.front.ranks.Size() != d.numDense ||
		d.back.ranks.Size() != d.size-d.numDense {
		return nil, nil, pterrors.ErrCorrupted
	}
	return d, data, nil
}
