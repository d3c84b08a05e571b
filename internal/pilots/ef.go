package pilots

import (
	"github.com/tamirms/pthash/internal/eliasfano"
)

// efEncoder stores the running sums of the pilot table. Pilots are not
// monotone, but their prefix sums are, and the transform is trivially
// invertible: pilot i is the difference of two adjacent sums. This keeps
// the order of the table intact, unlike a sort-and-permute scheme, at the
// cost of two Elias-Fano accesses per decode.
type efEncoder struct {
	sums *eliasfano.Sequence
}

func newEliasFano(pilots []uint64) *efEncoder {
	cumulative := make([]uint64, len(pilots))
	var sum uint64
	for i, p := range pilots {
		sum += p
		cumulative[i] = sum
	}
	return &efEncoder{sums: eliasfano.New(cumulative)}
}

func (e *efEncoder) Access(i uint64) uint64 {
	if i == 0 {
		return e.sums.Access(0)
	}
	return e.sums.Access(i) - e.sums.Access(i-1)
}

func (e *efEncoder) Size() uint64 { return e.sums.Size() }

func (e *efEncoder) NumBits() uint64 { return e.sums.NumBits() }

func (e *efEncoder) ID() ID { return EliasFano }

func (e *efEncoder) AppendTo(dst []byte) []byte {
	dst = appendID(dst, EliasFano)
	return e.sums.AppendTo(dst)
}

func parseEliasFano(data []byte) (Encoder, []byte, error) {
	seq, rest, err := eliasfano.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return &efEncoder{sums: seq}, rest, nil
}
