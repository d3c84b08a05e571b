package search

import (
	"sort"

	pterrors "github.com/tamirms/pthash/errors"
)

// Pair carries one key through bucketing: the bucket its first hash half
// selected and the second hash half used for slot placement.
type Pair struct {
	Bucket  uint64
	Payload uint64
}

// bucketRef is a view into a contiguous run of the sorted pair slice.
type bucketRef struct {
	id    uint64
	start uint64
	size  uint32
}

// assembleBuckets turns pairs, sorted ascending by (Bucket, Payload), into
// the search order: buckets sorted by size descending, ties broken by
// ascending id so the order is deterministic. Two identical pairs mean two
// keys hashed to the same 128-bit value, which the algorithm cannot
// separate; that is fatal rather than retried, matching the contract that
// the key set is duplicate-free.
func assembleBuckets(pairs []Pair) ([]bucketRef, error) {
	refs := make([]bucketRef, 0, len(pairs)/2+1)
	for i := 0; i < len(pairs); {
		j := i + 1
		for j < len(pairs) && pairs[j].Bucket == pairs[i].Bucket {
			if pairs[j].Payload == pairs[j-1].Payload {
				return nil, pterrors.ErrDuplicateKeys
			}
			j++
		}
		refs = append(refs, bucketRef{
			id:    pairs[i].Bucket,
			start: uint64(i),
			size:  uint32(j - i),
		})
		i = j
	}
	sort.Slice(refs, func(a, b int) bool {
		if refs[a].size != refs[b].size {
			return refs[a].size > refs[b].size
		}
		return refs[a].id < refs[b].id
	})
	return refs, nil
}
