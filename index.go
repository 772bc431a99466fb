package rangepatch

import "sort"

// Index groups the offsets of a buffer by byte value. Each bucket is ascending.
type Index [256][]int

// BuildIndex scans b once and records every offset under its byte value.
func BuildIndex(b []byte) *Index {
	var counts [256]int
	for _, c := range b {
		counts[c]++
	}

	idx := new(Index)
	for v, n := range counts {
		if n > 0 {
			idx[v] = make([]int, 0, n)
		}
	}
	for o, c := range b {
		idx[c] = append(idx[c], o)
	}

	return idx
}

// Bucket returns the offsets holding value v.
func (idx *Index) Bucket(v byte) []int {
	return idx[v]
}

// bucketWork describes one value both buffers share.
type bucketWork struct {
	value    byte
	old, new []int
}

func (w bucketWork) cost() int {
	return len(w.old) * len(w.new)
}

// sharedBuckets lists the values present in both indices, heaviest search first.
// Ties keep ascending value order.
func sharedBuckets(oldIdx, newIdx *Index) []bucketWork {
	var work []bucketWork
	for v := 0; v < 256; v++ {
		if len(oldIdx[v]) == 0 || len(newIdx[v]) == 0 {
			continue
		}
		work = append(work, bucketWork{value: byte(v), old: oldIdx[v], new: newIdx[v]})
	}

	sort.SliceStable(work, func(i, j int) bool {
		return work[i].cost() > work[j].cost()
	})

	return work
}
