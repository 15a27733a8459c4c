package index

import "vegamdb/internal/store"

// SearchFlat scans every stored row and returns the k nearest, exactly.
// An empty store yields an empty result.
func SearchFlat(s *store.Store, query []float32, k int) Result {
	h := newTopK(k)
	n := s.Size()
	for i := 0; i < n; i++ {
		h.add(candidate{id: uint64(i), dist: SqDist(query, s.Row(i))})
	}
	return h.drain()
}
