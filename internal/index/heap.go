package index

import "container/heap"

// candidate is a potential nearest neighbor during search.
type candidate struct {
	id   uint64
	dist float32
}

// worse reports whether a should be evicted before b: larger distance first,
// equal distances broken by larger ID so that lower IDs win retention.
func worse(a, b candidate) bool {
	if a.dist != b.dist {
		return a.dist > b.dist
	}
	return a.id > b.id
}

// topK is a bounded max-heap holding the k best candidates seen so far. The
// worst candidate sits at the root for cheap replacement.
type topK struct {
	items []candidate
	k     int
}

func newTopK(k int) *topK {
	return &topK{items: make([]candidate, 0, k), k: k}
}

func (h *topK) Len() int           { return len(h.items) }
func (h *topK) Less(i, j int) bool { return worse(h.items[i], h.items[j]) }
func (h *topK) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *topK) Push(x interface{}) { h.items = append(h.items, x.(candidate)) }
func (h *topK) Pop() interface{} {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}

// add offers a candidate, keeping only the k best.
func (h *topK) add(c candidate) {
	if h.k <= 0 {
		return
	}
	if len(h.items) < h.k {
		heap.Push(h, c)
		return
	}
	if worse(h.items[0], c) {
		h.items[0] = c
		heap.Fix(h, 0)
	}
}

// drain empties the heap into a Result ordered by ascending distance.
func (h *topK) drain() Result {
	n := len(h.items)
	res := Result{
		IDs:       make([]uint64, n),
		Distances: make([]float32, n),
	}
	for i := n - 1; i >= 0; i-- {
		c := heap.Pop(h).(candidate)
		res.IDs[i] = c.id
		res.Distances[i] = c.dist
	}
	return res
}
