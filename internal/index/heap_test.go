package index

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopKOrdering(t *testing.T) {
	h := newTopK(3)
	for id, dist := range []float32{5, 1, 4, 2, 3} {
		h.add(candidate{id: uint64(id), dist: dist})
	}
	res := h.drain()
	assert.Equal(t, []uint64{1, 3, 4}, res.IDs)
	assert.Equal(t, []float32{1, 2, 3}, res.Distances)
}

func TestTopKFewerThanK(t *testing.T) {
	h := newTopK(10)
	h.add(candidate{id: 0, dist: 2})
	h.add(candidate{id: 1, dist: 1})
	res := h.drain()
	assert.Equal(t, []uint64{1, 0}, res.IDs)
}

// Equal distances resolve to the lower ID, regardless of insertion order.
func TestTopKTieBreak(t *testing.T) {
	h := newTopK(2)
	h.add(candidate{id: 9, dist: 1})
	h.add(candidate{id: 3, dist: 1})
	h.add(candidate{id: 7, dist: 1})
	res := h.drain()
	assert.Equal(t, []uint64{3, 7}, res.IDs)
}

func TestTopKMatchesSort(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	cands := make([]candidate, 200)
	for i := range cands {
		cands[i] = candidate{id: uint64(i), dist: rng.Float32()}
	}
	h := newTopK(17)
	for _, c := range cands {
		h.add(c)
	}
	res := h.drain()

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].id < cands[j].id
	})
	require.Len(t, res.IDs, 17)
	for i := 0; i < 17; i++ {
		assert.Equal(t, cands[i].id, res.IDs[i])
		assert.Equal(t, cands[i].dist, res.Distances[i])
	}
}
