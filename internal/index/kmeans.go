package index

import (
	"math/rand"

	"vegamdb/internal/store"
	pkgerrors "vegamdb/pkg/errors"
)

// kmeans runs Lloyd's algorithm over all rows of the store.
//
// Centroids are seeded from k distinct rows drawn without replacement. Each
// round assigns every row to its nearest centroid (ties to the lowest
// centroid index) and recomputes centroids as the mean of their members; a
// centroid left without members is reseeded from a uniformly random row.
// Iteration stops after maxIters rounds or as soon as a round changes no
// assignment.
//
// Returns the centroid matrix and the per-centroid member lists; each row ID
// appears in exactly one list and lists are sorted by ID ascending.
func kmeans(s *store.Store, k, maxIters int, rng *rand.Rand) ([][]float32, [][]uint32, error) {
	n := s.Size()
	if n < k {
		return nil, nil, pkgerrors.ErrInsufficientData
	}
	dim := s.Dimension()

	centroids := make([][]float32, k)
	for i, row := range rng.Perm(n)[:k] {
		centroids[i] = append([]float32(nil), s.Row(row)...)
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	counts := make([]int, k)
	sums := make([][]float32, k)
	for c := range sums {
		sums[c] = make([]float32, dim)
	}

	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			best := 0
			bestDist := SqDist(s.Row(i), centroids[0])
			for c := 1; c < k; c++ {
				if d := SqDist(s.Row(i), centroids[c]); d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		for c := 0; c < k; c++ {
			counts[c] = 0
			for d := range sums[c] {
				sums[c][d] = 0
			}
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			counts[c]++
			row := s.Row(i)
			for d := 0; d < dim; d++ {
				sums[c][d] += row[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				copy(centroids[c], s.Row(rng.Intn(n)))
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] / float32(counts[c])
			}
		}
	}

	lists := make([][]uint32, k)
	for c := range lists {
		lists[c] = make([]uint32, 0)
	}
	for i := 0; i < n; i++ {
		c := assignments[i]
		lists[c] = append(lists[c], uint32(i))
	}
	return centroids, lists, nil
}
