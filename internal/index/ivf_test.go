package index

import (
	"math/rand"
	"testing"

	pkgerrors "vegamdb/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIVFSearchBasic(t *testing.T) {
	s := randomStore(t, 1000, 64, 42)
	ivf, err := BuildIVF(s, IVFConfig{NClusters: 10, MaxIters: 50, NProbe: 1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	res := ivf.Search(s, s.Row(0), 10, 1)
	require.NotEmpty(t, res.IDs)
	for i := 1; i < len(res.Distances); i++ {
		assert.LessOrEqual(t, res.Distances[i-1], res.Distances[i])
	}
	seen := make(map[uint64]bool)
	for _, id := range res.IDs {
		assert.False(t, seen[id])
		seen[id] = true
	}

	// Probing every list is exhaustive, so the query's own row must win.
	full := ivf.Search(s, s.Row(0), 10, 10)
	assert.Equal(t, uint64(0), full.IDs[0])
	assert.Equal(t, float32(0), full.Distances[0])
}

// Raising n_probe widens the candidate set, so the best distance found can
// only improve. Probing every list reproduces the exact flat result.
func TestIVFNProbeMonotone(t *testing.T) {
	s := randomStore(t, 1000, 64, 42)
	ivf, err := BuildIVF(s, IVFConfig{NClusters: 10, MaxIters: 50, NProbe: 1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(77))
	for q := 0; q < 20; q++ {
		query := make([]float32, 64)
		for d := range query {
			query[d] = rng.Float32()
		}
		prev := float32(0)
		for nProbe := 1; nProbe <= 10; nProbe++ {
			res := ivf.Search(s, query, 10, nProbe)
			require.NotEmpty(t, res.IDs)
			if nProbe > 1 {
				assert.LessOrEqual(t, res.Distances[0], prev)
			}
			prev = res.Distances[0]
		}

		exact := SearchFlat(s, query, 10)
		full := ivf.Search(s, query, 10, 10)
		assert.Equal(t, exact.IDs, full.IDs)
		assert.Equal(t, exact.Distances, full.Distances)
	}
}

func TestIVFNProbeClamped(t *testing.T) {
	s := randomStore(t, 100, 8, 42)
	ivf, err := BuildIVF(s, IVFConfig{NClusters: 4, MaxIters: 50, NProbe: 1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	// Out-of-range probe counts behave like the nearest bound.
	low := ivf.Search(s, s.Row(0), 5, -3)
	one := ivf.Search(s, s.Row(0), 5, 1)
	assert.Equal(t, one.IDs, low.IDs)

	high := ivf.Search(s, s.Row(0), 5, 1000)
	all := ivf.Search(s, s.Row(0), 5, 4)
	assert.Equal(t, all.IDs, high.IDs)
}

func TestIVFInsufficientData(t *testing.T) {
	s := randomStore(t, 5, 8, 42)
	_, err := BuildIVF(s, IVFConfig{NClusters: 10, MaxIters: 50, NProbe: 1}, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientData)
}

func TestIVFDeterministicBuild(t *testing.T) {
	s := randomStore(t, 400, 16, 42)
	cfg := IVFConfig{NClusters: 8, MaxIters: 50, NProbe: 2}
	a, err := BuildIVF(s, cfg, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	b, err := BuildIVF(s, cfg, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.Equal(t, a.Centroids, b.Centroids)
	assert.Equal(t, a.Lists, b.Lists)
}
