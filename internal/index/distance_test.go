package index

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSqDist(t *testing.T) {
	assert.Equal(t, float32(0), SqDist([]float32{1, 2, 3}, []float32{1, 2, 3}))
	assert.Equal(t, float32(2), SqDist([]float32{1, 0, 0}, []float32{0, 1, 0}))
	assert.Equal(t, float32(25), SqDist([]float32{0, 3}, []float32{4, 0}))
}

// The unrolled kernel must agree with a plain loop for dimensions that are
// not a multiple of the unroll width.
func TestSqDistOddDimensions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, dim := range []int{1, 2, 3, 4, 5, 7, 8, 13, 64, 65} {
		a := make([]float32, dim)
		b := make([]float32, dim)
		for i := range a {
			a[i] = rng.Float32()
			b[i] = rng.Float32()
		}
		var want float32
		for i := range a {
			d := a[i] - b[i]
			want += d * d
		}
		assert.InDelta(t, want, SqDist(a, b), 1e-4, "dim %d", dim)
	}
}

func TestDot(t *testing.T) {
	assert.Equal(t, float32(11), Dot([]float32{1, 2, 3}, []float32{3, 1, 2}))
	assert.Equal(t, float32(0), Dot([]float32{1, 0}, []float32{0, 1}))
}
