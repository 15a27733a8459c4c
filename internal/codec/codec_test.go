package codec

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"vegamdb/internal/index"
	"vegamdb/internal/store"
	pkgerrors "vegamdb/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, n, dim int) *store.Store {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	s := store.New()
	rows := make([][]float32, n)
	for i := range rows {
		row := make([]float32, dim)
		for d := range row {
			row[d] = rng.Float32()
		}
		rows[i] = row
	}
	_, err := s.AddBatch(rows)
	require.NoError(t, err)
	return s
}

func tmpFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "db.vegam")
}

func TestRoundTripFlat(t *testing.T) {
	s := testStore(t, 100, 32)
	path := tmpFile(t)
	require.NoError(t, Save(path, &Snapshot{Store: s, Kind: index.KindFlat}))

	snap, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, index.KindFlat, snap.Kind)
	assert.Equal(t, 100, snap.Store.Size())
	assert.Equal(t, 32, snap.Store.Dimension())
	assert.Equal(t, s.Raw(), snap.Store.Raw())
	assert.Nil(t, snap.IVF)
	assert.Nil(t, snap.Annoy)
}

func TestRoundTripEmpty(t *testing.T) {
	path := tmpFile(t)
	require.NoError(t, Save(path, &Snapshot{Store: store.New(), Kind: index.KindFlat}))

	snap, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Store.Size())
	assert.Equal(t, 0, snap.Store.Dimension())
}

func TestRoundTripIVF(t *testing.T) {
	s := testStore(t, 500, 16)
	ivf, err := index.BuildIVF(s, index.IVFConfig{NClusters: 5, MaxIters: 50, NProbe: 3}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	path := tmpFile(t)
	require.NoError(t, Save(path, &Snapshot{Store: s, Kind: index.KindIVF, IVF: ivf}))

	snap, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, snap.IVF)
	assert.Equal(t, index.KindIVF, snap.Kind)
	assert.Equal(t, ivf.Config, snap.IVF.Config)
	assert.Equal(t, ivf.Centroids, snap.IVF.Centroids)
	assert.Equal(t, ivf.Lists, snap.IVF.Lists)
}

func TestRoundTripAnnoy(t *testing.T) {
	s := testStore(t, 300, 8)
	forest := index.BuildForest(s, index.AnnoyConfig{NumTrees: 4, KLeaf: 20, UsePriorityQueue: true}, rand.New(rand.NewSource(1)))

	path := tmpFile(t)
	require.NoError(t, Save(path, &Snapshot{Store: s, Kind: index.KindAnnoy, Annoy: forest}))

	snap, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, snap.Annoy)
	assert.Equal(t, forest.Config, snap.Annoy.Config)
	assert.Equal(t, forest.Trees, snap.Annoy.Trees)
}

// Saving a loaded snapshot again must reproduce the file byte for byte.
func TestSecondSaveBytesEqual(t *testing.T) {
	s := testStore(t, 200, 12)
	ivf, err := index.BuildIVF(s, index.IVFConfig{NClusters: 4, MaxIters: 50, NProbe: 2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	first := tmpFile(t)
	require.NoError(t, Save(first, &Snapshot{Store: s, Kind: index.KindIVF, IVF: ivf}))
	snap, err := Load(first)
	require.NoError(t, err)

	second := filepath.Join(t.TempDir(), "again.vegam")
	require.NoError(t, Save(second, snap))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := tmpFile(t)
	require.NoError(t, os.WriteFile(path, []byte("NOPExxxxxxxxxxxxxxxx"), 0644))
	_, err := Load(path)
	assert.ErrorIs(t, err, pkgerrors.ErrCorruptIndex)
}

func TestLoadRejectsBadVersion(t *testing.T) {
	s := testStore(t, 10, 4)
	path := tmpFile(t)
	require.NoError(t, Save(path, &Snapshot{Store: s, Kind: index.KindFlat}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[4] = 99 // version field
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Load(path)
	assert.ErrorIs(t, err, pkgerrors.ErrCorruptIndex)
}

func TestLoadRejectsTruncated(t *testing.T) {
	s := testStore(t, 50, 8)
	path := tmpFile(t)
	require.NoError(t, Save(path, &Snapshot{Store: s, Kind: index.KindFlat}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-40], 0644))

	_, err = Load(path)
	assert.ErrorIs(t, err, pkgerrors.ErrCorruptIndex)
}

func TestLoadRejectsTrailingBytes(t *testing.T) {
	s := testStore(t, 10, 4)
	path := tmpFile(t)
	require.NoError(t, Save(path, &Snapshot{Store: s, Kind: index.KindFlat}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, 0xAB), 0644))

	_, err = Load(path)
	assert.ErrorIs(t, err, pkgerrors.ErrCorruptIndex)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.vegam"))
	assert.True(t, os.IsNotExist(err))
}
