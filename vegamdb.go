package vegamdb

import (
	"math/rand"
	"sync"

	"vegamdb/internal/codec"
	"vegamdb/internal/index"
	"vegamdb/internal/store"
	pkgerrors "vegamdb/pkg/errors"
)

// DefaultSeed seeds index builds unless SetSeed is called, keeping IVF
// training and Annoy tree growth reproducible out of the box.
const DefaultSeed = 42

// SearchResult carries parallel id/distance slices of length min(k, Size()),
// ordered by ascending distance (ties by ascending ID). Distances are
// squared Euclidean.
type SearchResult = index.Result

// Stats summarizes the database state.
type Stats struct {
	Size      int
	Dimension int
	IndexKind string
	Built     bool
}

// DB is a vector database value: a vector store plus at most one active
// index strategy. The zero strategy is exact brute-force search.
//
// DB is single-writer, multi-reader: searches run concurrently under a read
// lock while AddVector, BuildIndex, Save and Load take the write lock, so an
// index is never observed mid-build.
type DB struct {
	mu    sync.RWMutex
	store *store.Store
	seed  int64

	kind     index.Kind
	ivfCfg   index.IVFConfig
	annoyCfg index.AnnoyConfig
	ivf      *index.IVF
	annoy    *index.Forest
}

// New returns an empty database. The dimension is fixed by the first vector.
func New() *DB {
	return &DB{store: store.New(), seed: DefaultSeed}
}

// SetSeed fixes the RNG seed used by subsequent BuildIndex calls.
func (db *DB) SetSeed(seed int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seed = seed
}

// AddVector appends one vector and returns its ID. Fails with
// ErrDimensionMismatch when the length disagrees with the established
// dimension. Vectors added after BuildIndex are only searchable by the flat
// strategy until the index is rebuilt.
func (db *DB) AddVector(vec []float32) (uint64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Add(vec)
}

// AddVectorBatch appends every row of a 2-D matrix and returns the new IDs.
// The batch is validated before the first append, so a failed call leaves
// the database untouched.
func (db *DB) AddVectorBatch(rows [][]float32) ([]uint64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.AddBatch(rows)
}

// Size returns the number of stored vectors.
func (db *DB) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.store.Size()
}

// Dimension returns the vector dimension, or 0 while the database is empty.
func (db *DB) Dimension() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.store.Dimension()
}

// Stats reports size, dimension and the active index state.
func (db *DB) Stats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return Stats{
		Size:      db.store.Size(),
		Dimension: db.store.Dimension(),
		IndexKind: db.kind.String(),
		Built:     db.built(),
	}
}

// UseFlatIndex selects exact brute-force search and discards any trained
// structure.
func (db *DB) UseFlatIndex() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.kind = index.KindFlat
	db.dropTrained()
}

// UseIVFIndex selects the inverted-file strategy. nProbe values < 1 default
// to 1. The index answers flat searches until BuildIndex succeeds.
func (db *DB) UseIVFIndex(nClusters, maxIters, nProbe int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if nClusters < 1 {
		nClusters = 1
	}
	if maxIters < 1 {
		maxIters = index.DefaultMaxIters
	}
	if nProbe < 1 {
		nProbe = index.DefaultNProbe
	}
	db.kind = index.KindIVF
	db.ivfCfg = index.IVFConfig{NClusters: nClusters, MaxIters: maxIters, NProbe: nProbe}
	db.dropTrained()
}

// UseAnnoyIndex selects the random-projection forest strategy. The index
// answers flat searches until BuildIndex succeeds.
func (db *DB) UseAnnoyIndex(numTrees, kLeaf int, usePriorityQueue bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if numTrees < 1 {
		numTrees = 1
	}
	if kLeaf < 1 {
		kLeaf = 1
	}
	db.kind = index.KindAnnoy
	db.annoyCfg = index.AnnoyConfig{NumTrees: numTrees, KLeaf: kLeaf, UsePriorityQueue: usePriorityQueue}
	db.dropTrained()
}

// BuildIndex trains the active strategy over the current vectors. It is a
// no-op for the flat strategy. IVF fails with ErrInsufficientData when the
// store holds fewer vectors than clusters; a failed build leaves the
// database searchable via the flat fallback.
func (db *DB) BuildIndex() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	rng := rand.New(rand.NewSource(db.seed))
	switch db.kind {
	case index.KindIVF:
		ivf, err := index.BuildIVF(db.store, db.ivfCfg, rng)
		if err != nil {
			return err
		}
		db.ivf = ivf
	case index.KindAnnoy:
		db.annoy = index.BuildForest(db.store, db.annoyCfg, rng)
	}
	return nil
}

// Search returns the k nearest neighbors of query. At most one params value
// may be given; its kind must match the active index or the call fails with
// ErrParamsKindMismatch. A selected but unbuilt IVF or Annoy index falls
// back to exact flat search. An empty database returns an empty result.
func (db *DB) Search(query []float32, k int, params ...SearchParams) (SearchResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var p SearchParams
	if len(params) > 0 {
		p = params[0]
	}
	if db.store.Size() == 0 {
		return SearchResult{IDs: []uint64{}, Distances: []float32{}}, nil
	}
	if len(query) != db.store.Dimension() {
		return SearchResult{}, pkgerrors.ErrDimensionMismatch
	}

	switch db.kind {
	case index.KindIVF:
		ivfParams, ok := p.(IVFSearchParams)
		if p != nil && !ok {
			return SearchResult{}, pkgerrors.ErrParamsKindMismatch
		}
		if db.ivf == nil {
			return index.SearchFlat(db.store, query, k), nil
		}
		nProbe := db.ivfCfg.NProbe
		if ok && ivfParams.NProbe != 0 {
			nProbe = ivfParams.NProbe
		}
		return db.ivf.Search(db.store, query, k, nProbe), nil

	case index.KindAnnoy:
		annoyParams, ok := p.(AnnoyIndexParams)
		if p != nil && !ok {
			return SearchResult{}, pkgerrors.ErrParamsKindMismatch
		}
		if db.annoy == nil {
			return index.SearchFlat(db.store, query, k), nil
		}
		searchK := 0
		usePQ := db.annoyCfg.UsePriorityQueue
		if ok {
			searchK = annoyParams.SearchK
			usePQ = annoyParams.UsePriorityQueue
		}
		return db.annoy.Search(db.store, query, k, searchK, usePQ), nil

	default:
		if p != nil {
			return SearchResult{}, pkgerrors.ErrParamsKindMismatch
		}
		return index.SearchFlat(db.store, query, k), nil
	}
}

// Save writes the store and the active index to path, atomically. A selected
// but never-built index has no trained structure to persist and is saved as
// flat, matching its search behavior.
func (db *DB) Save(path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	kind := db.kind
	if !db.built() {
		kind = index.KindFlat
	}
	return codec.Save(path, &codec.Snapshot{
		Store: db.store,
		Kind:  kind,
		IVF:   db.ivf,
		Annoy: db.annoy,
	})
}

// Load replaces the database contents with the snapshot at path. The file is
// fully decoded and validated before anything is swapped in, so a failed
// load leaves the database untouched.
func (db *DB) Load(path string) error {
	snap, err := codec.Load(path)
	if err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.store = snap.Store
	db.kind = snap.Kind
	db.ivf = snap.IVF
	db.annoy = snap.Annoy
	if snap.IVF != nil {
		db.ivfCfg = snap.IVF.Config
	}
	if snap.Annoy != nil {
		db.annoyCfg = snap.Annoy.Config
	}
	return nil
}

func (db *DB) dropTrained() {
	db.ivf = nil
	db.annoy = nil
}

func (db *DB) built() bool {
	switch db.kind {
	case index.KindIVF:
		return db.ivf != nil
	case index.KindAnnoy:
		return db.annoy != nil
	default:
		return true
	}
}
