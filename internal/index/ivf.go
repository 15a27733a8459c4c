package index

import (
	"math/rand"
	"sort"

	"vegamdb/internal/store"
)

// IVFConfig holds the parameters selected at use_ivf_index time.
type IVFConfig struct {
	NClusters int
	MaxIters  int
	NProbe    int
}

// IVF is a trained inverted-file index: a coarse quantizer (the centroid
// matrix) plus one inverted list of store IDs per centroid. It is immutable
// after build; new vectors require a full rebuild.
type IVF struct {
	Config    IVFConfig
	Centroids [][]float32
	Lists     [][]uint32
}

// BuildIVF trains the coarse quantizer with k-means and materializes the
// inverted lists. Fails with ErrInsufficientData when the store holds fewer
// rows than clusters.
func BuildIVF(s *store.Store, cfg IVFConfig, rng *rand.Rand) (*IVF, error) {
	centroids, lists, err := kmeans(s, cfg.NClusters, cfg.MaxIters, rng)
	if err != nil {
		return nil, err
	}
	return &IVF{Config: cfg, Centroids: centroids, Lists: lists}, nil
}

// Search scans the nProbe inverted lists whose centroids are closest to the
// query. nProbe is clamped to [1, NClusters].
func (ivf *IVF) Search(s *store.Store, query []float32, k, nProbe int) Result {
	if nProbe < 1 {
		nProbe = 1
	}
	if nProbe > len(ivf.Centroids) {
		nProbe = len(ivf.Centroids)
	}

	type centroidDist struct {
		idx  int
		dist float32
	}
	cds := make([]centroidDist, len(ivf.Centroids))
	for i, c := range ivf.Centroids {
		cds[i] = centroidDist{idx: i, dist: SqDist(query, c)}
	}
	sort.Slice(cds, func(i, j int) bool {
		if cds[i].dist != cds[j].dist {
			return cds[i].dist < cds[j].dist
		}
		return cds[i].idx < cds[j].idx
	})

	h := newTopK(k)
	for _, cd := range cds[:nProbe] {
		for _, id := range ivf.Lists[cd.idx] {
			h.add(candidate{id: uint64(id), dist: SqDist(query, s.Row(int(id)))})
		}
	}
	return h.drain()
}
