package index

import (
	"container/heap"
	"math"
	"math/rand"

	"vegamdb/internal/store"
)

// AnnoyConfig holds the parameters selected at use_annoy_index time.
type AnnoyConfig struct {
	NumTrees         int
	KLeaf            int
	UsePriorityQueue bool
}

// Node is one node of a random-projection tree. Interior nodes carry a split
// hyperplane (Normal, Offset) and two children; leaves carry a bag of store
// IDs and have nil children.
type Node struct {
	IDs    []uint32
	Normal []float32
	Offset float32
	Left   *Node
	Right  *Node
}

// Leaf reports whether the node is a leaf.
func (n *Node) Leaf() bool { return n.Left == nil }

// Forest is a trained Annoy index: NumTrees independent random-projection
// trees over the same store. Immutable after build.
type Forest struct {
	Config AnnoyConfig
	Trees  []*Node
}

// splitRetries bounds how often a degenerate pivot pair (identical vectors)
// is redrawn before giving up on the split.
const splitRetries = 5

// BuildForest grows NumTrees trees over all rows of the store, each from its
// own stream of the shared RNG so builds are reproducible for a fixed seed.
func BuildForest(s *store.Store, cfg AnnoyConfig, rng *rand.Rand) *Forest {
	if cfg.KLeaf < 1 {
		cfg.KLeaf = 1
	}
	ids := make([]uint32, s.Size())
	for i := range ids {
		ids[i] = uint32(i)
	}
	trees := make([]*Node, cfg.NumTrees)
	for t := range trees {
		treeRng := rand.New(rand.NewSource(rng.Int63()))
		trees[t] = buildTree(s, ids, cfg.KLeaf, treeRng)
	}
	return &Forest{Config: cfg, Trees: trees}
}

// buildTree recursively splits ids by random hyperplanes until sets fit in a
// leaf. ids is never mutated; each level allocates its own partitions.
func buildTree(s *store.Store, ids []uint32, kLeaf int, rng *rand.Rand) *Node {
	if len(ids) <= kLeaf {
		return &Node{IDs: append([]uint32(nil), ids...)}
	}

	normal, offset, ok := pickSplit(s, ids, rng)
	if !ok {
		// Every pivot pair drawn within splitRetries tries coincided; the
		// whole set becomes one oversized leaf.
		return &Node{IDs: append([]uint32(nil), ids...)}
	}

	var left, right []uint32
	for _, id := range ids {
		if Dot(normal, s.Row(int(id)))-offset < 0 {
			left = append(left, id)
		} else {
			right = append(right, id)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &Node{IDs: append([]uint32(nil), ids...)}
	}
	return &Node{
		Normal: normal,
		Offset: offset,
		Left:   buildTree(s, left, kLeaf, rng),
		Right:  buildTree(s, right, kLeaf, rng),
	}
}

// pickSplit draws two distinct pivot rows and returns the hyperplane halfway
// between them. Reports ok=false when every draw lands on identical vectors.
func pickSplit(s *store.Store, ids []uint32, rng *rand.Rand) (normal []float32, offset float32, ok bool) {
	dim := s.Dimension()
	for try := 0; try < splitRetries; try++ {
		i := rng.Intn(len(ids))
		j := rng.Intn(len(ids) - 1)
		if j >= i {
			j++
		}
		a := s.Row(int(ids[i]))
		b := s.Row(int(ids[j]))

		normal = make([]float32, dim)
		degenerate := true
		for d := 0; d < dim; d++ {
			normal[d] = a[d] - b[d]
			if normal[d] != 0 {
				degenerate = false
			}
		}
		if degenerate {
			continue
		}
		for d := 0; d < dim; d++ {
			offset += normal[d] * (a[d] + b[d]) / 2
		}
		return normal, offset, true
	}
	return nil, 0, false
}

// Search reranks the candidates produced by the selected traversal and
// returns the k nearest. searchK bounds the priority-queue traversal's
// candidate budget; values <= 0 fall back to NumTrees*k*10. Greedy ignores
// searchK.
func (f *Forest) Search(s *store.Store, query []float32, k, searchK int, usePriorityQueue bool) Result {
	var candidates []uint32
	if usePriorityQueue {
		if searchK <= 0 {
			searchK = f.Config.NumTrees * k * 10
		}
		candidates = f.collectBestFirst(query, searchK)
	} else {
		candidates = f.collectGreedy(query)
	}

	seen := make(map[uint32]struct{}, len(candidates))
	h := newTopK(k)
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		h.add(candidate{id: uint64(id), dist: SqDist(query, s.Row(int(id)))})
	}
	return h.drain()
}

// collectGreedy descends every tree to a single leaf by the sign of each
// split and unions the leaf bags.
func (f *Forest) collectGreedy(query []float32) []uint32 {
	var out []uint32
	for _, root := range f.Trees {
		n := root
		for !n.Leaf() {
			if Dot(n.Normal, query)-n.Offset < 0 {
				n = n.Left
			} else {
				n = n.Right
			}
		}
		out = append(out, n.IDs...)
	}
	return out
}

// collectBestFirst runs one best-first traversal across all trees at once.
// The queue is keyed by the smallest split margin seen on the path to each
// node, so the most ambiguous splits are expanded first and the "wrong" side
// of a near-tie is still explored. Collection stops once searchK candidate
// IDs have been visited.
func (f *Forest) collectBestFirst(query []float32, searchK int) []uint32 {
	pq := make(traversalQueue, 0, len(f.Trees))
	heap.Init(&pq)
	for _, root := range f.Trees {
		heap.Push(&pq, traversalItem{priority: float32(math.Inf(1)), node: root})
	}

	var out []uint32
	for len(out) < searchK && pq.Len() > 0 {
		item := heap.Pop(&pq).(traversalItem)
		n := item.node
		if n.Leaf() {
			out = append(out, n.IDs...)
			continue
		}
		margin := Dot(n.Normal, query) - n.Offset
		heap.Push(&pq, traversalItem{priority: minf(item.priority, margin), node: n.Right})
		heap.Push(&pq, traversalItem{priority: minf(item.priority, -margin), node: n.Left})
	}
	return out
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

type traversalItem struct {
	priority float32
	node     *Node
}

// traversalQueue is a max-heap over traversal priorities.
type traversalQueue []traversalItem

func (q traversalQueue) Len() int           { return len(q) }
func (q traversalQueue) Less(i, j int) bool { return q[i].priority > q[j].priority }
func (q traversalQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *traversalQueue) Push(x interface{}) { *q = append(*q, x.(traversalItem)) }
func (q *traversalQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
