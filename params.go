package vegamdb

// SearchParams narrows a single search. It is a closed union: exactly
// IVFSearchParams and AnnoyIndexParams implement it, and each is accepted
// only while the matching index kind is active.
type SearchParams interface {
	searchParams()
}

// IVFSearchParams overrides the probe count for one IVF search.
type IVFSearchParams struct {
	// NProbe is the number of inverted lists scanned; clamped to
	// [1, n_clusters]. Zero means the value configured at UseIVFIndex time.
	NProbe int
}

func (IVFSearchParams) searchParams() {}

// AnnoyIndexParams overrides the traversal of one Annoy search.
type AnnoyIndexParams struct {
	// SearchK bounds how many candidate IDs the priority-queue traversal
	// visits before reranking. Zero means NumTrees * k * 10. Ignored by the
	// greedy traversal.
	SearchK int
	// UsePriorityQueue selects best-first traversal over greedy descent.
	UsePriorityQueue bool
}

func (AnnoyIndexParams) searchParams() {}
