package store

import (
	pkgerrors "vegamdb/pkg/errors"
)

// Store owns the vector matrix. Vectors are kept in one contiguous row-major
// float32 slice; the row index is the vector's ID. IDs are assigned in
// insertion order and never reused, so index structures can hold raw IDs
// across appends.
type Store struct {
	dim  int
	data []float32
}

// New returns an empty store. The dimension is fixed by the first Add.
func New() *Store {
	return &Store{}
}

// Add appends a vector and returns its ID.
func (s *Store) Add(vec []float32) (uint64, error) {
	if len(vec) == 0 {
		return 0, pkgerrors.ErrDimensionMismatch
	}
	if s.dim == 0 {
		s.dim = len(vec)
	}
	if len(vec) != s.dim {
		return 0, pkgerrors.ErrDimensionMismatch
	}
	id := uint64(len(s.data) / s.dim)
	s.data = append(s.data, vec...)
	return id, nil
}

// AddBatch appends each row in order. All rows are dimension-checked before
// the first append, so a failed batch leaves the store untouched.
func (s *Store) AddBatch(rows [][]float32) ([]uint64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	dim := s.dim
	if dim == 0 {
		dim = len(rows[0])
	}
	if dim == 0 {
		return nil, pkgerrors.ErrDimensionMismatch
	}
	for _, row := range rows {
		if len(row) != dim {
			return nil, pkgerrors.ErrDimensionMismatch
		}
	}
	s.dim = dim
	ids := make([]uint64, len(rows))
	for i, row := range rows {
		ids[i] = uint64(len(s.data) / s.dim)
		s.data = append(s.data, row...)
	}
	return ids, nil
}

// Row returns the vector at the given row index. The returned slice aliases
// the store's backing array and is only valid until the next Add.
func (s *Store) Row(i int) []float32 {
	start := i * s.dim
	return s.data[start : start+s.dim]
}

// Size returns the number of stored vectors.
func (s *Store) Size() int {
	if s.dim == 0 {
		return 0
	}
	return len(s.data) / s.dim
}

// Dimension returns the vector dimension, or 0 before the first insert.
func (s *Store) Dimension() int {
	return s.dim
}

// Raw exposes the backing row-major matrix for serialization.
func (s *Store) Raw() []float32 {
	return s.data
}

// FromRaw rebuilds a store around an existing row-major matrix.
func FromRaw(dim int, data []float32) *Store {
	return &Store{dim: dim, data: data}
}
