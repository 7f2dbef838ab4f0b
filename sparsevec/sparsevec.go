// Package sparsevec implements the hybrid dense/indexed vector used
// throughout the engine for FTRAN/BTRAN results, pricing rows and primal
// update directions. A SparseVector tracks its own nonzero pattern so
// that hyper-sparse callers (PRICE_ROW, FTRAN on a unit vector) can walk
// only the touched entries instead of the full array.
package sparsevec

import "gonum.org/v1/gonum/floats"

// SparseVector is a length-n vector that is usually mostly zero. Values
// live in a dense backing array (Dense) for O(1) random access; Index
// holds the positions currently believed nonzero. The two can fall out of
// sync by construction (an index may point at a value that has since
// become exactly zero through cancellation) — callers that need an exact
// count should call Compact first.
type SparseVector struct {
	Dense []float64
	Index []int
	n     int
}

// New returns a zeroed SparseVector of length n.
func New(n int) *SparseVector {
	return &SparseVector{Dense: make([]float64, n), Index: nil, n: n}
}

// Len returns the vector's length.
func (v *SparseVector) Len() int { return v.n }

// NNZ returns the number of entries currently tracked in Index. This is
// an upper bound on the true nonzero count until Compact is called.
func (v *SparseVector) NNZ() int { return len(v.Index) }

// Density returns NNZ()/Len(), or 0 for an empty vector.
func (v *SparseVector) Density() float64 {
	if v.n == 0 {
		return 0
	}
	return float64(len(v.Index)) / float64(v.n)
}

// Reset zeroes the vector and clears the index, keeping the backing array.
func (v *SparseVector) Reset() {
	for _, i := range v.Index {
		v.Dense[i] = 0
	}
	v.Index = v.Index[:0]
}

// Set assigns value at position i, adding i to the index if it is not
// already tracked. Setting a previously-tracked position to exactly zero
// does not remove it from the index; call Compact to drop such entries.
func (v *SparseVector) Set(i int, value float64) {
	if v.Dense[i] == 0 && value != 0 {
		v.Index = append(v.Index, i)
	}
	v.Dense[i] = value
}

// Add accumulates delta into position i, tracking i in the index the
// first time it becomes nonzero.
func (v *SparseVector) Add(i int, delta float64) {
	if delta == 0 {
		return
	}
	if v.Dense[i] == 0 {
		v.Index = append(v.Index, i)
	}
	v.Dense[i] += delta
}

// Compact drops index entries whose value has become exactly zero,
// restoring the invariant that Index lists exactly the nonzeros.
func (v *SparseVector) Compact() {
	kept := v.Index[:0]
	for _, i := range v.Index {
		if v.Dense[i] != 0 {
			kept = append(kept, i)
		}
	}
	v.Index = kept
}

// ToDense returns a copy of the full dense backing array.
func (v *SparseVector) ToDense() []float64 {
	out := make([]float64, v.n)
	copy(out, v.Dense)
	return out
}

// FromDense overwrites v with a fresh copy of data, rebuilding the index
// from scratch. Used when a caller hands back a result computed densely
// (e.g. a BTRAN result in the simplex engine's iteration).
func (v *SparseVector) FromDense(data []float64) {
	if len(data) != v.n {
		v.n = len(data)
		v.Dense = make([]float64, v.n)
	}
	copy(v.Dense, data)
	v.Index = v.Index[:0]
	for i, x := range v.Dense {
		if x != 0 {
			v.Index = append(v.Index, i)
		}
	}
}

// SumSquares returns sum(x_i^2) over the dense backing array, the form
// of a DSE weight (gamma_i = ||e_i^T B^-1||^2). Delegates to
// gonum/floats so the hot accumulation loop gets the same treatment the
// rest of the ecosystem's simplex codes give it.
func (v *SparseVector) SumSquares() float64 {
	return floats.Dot(v.Dense, v.Dense)
}

// Scale multiplies every entry (dense and tracked) by c in place.
func (v *SparseVector) Scale(c float64) {
	if c == 0 {
		v.Reset()
		return
	}
	floats.Scale(c, v.Dense)
}

// Copy returns a deep copy of v.
func (v *SparseVector) Copy() *SparseVector {
	out := &SparseVector{
		Dense: append([]float64(nil), v.Dense...),
		Index: append([]int(nil), v.Index...),
		n:     v.n,
	}
	return out
}
