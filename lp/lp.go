// Package lp defines the immutable linear-programming data model consumed
// by the dual simplex engine: a column-wise sparse constraint matrix, cost
// and bound vectors, and the caller-visible action/status signals used to
// invalidate state derived from it.
package lp

import (
	"math"

	"github.com/pkg/errors"
)

// ObjSense is the optimization direction.
type ObjSense int

const (
	// Minimize is the default sense.
	Minimize ObjSense = iota
	// Maximize flips the sign of the cost vector internally.
	Maximize
)

// String returns a human-readable representation of the sense.
func (s ObjSense) String() string {
	if s == Maximize {
		return "Maximize"
	}
	return "Minimize"
}

// LP holds a column-wise sparse linear program:
//
//	minimize (or maximize) c^T x
//	subject to  l <= x <= u
//	            l_r <= A x <= u_r
//
// An LP is read-only once loaded; a solving engine never mutates it
// in place. Scaling or perturbation produces a derived copy.
type LP struct {
	NumRow int
	NumCol int

	// AStart has length NumCol+1; AStart[NumCol] == len(AIndex).
	AStart  []int
	AIndex  []int
	AValue  []float64
	ColCost []float64

	ColLower []float64
	ColUpper []float64
	RowLower []float64
	RowUpper []float64

	Sense ObjSense

	// ColNames and RowNames are optional; nil means "unnamed".
	ColNames []string
	RowNames []string
}

// FixedEqualTolerance is the gap below which a column or row with l > u is
// still treated as fixed rather than rejected as infeasible-by-construction.
const FixedEqualTolerance = 1e-9

// Infinity is the bound magnitude treated as unbounded throughout the
// engine (a column/row lower bound at -Infinity or upper bound at
// +Infinity is a free side), matching the convention used by HiGHS and
// carried through here rather than relying on math.Inf, so that
// arithmetic on bounds (e.g. WorkRange) never produces a NaN from
// Inf-Inf.
const Infinity = 1e30

// Validate checks the structural invariants of an LP: monotone AStart,
// in-range and sorted AIndex per column, consistent lengths, finite
// costs and matrix values, and non-NaN bounds with l <= u (up to
// FixedEqualTolerance); infinite bounds are accepted. It does not attempt
// to detect numerical infeasibility of the constraint system itself.
func (lp *LP) Validate() error {
	if lp.NumRow < 0 || lp.NumCol < 0 {
		return errors.Errorf("lp: negative dimensions (m=%d, n=%d)", lp.NumRow, lp.NumCol)
	}
	if len(lp.AStart) != lp.NumCol+1 {
		return errors.Errorf("lp: AStart has length %d, want %d", len(lp.AStart), lp.NumCol+1)
	}
	if len(lp.ColCost) != lp.NumCol {
		return errors.Errorf("lp: ColCost has length %d, want %d", len(lp.ColCost), lp.NumCol)
	}
	if len(lp.ColLower) != lp.NumCol || len(lp.ColUpper) != lp.NumCol {
		return errors.Errorf("lp: column bounds have wrong length")
	}
	if len(lp.RowLower) != lp.NumRow || len(lp.RowUpper) != lp.NumRow {
		return errors.Errorf("lp: row bounds have wrong length")
	}

	if lp.AStart[0] != 0 {
		return errors.Errorf("lp: AStart[0] = %d, want 0", lp.AStart[0])
	}
	if lp.AStart[lp.NumCol] != len(lp.AIndex) {
		return errors.Errorf("lp: AStart[n] = %d, want nnz = %d", lp.AStart[lp.NumCol], len(lp.AIndex))
	}
	if len(lp.AIndex) != len(lp.AValue) {
		return errors.Errorf("lp: AIndex/AValue length mismatch (%d vs %d)", len(lp.AIndex), len(lp.AValue))
	}

	for j := 0; j < lp.NumCol; j++ {
		lo, hi := lp.AStart[j], lp.AStart[j+1]
		if hi < lo {
			return errors.Errorf("lp: AStart not monotone at column %d", j)
		}
		prev := -1
		for k := lo; k < hi; k++ {
			idx := lp.AIndex[k]
			if idx < 0 || idx >= lp.NumRow {
				return errors.Errorf("lp: column %d has out-of-range row index %d", j, idx)
			}
			if idx <= prev {
				return errors.Errorf("lp: column %d has unsorted/duplicate row index %d", j, idx)
			}
			prev = idx
			if !isFinite(lp.AValue[k]) {
				return errors.Errorf("lp: column %d has non-finite value at row %d", j, idx)
			}
		}
	}

	for j := 0; j < lp.NumCol; j++ {
		if math.IsNaN(lp.ColCost[j]) || math.IsInf(lp.ColCost[j], 0) {
			return errors.Errorf("lp: non-finite cost at column %d", j)
		}
		if err := validateBoundPair(lp.ColLower[j], lp.ColUpper[j]); err != nil {
			return errors.Wrapf(err, "lp: column %d", j)
		}
	}
	for i := 0; i < lp.NumRow; i++ {
		if err := validateBoundPair(lp.RowLower[i], lp.RowUpper[i]); err != nil {
			return errors.Wrapf(err, "lp: row %d", i)
		}
	}
	return nil
}

func validateBoundPair(lo, hi float64) error {
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return errors.New("NaN bound")
	}
	if lo > hi+FixedEqualTolerance {
		return errors.Errorf("lower bound %g exceeds upper bound %g", lo, hi)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NumTotal returns the number of structural plus logical variables
// (n + m), the size of the working arrays indexed by §3.
func (lp *LP) NumTotal() int {
	return lp.NumCol + lp.NumRow
}

// ColumnNNZ returns the number of nonzeros in column j.
func (lp *LP) ColumnNNZ(j int) int {
	return lp.AStart[j+1] - lp.AStart[j]
}
