// Package factor maintains an invertible representation of the current
// basis matrix B: a base LU factorisation refreshed by REFACTOR, plus a
// product-form eta file of the pivots performed since the last refactor
// (§4.2). FTRAN solves B*x = v, BTRAN solves B^T*x = v, and UPDATE
// appends one eta without disturbing the base factorisation.
package factor

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// InvertHint is raised by the engine to force a refactor independently of
// the count/fill-based policy (§4.2).
type InvertHint int

const (
	HintNoCandidate InvertHint = iota
	HintPossiblySingular
	HintPossiblyOptimal
	HintPossiblyUnbounded
	HintPrimalInfeasInDual
	HintChooseColumnFail
	HintSyntheticClock
)

// String returns the hint's name.
func (h InvertHint) String() string {
	switch h {
	case HintNoCandidate:
		return "NO_CANDIDATE"
	case HintPossiblySingular:
		return "POSSIBLY_SINGULAR"
	case HintPossiblyOptimal:
		return "POSSIBLY_OPTIMAL"
	case HintPossiblyUnbounded:
		return "POSSIBLY_UNBOUNDED"
	case HintPrimalInfeasInDual:
		return "PRIMAL_INFEAS_IN_DUAL"
	case HintChooseColumnFail:
		return "CHOOSE_COLUMN_FAIL"
	case HintSyntheticClock:
		return "SYNTHETIC_CLOCK"
	default:
		return "UNKNOWN"
	}
}

// ErrSingular is returned by Refactor when the basis matrix is singular
// to working precision.
var ErrSingular = errors.New("factor: basis matrix is singular")

// ErrNegligiblePivot is returned by Update when the supplied pivot
// element is too small to divide by safely.
var ErrNegligiblePivot = errors.New("factor: pivot element below tolerance")

// ErrPivotMismatch is returned by VerifyPivot when the pivot element
// computed from the pricing row disagrees with the one recomputed from
// the FTRAN'd column, signalling a numerically unreliable basis.
var ErrPivotMismatch = errors.New("factor: pivot value mismatch between pi and a_q")

// PivotTolerance is the minimum |alpha| accepted by Update.
const PivotTolerance = 1e-9

// PivotMismatchRelTolerance bounds the relative disagreement VerifyPivot
// tolerates between the two independently computed pivot values.
const PivotMismatchRelTolerance = 1e-8

// eta is one product-form update: B_new^-1 = E * B_old^-1, where E is the
// identity matrix with column p replaced by Col (§4.2 "append a product-
// form eta").
type eta struct {
	p   int
	col []float64
}

// Factor holds the base LU factorisation of B plus the eta file of
// updates applied since. DefaultOptions returns the refactor-policy
// defaults named in §4.2; callers pass their own Options to override
// them.
type Factor struct {
	m  int
	lu *mat.LU

	etas []eta

	updateCount   int
	updateLimit   int
	fillAccum     float64
	fillThreshold float64

	synthTick      float64
	synthTickLimit float64

	hint InvertHint
}

// Options configures the refactor policy.
type Options struct {
	UpdateLimit    int     // default 5000, mirrors the engine's update_limit option
	FillThreshold  float64 // cumulative eta fill before a forced refactor
	SynthTickLimit float64 // synthetic-tick budget between refactors
}

// DefaultOptions returns the policy defaults used when an engine does not
// override them.
func DefaultOptions() Options {
	return Options{
		UpdateLimit:    5000,
		FillThreshold:  8.0,
		SynthTickLimit: 5e6,
	}
}

// New creates an empty, unfactored Factor of size m. Refactor must be
// called before FTRAN/BTRAN/Update are valid.
func New(m int, opt Options) *Factor {
	return &Factor{
		m:              m,
		updateLimit:    opt.UpdateLimit,
		fillThreshold:  opt.FillThreshold,
		synthTickLimit: opt.SynthTickLimit,
	}
}

// Size returns the basis dimension m.
func (f *Factor) Size() int { return f.m }

// Refactor recomputes the LU factorisation of B from scratch given its m
// dense columns (basisCols[j] is column j of B, length m), discards the
// eta file and resets the update counters. This is the REFACTOR contract
// of §4.2; the base factorisation itself is delegated to gonum's dense
// LU (grounded on felipends-revised-simplex and gonum-optimize, both of
// which invert the simplex basis with gonum matrix types every
// iteration) — the bespoke, simplex-specific part is everything built on
// top: the eta file, the refactor policy, and the hint machinery below.
func (f *Factor) Refactor(basisCols [][]float64) error {
	m := f.m
	dense := mat.NewDense(m, m, nil)
	for j, col := range basisCols {
		dense.SetCol(j, col)
	}

	var lu mat.LU
	lu.Factorize(dense)
	if cond := lu.Cond(); math.IsInf(cond, 1) || math.IsNaN(cond) {
		return ErrSingular
	}

	f.lu = &lu
	f.etas = f.etas[:0]
	f.updateCount = 0
	f.fillAccum = 0
	f.synthTick = 0
	f.hint = HintNoCandidate
	return nil
}

// FTRAN solves B*x = v and returns x: a base dense solve followed by the
// eta file applied oldest-to-newest, matching B_new^-1 = E_k...E_1*B0^-1.
func (f *Factor) FTRAN(v []float64) []float64 {
	b := mat.NewVecDense(f.m, append([]float64(nil), v...))
	x := mat.NewVecDense(f.m, nil)
	_ = f.lu.SolveVecTo(x, false, b)

	result := make([]float64, f.m)
	for i := 0; i < f.m; i++ {
		result[i] = x.AtVec(i)
	}
	for _, e := range f.etas {
		xp := result[e.p]
		for i := 0; i < f.m; i++ {
			if i == e.p {
				continue
			}
			result[i] += xp * e.col[i]
		}
		result[e.p] = xp * e.col[e.p]
	}
	f.synthTick += float64(f.m)
	return result
}

// BTRAN solves B^T*x = v: the eta file applied newest-to-oldest via
// E_i^T, then the base transpose solve, matching
// B_new^-T = B0^-T * E_1^T...E_k^T.
func (f *Factor) BTRAN(v []float64) []float64 {
	y := append([]float64(nil), v...)
	for i := len(f.etas) - 1; i >= 0; i-- {
		e := f.etas[i]
		var dot float64
		for k := 0; k < f.m; k++ {
			dot += e.col[k] * y[k]
		}
		y[e.p] = dot
	}

	b := mat.NewVecDense(f.m, y)
	x := mat.NewVecDense(f.m, nil)
	_ = f.lu.SolveVecTo(x, true, b)

	out := make([]float64, f.m)
	for i := 0; i < f.m; i++ {
		out[i] = x.AtVec(i)
	}
	f.synthTick += float64(f.m)
	return out
}

// Update appends a product-form eta for the pivot that replaces the
// basic variable in row p with the column whose FTRAN'd image is
// aFtran (aFtran[p] == alpha, the pivot element). Returns
// ErrNegligiblePivot if alpha is too small to be trusted.
func (f *Factor) Update(aFtran []float64, p int, alpha float64) error {
	if math.Abs(alpha) < PivotTolerance {
		return ErrNegligiblePivot
	}
	col := make([]float64, f.m)
	nnz := 0
	for i := 0; i < f.m; i++ {
		if i == p {
			continue
		}
		col[i] = -aFtran[i] / alpha
		if col[i] != 0 {
			nnz++
		}
	}
	col[p] = 1 / alpha

	f.etas = append(f.etas, eta{p: p, col: col})
	f.updateCount++
	f.fillAccum += float64(nnz) / float64(f.m)
	f.synthTick += float64(f.m)
	return nil
}

// VerifyPivot compares the pivot element read off the pricing row
// (alphaFromPi, i.e. pi_q) against the one recomputed from the FTRAN'd
// entering column (aFtran[p]) and raises an error on disagreement,
// implementing the updateVerify post-UPDATE check of §4.2.
func (f *Factor) VerifyPivot(aFtran []float64, p int, alphaFromPi float64) error {
	alphaFromCol := aFtran[p]
	tol := PivotMismatchRelTolerance * (1 + math.Abs(alphaFromPi))
	if math.Abs(alphaFromCol-alphaFromPi) > tol {
		return ErrPivotMismatch
	}
	return nil
}

// RaiseHint records an invert hint that forces NeedsRefactor to return
// true regardless of the count/fill/tick policy.
func (f *Factor) RaiseHint(h InvertHint) { f.hint = h }

// ClearHint drops any pending hint, called after a refactor absorbs it.
func (f *Factor) ClearHint() { f.hint = HintNoCandidate }

// NeedsRefactor implements the refactor policy of §4.2: an explicit hint,
// or the update count, cumulative fill or synthetic-tick budget being
// exceeded.
func (f *Factor) NeedsRefactor() (bool, InvertHint) {
	if f.hint != HintNoCandidate {
		return true, f.hint
	}
	if f.updateCount >= f.updateLimit {
		return true, HintNoCandidate
	}
	if f.fillAccum > f.fillThreshold {
		return true, HintNoCandidate
	}
	if f.synthTick > f.synthTickLimit {
		return true, HintSyntheticClock
	}
	return false, HintNoCandidate
}

// UpdateCount returns the number of etas appended since the last
// refactor.
func (f *Factor) UpdateCount() int { return f.updateCount }

// DenseInverseColumn returns e_i^T * B^-1 (a length-m row, returned as a
// plain slice) computed directly from the base LU factorisation,
// ignoring the eta file. Used by the simplex engine's rebuild and by
// its exact DSE weight initialisation to recompute gamma_r at a fresh
// basis (§4.3 "accuracy is monitored by comparing predicted vs.
// recomputed gamma_r at rebuild").
func (f *Factor) DenseInverseColumn(i int) []float64 {
	e := mat.NewVecDense(f.m, nil)
	e.SetVec(i, 1)
	x := mat.NewVecDense(f.m, nil)
	_ = f.lu.SolveVecTo(x, true, e)
	out := make([]float64, f.m)
	for k := 0; k < f.m; k++ {
		out[k] = x.AtVec(k)
	}
	return out
}
