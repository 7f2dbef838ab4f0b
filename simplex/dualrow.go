package simplex

import (
	"math"

	"github.com/anassmeskini/dualsimplex/internal/heap"
	"github.com/anassmeskini/dualsimplex/sparsevec"
)

// breakpoint is one pass-1 candidate for the bound-flipping ratio test:
// nonbasic column Col, breakpoint Theta = workDual[Col]/Pi, and the
// signed pricing-row entry itself (kept for the Harris tie-break).
type breakpoint struct {
	Col   int
	Theta float64
	Pi    float64
}

// DualRow runs CHUZC via the Bound-Flipping Ratio Test over a pivotal
// row (§4.5). The row pi is expected to already have the leaving
// variable's direction folded into its sign (i.e. pi = A^T*BTRAN(moveOut
// * e_r)), so the uniform candidate rule below — nonbasicMove[j]*pi_j<0
// — applies regardless of whether the leaving variable is below its
// lower bound or above its upper one. This sign convention is an Open
// Question resolution recorded in DESIGN.md.
type DualRow struct {
	state *State

	HarrisTolerance float64

	breakpoints []breakpoint
}

// NewDualRow binds a DualRow to state with the Harris tolerance band
// defaulted to 10*dual_feasibility_tolerance, per §9's resolution of
// that open question.
func NewDualRow(state *State) *DualRow {
	return &DualRow{state: state, HarrisTolerance: 10 * state.Tol.Dual}
}

// ErrNoCandidate/ErrChooseColumnFail are returned by Run; the caller
// maps them to the PossiblyUnbounded / ChooseColumnFail invert hints of
// §4.2/§4.5.
type ratioTestError struct{ msg string }

func (e *ratioTestError) Error() string { return e.msg }

var (
	// ErrNoCandidate means no nonbasic column has the correct sign —
	// the dual step is unbounded in the primal (§4.5 "no candidate of
	// correct sign exists").
	ErrNoCandidate = &ratioTestError{"dualrow: no candidate of correct sign"}
	// ErrPivotTooSmall means the chosen column's pivot element is below
	// tolerance (§4.5 "CHOOSE_COLUMN_FAIL").
	ErrPivotTooSmall = &ratioTestError{"dualrow: chosen pivot below tolerance"}
)

const pivotTolerance = 1e-9

// Result is the outcome of one BFRT run: the entering column, the dual
// step length to take, and the set of columns that flip bounds along
// the way (to be applied before the caller commits the primal update).
type Result struct {
	EnteringCol int
	ThetaDual   float64
	Pi          float64 // pi_q, the pivot element read off the pricing row
	Flipped     []int
}

// Run performs CHUZC: pack candidate breakpoints from pi (only entries
// at nonbasic total-indices are examined), sort them by decreasing
// theta, then walk the BFRT absorbing bound flips while they keep
// reducing the remaining primal infeasibility delta (§4.5 passes 1-2).
func (r *DualRow) Run(pi *sparsevec.SparseVector, delta float64) (Result, error) {
	s := r.state
	r.pack(pi)
	if len(r.breakpoints) == 0 {
		return Result{}, ErrNoCandidate
	}

	// Decreasing theta (§4.5 pass 1): absorbed in pass 2 from the largest
	// breakpoint down, flipping each absorbed variable's bound instead of
	// stopping there for as long as doing so keeps reducing the remaining
	// primal step; the last absorbed column is the entering candidate.
	bp := r.breakpoints
	heap.SortDescByKey(len(bp), func(a, b int) bool {
		return bp[a].Theta < bp[b].Theta
	}, func(a, b int) {
		bp[a], bp[b] = bp[b], bp[a]
	})

	var flipped []int
	remaining := delta
	chosenIdx := len(r.breakpoints) - 1
	for i := 0; i < len(r.breakpoints); i++ {
		if i == len(r.breakpoints)-1 {
			r.resolveHarrisTies(i)
			chosenIdx = i
			break
		}
		cur := r.breakpoints[i]
		rangeJ := s.WorkRange[cur.Col]
		flipGain := math.Abs(cur.Pi) * rangeJ
		if !isFiniteRange(rangeJ) || rangeJ <= 0 || flipGain <= 0 || remaining <= 0 || flipGain > remaining {
			r.resolveHarrisTies(i)
			chosenIdx = i
			break
		}
		remaining -= flipGain
		flipped = append(flipped, cur.Col)
		if remaining <= 0 {
			r.resolveHarrisTies(i + 1)
			chosenIdx = i + 1
			break
		}
	}

	chosen := r.breakpoints[chosenIdx]
	if math.Abs(chosen.Pi) < pivotTolerance {
		return Result{}, ErrPivotTooSmall
	}
	return Result{
		EnteringCol: chosen.Col,
		ThetaDual:   chosen.Theta,
		Pi:          chosen.Pi,
		Flipped:     flipped,
	}, nil
}

func isFiniteRange(v float64) bool {
	return v < 1e29
}

// pack implements BFRT pass 1: collect a breakpoint for every nonbasic
// column with a nonzero pricing-row entry of the correct sign
// (nonbasicMove[j]*pi_j < 0): moving nonbasic j in its allowed direction
// must push the leaving row's basic value back toward feasibility,
// which — given pi's sign convention above — is the entries where the
// move direction and the pricing-row entry disagree in sign.
func (r *DualRow) pack(pi *sparsevec.SparseVector) {
	s := r.state
	r.breakpoints = r.breakpoints[:0]
	for _, j := range pi.Index {
		if s.IsBasic(j) {
			continue
		}
		piJ := pi.Dense[j]
		if piJ == 0 {
			continue
		}
		move := float64(s.NonbasicMove[j])
		if move*piJ >= 0 {
			continue
		}
		theta := s.WorkDual[j] / piJ
		r.breakpoints = append(r.breakpoints, breakpoint{Col: j, Theta: theta, Pi: piJ})
	}
}

// resolveHarrisTies looks at the actual point the BFRT walk is about to
// stop at — breakpoints[from], not the unrelated largest breakpoint in
// the whole list — and, among any later candidates within HarrisTolerance
// of its theta, swaps the one with the largest |pi_j| into position from.
// Those later candidates are still unprocessed (the walk has not reached
// them yet), so the swap only changes which column ends up chosen, never
// which ones were already absorbed as flips. This is the numerical-
// stability tie-break of §4.5 step 3, applied at CHUZC's real decision
// point instead of at the sorted list's head.
func (r *DualRow) resolveHarrisTies(from int) {
	bp := r.breakpoints
	if from >= len(bp)-1 {
		return
	}
	base := bp[from].Theta
	best := from
	for i := from + 1; i < len(bp) && base-bp[i].Theta <= r.HarrisTolerance; i++ {
		if math.Abs(bp[i].Pi) > math.Abs(bp[best].Pi) {
			best = i
		}
	}
	if best != from {
		bp[from], bp[best] = bp[best], bp[from]
	}
}
