// Package simplex implements the dual revised simplex engine: the
// working arrays and basis of §3, the edge-weight and pricing state
// machines of §4.3-§4.5, and the serial (§4.6) and PAMI (§4.7) iteration
// loops built on top of them.
package simplex

import (
	"github.com/pkg/errors"

	"github.com/anassmeskini/dualsimplex/lp"
)

// Move describes which side of its bounds a nonbasic variable sits on.
type Move int

const (
	// MoveUp means the variable sits at its lower bound and would move
	// up if it entered the basis (nonbasicMove = +1).
	MoveUp Move = 1
	// MoveFixedOrFree means the variable is fixed (l == u) or free
	// (nonbasicMove = 0).
	MoveFixedOrFree Move = 0
	// MoveDown means the variable sits at its upper bound (nonbasicMove
	// = -1).
	MoveDown Move = -1
)

// Phase identifies which objective the engine is currently driving to
// optimality.
type Phase int

const (
	// Phase1 marks that a cost perturbation (WorkShift) is still in
	// place; the engine removes it with Cleanup before entering Phase2.
	Phase1 Phase = 1
	// Phase2 minimizes the true objective once dual feasibility holds.
	Phase2 Phase = 2
)

// Tolerances bundles the feasibility tolerances from the options bag
// (§6).
type Tolerances struct {
	Primal float64
	Dual   float64
}

// DefaultTolerances mirrors the options bag defaults in §6.
func DefaultTolerances() Tolerances {
	return Tolerances{Primal: 1e-7, Dual: 1e-7}
}

// State holds the basis and working arrays owned exclusively by the
// engine (§3 "Ownership"): basicIndex/nonbasicFlag/nonbasicMove, the
// working cost/bound/value/dual arrays sized n+m, and the basic-only
// arrays sized m. LP is read-only borrowed.
type State struct {
	LP *lp.LP

	NumCol int
	NumRow int
	NumTot int // NumCol + NumRow

	BasicIndex   []int // length m; index into [0, n+m)
	NonbasicFlag []int // length n+m; 0 = basic, 1 = nonbasic
	NonbasicMove []Move

	WorkCost  []float64
	WorkLower []float64
	WorkUpper []float64
	WorkRange []float64
	WorkValue []float64
	WorkDual  []float64

	// WorkShift records a per-column cost perturbation applied in phase
	// 1 to force strict dual feasibility; unwound only by Cleanup, per
	// §9's resolution of the workShift open question.
	WorkShift []float64

	BaseLower []float64
	BaseUpper []float64
	BaseValue []float64

	Phase      Phase
	Iteration  int
	Tol        Tolerances
	PerturbOn  bool

	DualObjective   float64
	PrimalObjective float64
}

// New builds a State for lpData with every structural variable nonbasic
// at the bound named by its own sign and every logical (row slack)
// basic, the standard "slack basis" cold start.
func New(lpData *lp.LP, tol Tolerances) *State {
	n, m := lpData.NumCol, lpData.NumRow
	s := &State{
		LP:     lpData,
		NumCol: n,
		NumRow: m,
		NumTot: n + m,
		Tol:    tol,
	}
	s.BasicIndex = make([]int, m)
	s.NonbasicFlag = make([]int, n+m)
	s.NonbasicMove = make([]Move, n+m)
	s.WorkCost = make([]float64, n+m)
	s.WorkLower = make([]float64, n+m)
	s.WorkUpper = make([]float64, n+m)
	s.WorkRange = make([]float64, n+m)
	s.WorkValue = make([]float64, n+m)
	s.WorkDual = make([]float64, n+m)
	s.WorkShift = make([]float64, n+m)
	s.BaseLower = make([]float64, m)
	s.BaseUpper = make([]float64, m)
	s.BaseValue = make([]float64, m)

	sense := 1.0
	if lpData.Sense == lp.Maximize {
		sense = -1.0
	}
	for j := 0; j < n; j++ {
		s.WorkCost[j] = sense * lpData.ColCost[j]
		s.WorkLower[j] = lpData.ColLower[j]
		s.WorkUpper[j] = lpData.ColUpper[j]
	}
	for i := 0; i < m; i++ {
		j := n + i
		s.WorkCost[j] = 0
		s.WorkLower[j] = lpData.RowLower[i]
		s.WorkUpper[j] = lpData.RowUpper[i]
	}
	for j := 0; j < n+m; j++ {
		s.WorkRange[j] = s.WorkUpper[j] - s.WorkLower[j]
	}

	for j := 0; j < n; j++ {
		s.NonbasicFlag[j] = 1
		s.NonbasicMove[j] = initialMove(s.WorkLower[j], s.WorkUpper[j])
		s.WorkValue[j] = valueAtMove(s.WorkLower[j], s.WorkUpper[j], s.NonbasicMove[j])
	}
	for i := 0; i < m; i++ {
		j := n + i
		s.NonbasicFlag[j] = 0
		s.BasicIndex[i] = j
	}
	return s
}

// Basis names a starting basis/nonbasic split a caller can hand to NewWarm
// to skip the cold-start slack basis: which total-indices are basic, and
// which side of its bounds every other total-index sits on (§6 "LP ...
// plus starting basis (optional)"). CurrentBasis produces one from a live
// State; a later NewWarm consumes it.
type Basis struct {
	BasicIndex   []int
	NonbasicMove []Move
}

// CurrentBasis snapshots s's basis and nonbasic-move assignment, for
// passing to a later call to NewWarm as a warm start. Edge weights live
// on EdgeWeights, not State, and are not part of the snapshot; a
// warm-started engine builds fresh ones.
func (s *State) CurrentBasis() Basis {
	return Basis{
		BasicIndex:   append([]int(nil), s.BasicIndex...),
		NonbasicMove: append([]Move(nil), s.NonbasicMove...),
	}
}

// applyBasis overwrites s's cold-start slack basis with basis, recomputing
// NonbasicFlag/WorkValue to match. BaseValue/BaseLower/BaseUpper and the
// dual values are left untouched: the caller's subsequent rebuild() fills
// those in from the new costs/bounds against the restored basis.
func (s *State) applyBasis(basis Basis) error {
	if len(basis.BasicIndex) != s.NumRow {
		return errors.Errorf("simplex: starting basis names %d basic variables, want %d", len(basis.BasicIndex), s.NumRow)
	}
	if len(basis.NonbasicMove) != s.NumTot {
		return errors.Errorf("simplex: starting basis has %d nonbasic moves, want %d", len(basis.NonbasicMove), s.NumTot)
	}
	for j := range s.NonbasicFlag {
		s.NonbasicFlag[j] = 1
	}
	seen := make([]bool, s.NumTot)
	for i, j := range basis.BasicIndex {
		if j < 0 || j >= s.NumTot {
			return errors.Errorf("simplex: starting basis names out-of-range index %d", j)
		}
		if seen[j] {
			return errors.Errorf("simplex: starting basis names index %d twice", j)
		}
		seen[j] = true
		s.NonbasicFlag[j] = 0
		s.BasicIndex[i] = j
	}
	for j := 0; j < s.NumTot; j++ {
		if s.IsBasic(j) {
			continue
		}
		move := basis.NonbasicMove[j]
		s.NonbasicMove[j] = move
		s.WorkValue[j] = valueAtMove(s.WorkLower[j], s.WorkUpper[j], move)
	}
	return nil
}

// NewWarm builds a State exactly like New, then replaces its cold-start
// slack basis with basis — the warm-start re-solve of §8 scenario 5
// ("perturb cost by +ε, re-solve; expect <= m iterations to
// re-optimality"), which needs to start from a previous optimal basis
// instead of paying for a fresh slack-basis crash.
func NewWarm(lpData *lp.LP, tol Tolerances, basis Basis) (*State, error) {
	s := New(lpData, tol)
	if err := s.applyBasis(basis); err != nil {
		return nil, err
	}
	return s, nil
}

func initialMove(lo, hi float64) Move {
	const inf = lp.Infinity
	switch {
	case lo <= -inf && hi >= inf:
		return MoveFixedOrFree
	case lo > -inf:
		return MoveUp
	default:
		return MoveDown
	}
}

func valueAtMove(lo, hi float64, move Move) float64 {
	switch move {
	case MoveUp:
		return lo
	case MoveDown:
		return hi
	default:
		if lo > -lp.Infinity {
			return lo
		}
		return 0
	}
}

// IsBasic reports whether total-index j is currently basic.
func (s *State) IsBasic(j int) bool { return s.NonbasicFlag[j] == 0 }

// ShiftColumn applies a phase-1 cost perturbation of delta to column j,
// recorded in WorkShift so Cleanup can unwind it exactly.
func (s *State) ShiftColumn(j int, delta float64) {
	s.WorkShift[j] += delta
	s.WorkCost[j] += delta
	s.WorkDual[j] += delta
}

// Cleanup removes every outstanding cost perturbation once phase 2 is
// dual feasible without it (§4.6 "Remove cost perturbation once phase-2
// dual-feasible", §9's workShift resolution).
func (s *State) Cleanup() {
	for j := 0; j < s.NumTot; j++ {
		if s.WorkShift[j] == 0 {
			continue
		}
		s.WorkCost[j] -= s.WorkShift[j]
		s.WorkDual[j] -= s.WorkShift[j]
		s.WorkShift[j] = 0
	}
}

// BasisColumns returns the m dense columns of the current basis matrix B,
// for handing to factor.Factor.Refactor. Column i is the LP column (or
// identity logical column) named by BasicIndex[i]. Logical column n+i
// carries coefficient -1 on row i, so that the row equation
// sum_j A_ij*x_j - y_i = 0 makes the logical variable y_i equal the row
// activity (Ax)_i exactly, matching WorkLower/WorkUpper being set
// directly from RowLower/RowUpper.
func (s *State) BasisColumns() [][]float64 {
	cols := make([][]float64, s.NumRow)
	for i, j := range s.BasicIndex {
		cols[i] = s.Column(j)
	}
	return cols
}

// Objective returns c^T x evaluated at the current basic/nonbasic split.
// Because Ax=0 is maintained exactly by construction at every iteration
// (only bound feasibility varies), this single value serves as both the
// primal objective (once primal feasible) and, by weak-duality identity,
// the dual objective at any dual-feasible point. It does not write the
// PrimalObjective and DualObjective fields.
func (s *State) Objective() float64 {
	var total float64
	for i, j := range s.BasicIndex {
		total += s.WorkCost[j] * s.BaseValue[i]
	}
	for j := 0; j < s.NumTot; j++ {
		if s.IsBasic(j) {
			continue
		}
		total += s.WorkCost[j] * s.WorkValue[j]
	}
	return total
}

// Values returns the current value of every total-index variable: basic
// ones from BaseValue via BasicIndex, nonbasic ones from WorkValue. Used
// by callers extracting a solution once the engine has terminated.
func (s *State) Values() []float64 {
	out := make([]float64, s.NumTot)
	copy(out, s.WorkValue)
	for i, j := range s.BasicIndex {
		out[j] = s.BaseValue[i]
	}
	return out
}

// Column returns the dense length-m column of total-index j (structural
// or logical), used to FTRAN the entering column a_q.
func (s *State) Column(j int) []float64 {
	col := make([]float64, s.NumRow)
	if j < s.NumCol {
		lo, hi := s.LP.AStart[j], s.LP.AStart[j+1]
		for k := lo; k < hi; k++ {
			col[s.LP.AIndex[k]] = s.LP.AValue[k]
		}
	} else {
		col[j-s.NumCol] = -1
	}
	return col
}
