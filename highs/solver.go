package highs

import (
	"math"

	"github.com/anassmeskini/dualsimplex/lp"
	"github.com/anassmeskini/dualsimplex/simplex"
)

// Solver provides low-level, incremental access to the engine: add
// variables and rows one piece at a time, then Run. It is the
// pure-Go analogue of the teacher's cgo-backed Solver — no native
// handle to release, but Close is kept for call-site continuity.
//
// It also keeps the basis from its last Run so a later Run, after only
// cost or bound edits, can warm-start from it instead of paying for a
// fresh slack-basis crash (§8 scenario 5). status tracks which derived
// state edits have invalidated, the same bookkeeping HighsLp's
// updateLpStatus does; a structural edit (AddVar(s), AddRow(s)) clears
// HasBasis so the next Run falls back to a cold start automatically.
type Solver struct {
	numCol, numRow int

	colLower []float64
	colUpper []float64
	colCost  []float64
	rowLower []float64
	rowUpper []float64
	nz       []Nonzero

	maximize bool
	offset   float64

	opts Options

	status lp.SimplexLpStatus
	basis  *simplex.Basis
}

// NewSolver creates an empty Solver.
func NewSolver() (*Solver, error) {
	return &Solver{opts: DefaultOptions()}, nil
}

// Close is a no-op kept for API continuity with the teacher's
// cgo-backed Solver, which needed it to release a native handle.
func (s *Solver) Close() {}

// Clear resets the solver to its initial state, clearing the model
// and resetting options to defaults.
func (s *Solver) Clear() error {
	*s = Solver{opts: DefaultOptions()}
	return nil
}

// ClearModel removes all variables and constraints but keeps options.
func (s *Solver) ClearModel() error {
	opts := s.opts
	*s = Solver{opts: opts}
	return nil
}

// ClearSolver is a no-op. The only solve-time state kept between Run
// calls is the warm-start basis, and ClearSolver leaves it in place;
// ClearModel and Clear drop it.
func (s *Solver) ClearSolver() error { return nil }

// Infinity returns the bound magnitude treated as unbounded.
func (s *Solver) Infinity() float64 { return lp.Infinity }

// NumCol returns the number of columns (variables) added so far.
func (s *Solver) NumCol() int { return s.numCol }

// NumRow returns the number of rows (constraints) added so far.
func (s *Solver) NumRow() int { return s.numRow }

// NumNonzero returns the number of non-zero entries in the constraint
// matrix added so far.
func (s *Solver) NumNonzero() int { return len(s.nz) }

// Options returns the solver's current option bag.
func (s *Solver) Options() Options { return s.opts }

// SetOptions replaces the solver's option bag.
func (s *Solver) SetOptions(o Options) { s.opts = o }

// SetMaximize sets whether to maximize (true) or minimize (false). This
// flips every dual value's sign internally, so a basis warm-started
// across it would feed the engine a basis for the wrong sense; drop it.
func (s *Solver) SetMaximize(maximize bool) error {
	s.maximize = maximize
	s.status.Clear()
	s.basis = nil
	return nil
}

// SetObjectiveOffset sets a constant offset for the objective function.
func (s *Solver) SetObjectiveOffset(offset float64) error {
	s.offset = offset
	return nil
}

// AddVar adds a single variable with the given bounds.
func (s *Solver) AddVar(lower, upper float64) error {
	s.colLower = append(s.colLower, lower)
	s.colUpper = append(s.colUpper, upper)
	s.colCost = append(s.colCost, 0)
	s.numCol++
	s.status.Apply(lp.ActionNewCols)
	return nil
}

// AddVars adds multiple variables with the given bounds.
func (s *Solver) AddVars(lower, upper []float64) error {
	if len(lower) != len(upper) {
		return newErrorMsg("AddVars", "lower and upper bounds must have same length")
	}
	for i := range lower {
		s.colLower = append(s.colLower, lower[i])
		s.colUpper = append(s.colUpper, upper[i])
		s.colCost = append(s.colCost, 0)
	}
	s.numCol += len(lower)
	s.status.Apply(lp.ActionNewCols)
	return nil
}

// AddRow adds a constraint with the given bounds and coefficients.
// The index and value slices define the sparse row coefficients.
func (s *Solver) AddRow(lower, upper float64, index []int, value []float64) error {
	if len(index) != len(value) {
		return newErrorMsg("AddRow", "index and value must have same length")
	}
	row := s.numRow
	s.rowLower = append(s.rowLower, lower)
	s.rowUpper = append(s.rowUpper, upper)
	for i, col := range index {
		if value[i] != 0 {
			s.nz = append(s.nz, Nonzero{Row: row, Col: col, Val: value[i]})
		}
	}
	s.numRow++
	s.status.Apply(lp.ActionNewRows)
	return nil
}

// AddRows adds multiple constraints in compressed sparse row format:
// starts has one entry per row (length len(lower)), giving the offset
// into index/value where that row's coefficients begin.
func (s *Solver) AddRows(lower, upper []float64, starts, index []int, value []float64) error {
	if len(lower) != len(upper) {
		return newErrorMsg("AddRows", "lower and upper bounds must have same length")
	}
	if len(index) != len(value) {
		return newErrorMsg("AddRows", "index and value must have same length")
	}
	if len(starts) != len(lower) {
		return newErrorMsg("AddRows", "starts must have one entry per row")
	}
	base := s.numRow
	for r := range lower {
		lo := starts[r]
		hi := len(index)
		if r+1 < len(starts) {
			hi = starts[r+1]
		}
		for k := lo; k < hi; k++ {
			if value[k] != 0 {
				s.nz = append(s.nz, Nonzero{Row: base + r, Col: index[k], Val: value[k]})
			}
		}
	}
	s.rowLower = append(s.rowLower, lower...)
	s.rowUpper = append(s.rowUpper, upper...)
	s.numRow += len(lower)
	s.status.Apply(lp.ActionNewRows)
	return nil
}

// SetColCost sets the objective coefficient for a column.
func (s *Solver) SetColCost(col int, cost float64) error {
	if col < 0 || col >= s.numCol {
		return newErrorMsg("SetColCost", "column index out of range")
	}
	s.colCost[col] = cost
	s.status.Apply(lp.ActionNewCosts)
	return nil
}

// SetColCosts sets the objective coefficients for every column.
func (s *Solver) SetColCosts(costs []float64) error {
	if len(costs) != s.numCol {
		return newErrorMsg("SetColCosts", "costs must have one entry per column")
	}
	copy(s.colCost, costs)
	s.status.Apply(lp.ActionNewCosts)
	return nil
}

// SetColBounds sets the bounds for a column.
func (s *Solver) SetColBounds(col int, lower, upper float64) error {
	if col < 0 || col >= s.numCol {
		return newErrorMsg("SetColBounds", "column index out of range")
	}
	s.colLower[col] = lower
	s.colUpper[col] = upper
	s.status.Apply(lp.ActionNewBounds)
	return nil
}

// PassModel passes a complete model to the solver in one call, in
// row-wise compressed sparse format (matching the orientation the
// teacher's cgo PassModel used), replacing anything added so far.
func (s *Solver) PassModel(
	numCol, numRow int,
	colCost, colLower, colUpper []float64,
	rowLower, rowUpper []float64,
	aStart, aIndex []int,
	aValue []float64,
	maximize bool,
	offset float64,
) error {
	if err := s.ClearModel(); err != nil {
		return err
	}
	s.numCol, s.numRow = numCol, numRow
	s.colCost = append([]float64(nil), colCost...)
	s.colLower = append([]float64(nil), colLower...)
	s.colUpper = append([]float64(nil), colUpper...)
	s.rowLower = append([]float64(nil), rowLower...)
	s.rowUpper = append([]float64(nil), rowUpper...)
	s.maximize = maximize
	s.offset = offset

	for row := 0; row < numRow; row++ {
		lo := aStart[row]
		hi := len(aIndex)
		if row+1 < len(aStart) {
			hi = aStart[row+1]
		}
		for k := lo; k < hi; k++ {
			if aValue[k] != 0 {
				s.nz = append(s.nz, Nonzero{Row: row, Col: aIndex[k], Val: aValue[k]})
			}
		}
	}
	return nil
}

// buildLP assembles the accumulated model state into an lp.LP, filling
// any column/row missing a cost or bound with the conventional default.
func (s *Solver) buildLP() (*lp.LP, error) {
	colCost, err := expandSlice(s.numCol, s.colCost, 0)
	if err != nil {
		return nil, newErrorMsg("Run", "inconsistent column costs")
	}
	colLower, err := expandSlice(s.numCol, s.colLower, math.Inf(-1))
	if err != nil {
		return nil, newErrorMsg("Run", "inconsistent column lower bounds")
	}
	colUpper, err := expandSlice(s.numCol, s.colUpper, math.Inf(1))
	if err != nil {
		return nil, newErrorMsg("Run", "inconsistent column upper bounds")
	}
	rowLower, err := expandSlice(s.numRow, s.rowLower, math.Inf(-1))
	if err != nil {
		return nil, newErrorMsg("Run", "inconsistent row lower bounds")
	}
	rowUpper, err := expandSlice(s.numRow, s.rowUpper, math.Inf(1))
	if err != nil {
		return nil, newErrorMsg("Run", "inconsistent row upper bounds")
	}

	aStart, aIndex, aValue, err := nonzerosToCSC(s.nz, s.numCol)
	if err != nil {
		return nil, err
	}

	sense := lp.Minimize
	if s.maximize {
		sense = lp.Maximize
	}
	return &lp.LP{
		NumRow:   s.numRow,
		NumCol:   s.numCol,
		AStart:   aStart,
		AIndex:   aIndex,
		AValue:   aValue,
		ColCost:  colCost,
		ColLower: colLower,
		ColUpper: colUpper,
		RowLower: rowLower,
		RowUpper: rowUpper,
		Sense:    sense,
	}, nil
}

// Run solves the accumulated model and returns the solution. If the
// prior Run's basis is still valid for the current model (no variable
// or row was added/removed since), it warm-starts from that basis
// rather than cold-starting from the slack basis, satisfying §8's
// incremental-resolve scenario for a caller that only edits costs or
// bounds between solves (e.g. branch-and-bound, reoptimization after a
// small perturbation).
func (s *Solver) Run() (*Solution, error) {
	lpData, err := s.buildLP()
	if err != nil {
		return &Solution{Status: ModelStatusModelError}, err
	}

	var startBasis *simplex.Basis
	if s.status.HasBasis {
		startBasis = s.basis
	}

	sol, basis, err := solveLP(lpData, s.opts, s.offset, startBasis)
	if err != nil {
		s.status.HasBasis = false
		s.basis = nil
		return sol, err
	}

	s.basis = &basis
	s.status.HasBasis = true
	s.status.HasFreshRebuild = true
	return sol, nil
}
