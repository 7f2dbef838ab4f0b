package simplex

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/anassmeskini/dualsimplex/factor"
	"github.com/anassmeskini/dualsimplex/lp"
	"github.com/anassmeskini/dualsimplex/matrix"
	"github.com/anassmeskini/dualsimplex/sparsevec"
)

// Engine drives the serial dual revised simplex loop of §4.6: CHUZR via
// DualRHS, BTRAN the pivotal row, PRICE it across the matrix, CHUZC via
// DualRow's bound-flipping ratio test, FTRAN the entering column, update
// the basis and every dependent piece of state, and repeat until no basic
// row is primal infeasible.
type Engine struct {
	State   *State
	Factor  *factor.Factor
	Matrix  *matrix.Matrix
	Weights *EdgeWeights
	RHS     *DualRHS
	Row     *DualRow
	Monitor *NumericMonitor

	Opt Options

	deadline time.Time
}

// NewEngine builds an Engine for lpData, ready for Solve. lpData must
// already have passed lp.LP.Validate.
func NewEngine(lpData *lp.LP, opt Options) *Engine {
	return newEngineFromState(New(lpData, opt.Tol), lpData, opt)
}

// NewEngineWarm builds an Engine exactly like NewEngine, except State
// starts from the caller-supplied basis instead of the cold-start slack
// basis (§8 scenario 5: re-solving after a small cost or bound change
// should reach optimality in at most NumRow further iterations, which a
// slack-basis crash cannot promise). The edge weights still start fresh
// per opt.WeightMode — DSE/Devex weights are tied to the specific basis
// they were measured against, not reusable across a change in it.
func NewEngineWarm(lpData *lp.LP, opt Options, basis Basis) (*Engine, error) {
	state, err := NewWarm(lpData, opt.Tol, basis)
	if err != nil {
		return nil, err
	}
	return newEngineFromState(state, lpData, opt), nil
}

func newEngineFromState(state *State, lpData *lp.LP, opt Options) *Engine {
	e := &Engine{
		State:   state,
		Factor:  factor.New(state.NumRow, factor.Options{UpdateLimit: opt.UpdateLimit, FillThreshold: 8.0, SynthTickLimit: 5e6}),
		Matrix:  matrix.New(lpData),
		RHS:     NewDualRHS(state),
		Row:     NewDualRow(state),
		Monitor: NewNumericMonitor(),
		Opt:     opt,
	}
	switch opt.WeightMode {
	case ModeDevex:
		e.Weights = NewDevex(state.NumRow)
	case ModeDantzig:
		e.Weights = NewDantzig(state.NumRow)
	default:
		e.Weights = NewDSE(e.Factor, state.NumRow, false)
	}
	return e
}

// ErrNumerical wraps an unrecoverable numerical failure (persistent
// singular basis, repeated pivot mismatches with no progress).
var ErrNumerical = errors.New("simplex: unrecoverable numerical failure")

// Solve runs phase 1 then phase 2 to completion (or to a resource limit),
// returning the terminal Status. ctx is checked between iterations, not
// within one; a cancelled context surfaces as StatusTimeLimit.
func (e *Engine) Solve(ctx context.Context) (Status, error) {
	if e.Opt.TimeLimit > 0 {
		e.deadline = time.Now().Add(e.Opt.TimeLimit)
	}
	if err := e.rebuild(); err != nil {
		return StatusNumericalError, err
	}
	if status, err := e.crash(); status != StatusOptimal || err != nil {
		return status, err
	}
	if e.Opt.PerturbCosts {
		e.perturbForCycling()
	}
	if e.hasShift() {
		e.State.Phase = Phase1
	} else {
		e.State.Phase = Phase2
	}

	rebuildsSinceProgress := 0
	for {
		select {
		case <-ctx.Done():
			return StatusTimeLimit, nil
		default:
		}
		if !e.deadline.IsZero() && time.Now().After(e.deadline) {
			return StatusTimeLimit, nil
		}
		if e.Opt.IterationLimit > 0 && e.State.Iteration >= e.Opt.IterationLimit {
			return StatusIterLimit, nil
		}

		if ok, hint := e.Factor.NeedsRefactor(); ok {
			_ = hint
			if err := e.rebuild(); err != nil {
				return StatusNumericalError, err
			}
			rebuildsSinceProgress++
			if rebuildsSinceProgress > 50 {
				return StatusNumericalError, ErrNumerical
			}
		}

		row, ok := e.RHS.ChooseNormal(e.Weights.Weight)
		if !ok {
			e.RHS.RelaxCutoff()
			row, ok = e.RHS.ChooseNormal(e.Weights.Weight)
		}
		if !ok {
			// No basic row is infeasible: phase 1 is done, or phase 2 found
			// the optimum.
			if e.State.Phase == Phase1 {
				if e.RHS.TotalInfeasibility() > e.State.Tol.Primal {
					return StatusInfeasible, nil
				}
				// crash() and perturbForCycling() only ever nudge an
				// already-feasible reduced cost further into feasibility
				// (flips use the exact bound, the tie-break epsilon only
				// pushes a feasible sign further from zero), so removing
				// the perturbation here can never reintroduce dual
				// infeasibility.
				e.State.Cleanup()
				if err := e.rebuild(); err != nil {
					return StatusNumericalError, err
				}
				e.State.Phase = Phase2
				continue
			}
			return StatusOptimal, nil
		}

		status, err := e.iterate(row)
		if err != nil {
			return status, err
		}
		if status != StatusOptimal {
			return status, nil
		}
		rebuildsSinceProgress = 0

		if e.Opt.HasObjectiveBound && e.State.Phase == Phase2 {
			if e.State.Objective() > e.Opt.ObjectiveBound {
				return StatusObjectiveBound, nil
			}
		}
	}
}

// crash establishes dual feasibility at the cold-start slack basis before
// any dual pivot is attempted. A freshly built slack basis need not be
// dual feasible: a nonbasic column's reduced cost can have the wrong sign
// for the bound it sits at. Each such column is repaired by flipping to
// its opposite bound when that bound is finite (free, exact, matches
// the sign requirement by construction), or, when the column is
// unbounded on the side it would need to flip to, by running one primal
// ratio-test pivot that brings it into the basis directly — the
// composite/"big-M" dual-simplex start described in §4.6's phase
// discussion, reused here instead of a cost perturbation because a
// perturbation cannot repair a dual infeasibility at a basis that is
// already primal feasible (there would be no primal-infeasible row left
// for the ordinary dual pivot loop to act on). Returns StatusUnbounded if
// a bootstrap pivot's ratio test finds no leaving candidate.
func (e *Engine) crash() (Status, error) {
	s := e.State
	for pass := 0; pass < s.NumTot+1; pass++ {
		progressed := false
		for j := 0; j < s.NumTot; j++ {
			if s.IsBasic(j) {
				continue
			}
			var direction float64
			switch s.NonbasicMove[j] {
			case MoveUp:
				if s.WorkDual[j] >= 0 {
					continue
				}
				if s.WorkUpper[j] < lp.Infinity {
					s.NonbasicMove[j] = MoveDown
					s.WorkValue[j] = s.WorkUpper[j]
					progressed = true
					continue
				}
				direction = 1
			case MoveDown:
				if s.WorkDual[j] <= 0 {
					continue
				}
				if s.WorkLower[j] > -lp.Infinity {
					s.NonbasicMove[j] = MoveUp
					s.WorkValue[j] = s.WorkLower[j]
					progressed = true
					continue
				}
				direction = -1
			case MoveFixedOrFree:
				if s.WorkDual[j] == 0 || s.WorkLower[j] == s.WorkUpper[j] {
					continue
				}
				if s.WorkDual[j] < 0 {
					direction = 1
				} else {
					direction = -1
				}
			default:
				continue
			}

			status, err := e.bootstrapPivot(j, direction)
			if err != nil || status != StatusOptimal {
				return status, err
			}
			if err := e.rebuild(); err != nil {
				return StatusNumericalError, err
			}
			progressed = true
			break // basis changed; restart the scan over the fresh state
		}
		if !progressed {
			return StatusOptimal, nil
		}
	}
	return StatusNumericalError, errors.Wrap(ErrNumerical, "crash did not converge to a dual-feasible basis")
}

// bootstrapPivot runs one primal ratio-test pivot bringing nonbasic
// column j into the basis, moving in direction (+1 to increase from its
// lower side, -1 to decrease from its upper side). Used only by crash;
// the ordinary iteration loop moves baseValue via the dual ratio test
// instead.
func (e *Engine) bootstrapPivot(j int, direction float64) (Status, error) {
	s := e.State
	aFtran := e.Factor.FTRAN(s.Column(j))

	best := -1
	var bestTheta float64
	for i := 0; i < s.NumRow; i++ {
		a := direction * aFtran[i]
		switch {
		case a > 1e-9:
			if s.BaseLower[i] <= -lp.Infinity {
				continue
			}
			theta := (s.BaseValue[i] - s.BaseLower[i]) / a
			if theta < 0 {
				theta = 0
			}
			if best == -1 || theta < bestTheta {
				best, bestTheta = i, theta
			}
		case a < -1e-9:
			if s.BaseUpper[i] >= lp.Infinity {
				continue
			}
			theta := (s.BaseUpper[i] - s.BaseValue[i]) / (-a)
			if theta < 0 {
				theta = 0
			}
			if best == -1 || theta < bestTheta {
				best, bestTheta = i, theta
			}
		}
	}
	if best == -1 {
		return StatusUnbounded, nil
	}

	r := best
	leaving := s.BasicIndex[r]
	alpha := direction * aFtran[r]

	s.NonbasicFlag[j] = 0
	s.BasicIndex[r] = j
	s.NonbasicFlag[leaving] = 1
	if alpha > 0 {
		s.NonbasicMove[leaving] = MoveUp
		s.WorkValue[leaving] = s.BaseLower[r]
	} else {
		s.NonbasicMove[leaving] = MoveDown
		s.WorkValue[leaving] = s.BaseUpper[r]
	}
	if uerr := e.Factor.Update(aFtran, r, aFtran[r]); uerr != nil {
		e.Factor.RaiseHint(factor.HintPossiblySingular)
	}
	return StatusOptimal, nil
}

// perturbForCycling nudges every already dual-feasible, strictly
// nonbasic-moving column's reduced cost a small fixed amount further
// into feasibility, so CHUZC never has to break an exact tie at zero
// during the main loop (§4.6 "optional cost perturbation to avoid
// cycling"). Because it only strengthens an already-correct sign, it can
// always be removed later by State.Cleanup without reintroducing dual
// infeasibility.
func (e *Engine) perturbForCycling() {
	s := e.State
	const eps = 1e-7
	for j := 0; j < s.NumTot; j++ {
		if s.IsBasic(j) {
			continue
		}
		switch s.NonbasicMove[j] {
		case MoveUp:
			s.ShiftColumn(j, eps)
		case MoveDown:
			s.ShiftColumn(j, -eps)
		}
	}
}

func (e *Engine) hasShift() bool {
	for _, v := range e.State.WorkShift {
		if v != 0 {
			return true
		}
	}
	return false
}

// rebuild implements REFACTOR plus the from-scratch recomputation of
// every array derived from the basis (§4.2, §4.6's "rebuild()" step):
// workDual via BTRAN(c_B), baseValue via FTRAN(-N*x_N), and the primal
// infeasibility list.
func (e *Engine) rebuild() error {
	s := e.State
	if err := e.Factor.Refactor(s.BasisColumns()); err != nil {
		return err
	}
	e.Monitor.RebuildCount++

	cB := make([]float64, s.NumRow)
	for i, j := range s.BasicIndex {
		cB[i] = s.WorkCost[j]
	}
	y := e.Factor.BTRAN(cB)
	for j := 0; j < s.NumTot; j++ {
		if s.IsBasic(j) {
			s.WorkDual[j] = 0
			continue
		}
		s.WorkDual[j] = s.WorkCost[j] - dot(s.Column(j), y)
	}

	rhs := make([]float64, s.NumRow)
	for j := 0; j < s.NumTot; j++ {
		if s.IsBasic(j) || s.WorkValue[j] == 0 {
			continue
		}
		col := s.Column(j)
		for i, v := range col {
			rhs[i] -= s.WorkValue[j] * v
		}
	}
	base := e.Factor.FTRAN(rhs)
	copy(s.BaseValue, base)
	for i, j := range s.BasicIndex {
		s.BaseLower[i] = s.WorkLower[j]
		s.BaseUpper[i] = s.WorkUpper[j]
	}

	if e.Weights.Mode == ModeDSE {
		// Compare each row's incrementally-updated weight against a fresh
		// recomputation from the just-refactored B^-1 before it is thrown
		// away, feeding NumericMonitor's costly-DSE window (§4.3, §4.8)
		// instead of letting the comparison go to waste.
		for i := 0; i < s.NumRow; i++ {
			exact := sumSquares(e.Factor.DenseInverseColumn(i))
			accurate := e.Weights.CheckAccuracy(i, exact)
			e.Monitor.RecordIteration(!accurate)
		}
		fresh := NewDSE(e.Factor, s.NumRow, true)
		fresh.costlyCount = e.Weights.costlyCount
		fresh.totalChecks = e.Weights.totalChecks
		e.Weights = fresh

		if e.Opt.AllowDevexFallback && e.Monitor.ShouldSwitchToDevex() {
			e.Weights = NewDevex(s.NumRow)
		}
	}

	e.RHS.ComputeInfeasibilities()
	e.RHS.CreateInfeasList(1.0)
	return nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// iterate performs one dual simplex pivot with leaving row r, implementing
// §4.6 steps 1-10.
func (e *Engine) iterate(r int) (Status, error) {
	s := e.State
	leavingVar := s.BasicIndex[r]

	var moveOut float64
	var delta float64
	if s.BaseValue[r] < s.BaseLower[r] {
		moveOut = 1
		delta = s.BaseLower[r] - s.BaseValue[r]
	} else {
		moveOut = -1
		delta = s.BaseValue[r] - s.BaseUpper[r]
	}

	unit := make([]float64, s.NumRow)
	unit[r] = moveOut
	rho := e.Factor.BTRAN(unit)
	rhoVec := sparsevec.New(s.NumRow)
	rhoVec.FromDense(rho)
	e.Monitor.RecordDensity(rhoVec.Density())

	piStruct := sparsevec.New(s.NumCol)
	e.Matrix.Price(rhoVec, piStruct, nil)
	pi := sparsevec.New(s.NumTot)
	for _, j := range piStruct.Index {
		pi.Set(j, piStruct.Dense[j])
	}
	for i := 0; i < s.NumRow; i++ {
		if rho[i] != 0 {
			pi.Set(s.NumCol+i, -rho[i])
		}
	}

	result, err := e.Row.Run(pi, delta)
	if err != nil {
		switch err {
		case ErrNoCandidate:
			e.Factor.RaiseHint(factor.HintPossiblyUnbounded)
			if s.Phase == Phase1 {
				// Whether CHUZC finds a candidate does not depend on the
				// costs: drop the perturbation and retry the row in phase 2.
				s.Cleanup()
				if rerr := e.rebuild(); rerr != nil {
					return StatusNumericalError, rerr
				}
				s.Phase = Phase2
				return StatusOptimal, nil
			}
			// CHUZC finding no column of the correct sign while repairing a
			// primal-infeasible basic row is the dual simplex's standard
			// infeasibility certificate: the dual is unbounded in that
			// direction, which by duality means the primal has no feasible
			// point.
			return StatusInfeasible, nil
		default:
			e.Factor.RaiseHint(factor.HintChooseColumnFail)
			return StatusOptimal, nil // caller's NeedsRefactor check will force a rebuild next loop
		}
	}

	q := result.EnteringCol
	aFtran := e.Factor.FTRAN(s.Column(q))
	alpha := aFtran[r]
	if verr := e.Factor.VerifyPivot(aFtran, r, result.Pi); verr != nil {
		e.Monitor.RecordPivotMismatch()
		e.Factor.RaiseHint(factor.HintPossiblySingular)
	}

	costly := !e.Monitor.VerifyDense(e.Factor, s.Column(q), aFtran, s.Tol.Primal)

	var tau []float64
	if e.Weights.Mode == ModeDSE {
		tau = e.Factor.FTRAN(rho)
	}

	thetaDual := result.ThetaDual
	for _, j := range pi.Index {
		if s.IsBasic(j) || j == q {
			continue
		}
		s.WorkDual[j] -= thetaDual * pi.Dense[j]
	}

	for _, fc := range result.Flipped {
		other := oppositeBound(s, fc)
		d := other - s.WorkValue[fc]
		if d == 0 {
			continue
		}
		flipCol := e.Factor.FTRAN(s.Column(fc))
		e.RHS.UpdatePrimal(flipCol, d)
		s.WorkValue[fc] = other
		s.NonbasicMove[fc] = -s.NonbasicMove[fc]
	}

	targetBound := s.BaseUpper[r]
	if moveOut == 1 {
		targetBound = s.BaseLower[r]
	}
	// thetaPrimal is the step that drives the leaving variable exactly to
	// targetBound; by the Ax=0 invariant the same step gives the entering
	// variable's new value (enteringOldValue + thetaPrimal), a different
	// number from targetBound even though UpdatePrimal's per-row formula
	// momentarily writes targetBound into slot r before relabeling.
	enteringOldValue := s.WorkValue[q]
	thetaPrimal := (s.BaseValue[r] - targetBound) / alpha
	e.RHS.UpdatePrimal(aFtran, thetaPrimal)

	s.NonbasicFlag[q] = 0
	s.BasicIndex[r] = q
	s.BaseValue[r] = enteringOldValue + thetaPrimal
	s.BaseLower[r] = s.WorkLower[q]
	s.BaseUpper[r] = s.WorkUpper[q]
	e.RHS.refreshRow(r)
	s.NonbasicFlag[leavingVar] = 1
	if moveOut == 1 {
		s.NonbasicMove[leavingVar] = MoveUp
	} else {
		s.NonbasicMove[leavingVar] = MoveDown
	}
	s.WorkValue[leavingVar] = targetBound
	s.WorkDual[leavingVar] = -thetaDual
	s.WorkDual[q] = 0

	e.Weights.Update(r, aFtran, alpha, tau)
	if e.Weights.Mode == ModeDevex && e.Weights.NeedsNewFramework() {
		e.Weights.ResetFramework()
	}

	if uerr := e.Factor.Update(aFtran, r, alpha); uerr != nil {
		e.Factor.RaiseHint(factor.HintPossiblySingular)
	}

	e.Monitor.RecordIteration(costly)
	s.Iteration++
	return StatusOptimal, nil
}

func oppositeBound(s *State, j int) float64 {
	if s.NonbasicMove[j] == MoveUp {
		return s.WorkUpper[j]
	}
	return s.WorkLower[j]
}
