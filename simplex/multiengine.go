package simplex

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/anassmeskini/dualsimplex/factor"
	"github.com/anassmeskini/dualsimplex/lp"
	"github.com/anassmeskini/dualsimplex/sparsevec"
)

// MultiEngine runs PAMI (§4.7): it batches up to K candidate leaving
// rows against a single, unchanged factor, prices and CHUZCs each one
// (the minor loop), then commits them one at a time in the order
// ChooseMultiple ranked their rows (major_update), rolling the remainder
// of the batch back to a forced REFACTOR on the first sign of numerical
// trouble. K=1 degenerates to a serial loop, one row at a time.
type MultiEngine struct {
	*Engine
	K int
}

// NewMultiEngine builds a MultiEngine over lpData with batch size
// opt.PAMIBatch, clamped to [1,8] per §4.7's "k <= 8".
func NewMultiEngine(lpData *lp.LP, opt Options) *MultiEngine {
	k := opt.PAMIBatch
	if k < 1 {
		k = 1
	}
	if k > 8 {
		k = 8
	}
	return &MultiEngine{Engine: NewEngine(lpData, opt), K: k}
}

// NewMultiEngineWarm builds a MultiEngine like NewMultiEngine, but warm-
// started from basis instead of the cold-start slack basis, the PAMI
// counterpart of NewEngineWarm.
func NewMultiEngineWarm(lpData *lp.LP, opt Options, basis Basis) (*MultiEngine, error) {
	k := opt.PAMIBatch
	if k < 1 {
		k = 1
	}
	if k > 8 {
		k = 8
	}
	e, err := NewEngineWarm(lpData, opt, basis)
	if err != nil {
		return nil, err
	}
	return &MultiEngine{Engine: e, K: k}, nil
}

// mSlot is one batched candidate: the MChoice half filled in by the
// minor loop, the MFinish half filled in by major_update once the slot
// is actually committed.
type mSlot struct {
	row            int
	leavingVar     int
	moveOut        float64
	delta          float64
	rho            []float64
	pi             *sparsevec.SparseVector
	originalInfeas float64

	result Result

	aFtran []float64
	alpha  float64
}

// Solve runs phase 1 then phase 2 via batched major iterations (§4.7),
// otherwise matching Engine.Solve's setup and termination conditions
// exactly: the same crash, cost-perturbation, deadline/iteration-limit
// and objective-bound handling applies, just with major_chooseRow/
// major_update replacing the single-row CHUZR/iterate pair.
func (e *MultiEngine) Solve(ctx context.Context) (Status, error) {
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

		rows := e.RHS.ChooseMultiple(e.Weights.Weight, e.K)
		if len(rows) == 0 {
			e.RHS.RelaxCutoff()
			rows = e.RHS.ChooseMultiple(e.Weights.Weight, e.K)
		}
		if len(rows) == 0 {
			if e.State.Phase == Phase1 {
				if e.RHS.TotalInfeasibility() > e.State.Tol.Primal {
					return StatusInfeasible, nil
				}
				e.State.Cleanup()
				if err := e.rebuild(); err != nil {
					return StatusNumericalError, err
				}
				e.State.Phase = Phase2
				continue
			}
			return StatusOptimal, nil
		}

		status, committed, err := e.majorIteration(rows)
		if err != nil {
			return status, err
		}
		if status != StatusOptimal {
			return status, nil
		}
		if committed == 0 {
			// Every slot in the batch failed its ratio test or lost
			// persistence; force a refactor so the next attempt starts
			// from a verified-fresh basis rather than spinning.
			e.Factor.RaiseHint(factor.HintPossiblyUnbounded)
			rebuildsSinceProgress++
			if rebuildsSinceProgress > 50 {
				return StatusNumericalError, errors.Wrap(ErrNumerical, "PAMI batch made no progress")
			}
			continue
		}
		rebuildsSinceProgress = 0

		if e.Opt.HasObjectiveBound && e.State.Phase == Phase2 {
			if e.State.Objective() > e.Opt.ObjectiveBound {
				return StatusObjectiveBound, nil
			}
		}
	}
}

// majorIteration runs one PAMI batch: major_chooseRowBtran, the minor
// loop over slots, then major_update. Returns the number of slots
// actually committed (0 means the caller should force a refactor and
// retry rather than treat the batch as terminal).
func (e *MultiEngine) majorIteration(rows []int) (Status, int, error) {
	slots := e.majorChooseRowBtran(rows)

	for _, slot := range slots {
		e.minorPriceAndChuzc(slot)
	}

	return e.majorUpdate(slots)
}

// majorChooseRowBtran performs one BTRAN per candidate row in parallel,
// each against the single factor shared read-only by all goroutines in
// this fork-join region (§5 "each parallel region is a fork-join over
// <=32 worker tasks, with no inter-task communication").
func (e *MultiEngine) majorChooseRowBtran(rows []int) []*mSlot {
	s := e.State
	slots := make([]*mSlot, len(rows))
	var wg sync.WaitGroup
	for idx, row := range rows {
		idx, row := idx, row
		slot := &mSlot{row: row, leavingVar: s.BasicIndex[row], originalInfeas: e.RHS.PrimalInfeas[row]}
		slots[idx] = slot
		if s.BaseValue[row] < s.BaseLower[row] {
			slot.moveOut = 1
			slot.delta = s.BaseLower[row] - s.BaseValue[row]
		} else {
			slot.moveOut = -1
			slot.delta = s.BaseValue[row] - s.BaseUpper[row]
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			unit := make([]float64, s.NumRow)
			unit[row] = slot.moveOut
			slot.rho = e.Factor.BTRAN(unit)
		}()
	}
	wg.Wait()
	return slots
}

// minorPriceAndChuzc is one iteration of the serial minor loop (§4.7):
// PRICE slot.rho into a pi row (via matrix's partial-price slices, run
// in parallel since each slice writes a disjoint buffer), then CHUZC
// via DualRow. The result is buffered on slot; no shared engine state
// (factor, basis, duals) is touched.
func (e *MultiEngine) minorPriceAndChuzc(slot *mSlot) {
	s := e.State
	rhoVec := sparsevec.New(s.NumRow)
	rhoVec.FromDense(slot.rho)
	e.Monitor.RecordDensity(rhoVec.Density())

	piStruct := e.priceParallel(rhoVec)

	pi := sparsevec.New(s.NumTot)
	for _, j := range piStruct.Index {
		pi.Set(j, piStruct.Dense[j])
	}
	for i := 0; i < s.NumRow; i++ {
		if slot.rho[i] != 0 {
			pi.Set(s.NumCol+i, -slot.rho[i])
		}
	}
	slot.pi = pi

	row := NewDualRow(s)
	result, err := row.Run(pi, slot.delta)
	if err != nil {
		slot.result = Result{EnteringCol: -1}
		return
	}
	slot.result = result
}

// priceParallel runs PRICE over rho using matrix.PartialPriceSlices'
// disjoint per-slice buffers, each priced by its own goroutine, then
// merges the slices into a single dense-backed SparseVector. This is
// the slice-PRICE fork-join named in §4.1/§5; it is used both standalone
// here and implicitly whenever a slot's pi is computed.
func (e *MultiEngine) priceParallel(rho *sparsevec.SparseVector) *sparsevec.SparseVector {
	slices := e.Matrix.PartialPriceSlices(8)
	if len(slices) == 0 {
		out := sparsevec.New(e.State.NumCol)
		e.Matrix.Price(rho, out, nil)
		return out
	}

	var wg sync.WaitGroup
	for _, slc := range slices {
		slc := slc
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Matrix.PriceSlice(rho, slc)
		}()
	}
	wg.Wait()

	out := sparsevec.New(e.State.NumCol)
	for _, slc := range slices {
		for _, j := range slc.RowAp.Index {
			out.Set(j, slc.RowAp.Dense[j])
		}
	}
	return out
}

// majorUpdate implements §4.7's major_update: FTRAN every slot's
// entering column in parallel against the factor as it stood before any
// slot in this batch committed, then commit slots one at a time in the
// order ChooseMultiple ranked their rows, each commit calling Factor.Update sequentially. A slot whose
// row's infeasibility has decayed below 0.95 of its value at choice time
// (the "candidate persistence" check) is skipped rather than committed.
// The first pivot-verify mismatch or negligible-pivot error triggers
// major_rollback, discarding every later slot in the batch and forcing a
// refactor; slots already committed are left in place.
func (e *MultiEngine) majorUpdate(slots []*mSlot) (Status, int, error) {
	s := e.State

	live := make([]*mSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.result.EnteringCol < 0 {
			continue
		}
		live = append(live, slot)
	}
	if len(live) == 0 {
		// Every slot's ratio test failed with the correct sign missing;
		// CHUZC finding nothing while repairing a primal-infeasible row
		// is the dual simplex's infeasibility certificate, same as
		// Engine.iterate's ErrNoCandidate handling.
		if s.Phase == Phase1 {
			// Whether CHUZC finds a candidate does not depend on the
			// costs: drop the perturbation and retry in phase 2.
			s.Cleanup()
			if err := e.rebuild(); err != nil {
				return StatusNumericalError, 0, err
			}
			s.Phase = Phase2
			return StatusOptimal, 0, nil
		}
		return StatusInfeasible, 0, nil
	}

	e.majorUpdateFtranParallel(live)

	committed := 0
	for _, slot := range live {
		current := infeasOf(s.BaseValue[slot.row], s.BaseLower[slot.row], s.BaseUpper[slot.row])
		if current < 0.95*slot.originalInfeas {
			continue // persistence lost: another committed slot already fixed this row
		}

		slot.alpha = slot.aFtran[slot.row]
		if verr := e.Factor.VerifyPivot(slot.aFtran, slot.row, slot.result.Pi); verr != nil {
			e.Monitor.RecordPivotMismatch()
			e.majorRollback()
			break
		}

		if !e.commitSlot(slot) {
			e.majorRollback()
			break
		}
		committed++
	}

	return StatusOptimal, committed, nil
}

// majorUpdateFtranParallel FTRANs every live slot's entering column
// concurrently; safe because none of these reads mutate the factor, and
// no slot has been committed yet when this runs (§4.7).
func (e *MultiEngine) majorUpdateFtranParallel(slots []*mSlot) {
	s := e.State
	var wg sync.WaitGroup
	for _, slot := range slots {
		slot := slot
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot.aFtran = e.Factor.FTRAN(s.Column(slot.result.EnteringCol))
		}()
	}
	wg.Wait()
}

// commitSlot applies one slot's buffered choice to the shared engine
// state: dual step, bound flips, primal step, basis relabel, edge-weight
// update and Factor.Update, in the same order Engine.iterate uses for a
// single pivot. Returns false if Factor.Update rejects the pivot.
func (e *MultiEngine) commitSlot(slot *mSlot) bool {
	s := e.State
	q := slot.result.EnteringCol
	r := slot.row
	alpha := slot.alpha
	thetaDual := slot.result.ThetaDual

	var tau []float64
	if e.Weights.Mode == ModeDSE {
		tau = e.Factor.FTRAN(slot.rho)
	}

	for _, j := range slot.pi.Index {
		if s.IsBasic(j) || j == q {
			continue
		}
		s.WorkDual[j] -= thetaDual * slot.pi.Dense[j]
	}

	for _, fc := range slot.result.Flipped {
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
	if slot.moveOut == 1 {
		targetBound = s.BaseLower[r]
	}
	enteringOldValue := s.WorkValue[q]
	thetaPrimal := (s.BaseValue[r] - targetBound) / alpha
	e.RHS.UpdatePrimal(slot.aFtran, thetaPrimal)

	s.NonbasicFlag[q] = 0
	s.BasicIndex[r] = q
	s.BaseValue[r] = enteringOldValue + thetaPrimal
	s.BaseLower[r] = s.WorkLower[q]
	s.BaseUpper[r] = s.WorkUpper[q]
	e.RHS.refreshRow(r)
	s.NonbasicFlag[slot.leavingVar] = 1
	if slot.moveOut == 1 {
		s.NonbasicMove[slot.leavingVar] = MoveUp
	} else {
		s.NonbasicMove[slot.leavingVar] = MoveDown
	}
	s.WorkValue[slot.leavingVar] = targetBound
	s.WorkDual[slot.leavingVar] = -thetaDual
	s.WorkDual[q] = 0

	e.Weights.Update(r, slot.aFtran, alpha, tau)
	if e.Weights.Mode == ModeDevex && e.Weights.NeedsNewFramework() {
		e.Weights.ResetFramework()
	}

	if uerr := e.Factor.Update(slot.aFtran, r, alpha); uerr != nil {
		e.Factor.RaiseHint(factor.HintPossiblySingular)
		return false
	}

	e.Monitor.RecordIteration(false)
	s.Iteration++
	return true
}

// majorRollback discards the remainder of the current batch on
// numerical trouble; slots already committed by commitSlot keep their
// effect (§5 "a rollback of slot i invalidates slots i+1..k-1 but
// preserves the effect of slots 0..i-1"). The forced refactor happens on
// the caller's next NeedsRefactor check.
func (e *MultiEngine) majorRollback() {
	e.Factor.RaiseHint(factor.HintPossiblySingular)
}
