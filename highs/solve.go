package highs

import (
	"context"
	"fmt"

	"github.com/anassmeskini/dualsimplex/lp"
	"github.com/anassmeskini/dualsimplex/simplex"
)

func modelStatusFromSimplex(status simplex.Status) ModelStatus {
	switch status {
	case simplex.StatusOptimal:
		return ModelStatusOptimal
	case simplex.StatusInfeasible:
		return ModelStatusInfeasible
	case simplex.StatusUnbounded:
		return ModelStatusUnbounded
	case simplex.StatusTimeLimit:
		return ModelStatusTimeLimit
	case simplex.StatusIterLimit:
		return ModelStatusIterationLimit
	case simplex.StatusObjectiveBound:
		return ModelStatusObjectiveBound
	default:
		return ModelStatusSolveError
	}
}

// solveLP runs lpData to completion under opts and converts the
// engine's terminal State into a Solution, plus the basis that State
// ended on. startBasis, when non-nil, warm-starts the engine from it
// instead of the cold-start slack basis (§8 scenario 5); it is ignored
// with a fallback to a cold start if its shape no longer matches lpData
// (the caller is responsible for clearing it first when the model's row
// or column count changed, but a defensive fallback here means a stale
// basis can never wedge Run). offset is added to the reported objective
// (lp.LP itself carries no constant term).
func solveLP(lpData *lp.LP, opts Options, offset float64, startBasis *simplex.Basis) (*Solution, simplex.Basis, error) {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	if err := lpData.Validate(); err != nil {
		return &Solution{Status: ModelStatusModelError}, simplex.Basis{}, newErrorMsg("Solve", err.Error())
	}
	if lpData.NumCol == 0 {
		return &Solution{Status: ModelStatusOptimal, Objective: offset}, simplex.Basis{}, nil
	}

	so := opts.toSimplex()
	ctx := context.Background()

	var status simplex.Status
	var err error
	var state *simplex.State
	if opts.Strategy == StrategyPAMI {
		var e *simplex.MultiEngine
		if startBasis != nil {
			e, err = simplex.NewMultiEngineWarm(lpData, so, *startBasis)
		}
		if startBasis == nil || err != nil {
			e = simplex.NewMultiEngine(lpData, so)
		}
		status, err = e.Solve(ctx)
		state = e.State
	} else {
		var e *simplex.Engine
		if startBasis != nil {
			e, err = simplex.NewEngineWarm(lpData, so, *startBasis)
		}
		if startBasis == nil || err != nil {
			e = simplex.NewEngine(lpData, so)
		}
		status, err = e.Solve(ctx)
		state = e.State
	}

	ms := modelStatusFromSimplex(status)
	if err != nil {
		logger.Log(KindError, err.Error())
		return &Solution{Status: ModelStatusSolveError}, simplex.Basis{}, newErrorMsg("Solve", err.Error())
	}
	logger.Print(LevelDetailed, fmt.Sprintf("%s after %d iterations", ms, state.Iteration))

	return extractSolution(state, ms, lpData.Sense, offset), state.CurrentBasis(), nil
}

// extractSolution reads the final primal/dual values off state. When
// the LP was built for a maximize sense, the engine always minimizes
// the sign-flipped cost internally (simplex.State.New), so the
// objective and every dual value reported here are negated back into
// the caller's original sense.
func extractSolution(state *simplex.State, status ModelStatus, sense lp.ObjSense, offset float64) *Solution {
	n, m := state.NumCol, state.NumRow
	values := state.Values()

	colValues := make([]float64, n)
	copy(colValues, values[:n])
	rowValues := make([]float64, m)
	copy(rowValues, values[n:])

	colDuals := make([]float64, n)
	copy(colDuals, state.WorkDual[:n])
	rowDuals := make([]float64, m)
	for i := 0; i < m; i++ {
		rowDuals[i] = state.WorkDual[n+i]
	}

	objective := state.Objective()
	if sense == lp.Maximize {
		objective = -objective
		for j := range colDuals {
			colDuals[j] = -colDuals[j]
		}
		for i := range rowDuals {
			rowDuals[i] = -rowDuals[i]
		}
	}
	objective += offset

	colBasis := make([]BasisStatus, n)
	for j := 0; j < n; j++ {
		colBasis[j] = basisStatusOf(state, j)
	}
	rowBasis := make([]BasisStatus, m)
	for i := 0; i < m; i++ {
		rowBasis[i] = basisStatusOf(state, n+i)
	}

	return &Solution{
		Status:    status,
		ColValues: colValues,
		ColDuals:  colDuals,
		RowValues: rowValues,
		RowDuals:  rowDuals,
		ColBasis:  colBasis,
		RowBasis:  rowBasis,
		Objective: objective,
	}
}

func basisStatusOf(state *simplex.State, j int) BasisStatus {
	if state.IsBasic(j) {
		return BasisStatusBasic
	}
	switch state.NonbasicMove[j] {
	case simplex.MoveUp:
		return BasisStatusLower
	case simplex.MoveDown:
		return BasisStatusUpper
	default:
		return BasisStatusZero
	}
}
