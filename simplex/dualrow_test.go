package simplex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anassmeskini/dualsimplex/lp"
	"github.com/anassmeskini/dualsimplex/sparsevec"
)

// threeColState builds a 3-column, 0-row LP so every total index is a
// nonbasic structural column, letting DualRow's pack/Run be exercised
// without needing a populated basis.
func threeColState(upper [3]float64) *State {
	l := &lp.LP{
		NumRow:   0,
		NumCol:   3,
		AStart:   []int{0, 0, 0, 0},
		AIndex:   []int{},
		AValue:   []float64{},
		ColCost:  []float64{0, 0, 0},
		ColLower: []float64{0, 0, 0},
		ColUpper: []float64{upper[0], upper[1], upper[2]},
		Sense:    lp.Minimize,
	}
	return New(l, DefaultTolerances())
}

func TestDualRowPackSkipsWrongSignAndZero(t *testing.T) {
	s := threeColState([3]float64{2, 3, 1})
	pi := sparsevec.New(s.NumTot)
	pi.Set(0, -1) // move=+1, pi<0: correct sign
	pi.Set(1, 1)  // move=+1, pi>0: wrong sign, skipped
	pi.Set(2, 0)  // explicit zero entry would be skipped if tracked

	r := NewDualRow(s)
	r.pack(pi)

	require.Len(t, r.breakpoints, 1)
	require.Equal(t, 0, r.breakpoints[0].Col)
}

func TestDualRowRunNoCandidateWhenNoCorrectSign(t *testing.T) {
	s := threeColState([3]float64{2, 3, 1})
	pi := sparsevec.New(s.NumTot)
	pi.Set(0, 1)
	pi.Set(1, 2)
	pi.Set(2, 3)

	r := NewDualRow(s)
	_, err := r.Run(pi, 1.0)
	require.Equal(t, ErrNoCandidate, err)
}

func TestDualRowRunStopsAtUnboundedRangeColumn(t *testing.T) {
	s := threeColState([3]float64{2, 3, lp.Infinity})
	s.WorkDual[0] = -2
	s.WorkDual[1] = -3
	s.WorkDual[2] = -10

	pi := sparsevec.New(s.NumTot)
	pi.Set(0, -1)
	pi.Set(1, -1)
	pi.Set(2, -1)

	r := NewDualRow(s)
	res, err := r.Run(pi, 5.0)
	require.NoError(t, err)
	// col2's theta (10) is the largest and its range is unbounded, so BFRT
	// must stop there immediately rather than absorb it as a flip.
	require.Equal(t, 2, res.EnteringCol)
	require.InDelta(t, 10.0, res.ThetaDual, 1e-9)
	require.InDelta(t, -1.0, res.Pi, 1e-9)
	require.Empty(t, res.Flipped)
}

func TestDualRowRunAbsorbsFlipThenStops(t *testing.T) {
	s := threeColState([3]float64{2, 3, 1})
	s.WorkDual[0] = -2
	s.WorkDual[1] = -3
	s.WorkDual[2] = -4

	pi := sparsevec.New(s.NumTot)
	pi.Set(0, -1)
	pi.Set(1, -1)
	pi.Set(2, -1)

	r := NewDualRow(s)
	// theta descending is col2(4), col1(3), col0(2). delta=1: col2's flip
	// gain (|pi|*range = 1*1 = 1) exactly exhausts the remaining budget,
	// so col2 is absorbed as a flip and col1 (the next largest theta)
	// becomes the entering column.
	res, err := r.Run(pi, 1.0)
	require.NoError(t, err)
	require.Equal(t, 1, res.EnteringCol)
	require.InDelta(t, 3.0, res.ThetaDual, 1e-9)
	require.InDelta(t, -1.0, res.Pi, 1e-9)
	require.Equal(t, []int{2}, res.Flipped)
}

func TestDualRowRunRejectsNegligiblePivot(t *testing.T) {
	s := threeColState([3]float64{2, 3, 1})
	s.WorkDual[0] = 5

	pi := sparsevec.New(s.NumTot)
	pi.Set(0, -1e-12)

	r := NewDualRow(s)
	_, err := r.Run(pi, 1.0)
	require.Equal(t, ErrPivotTooSmall, err)
}

func TestResolveHarrisTiesPrefersLargestPivot(t *testing.T) {
	s := threeColState([3]float64{2, 3, 1})
	r := NewDualRow(s)
	r.HarrisTolerance = 1e-6
	r.breakpoints = []breakpoint{
		{Col: 0, Theta: 3.0, Pi: 1.0},
		{Col: 1, Theta: 3.0, Pi: 5.0},
		{Col: 2, Theta: 1.0, Pi: 9.0},
	}
	r.resolveHarrisTies(0)
	require.Equal(t, 1, r.breakpoints[0].Col)
}

func TestResolveHarrisTiesNoopBelowBandWidth(t *testing.T) {
	s := threeColState([3]float64{2, 3, 1})
	r := NewDualRow(s)
	r.HarrisTolerance = 1e-9
	r.breakpoints = []breakpoint{
		{Col: 0, Theta: 3.0, Pi: 1.0},
		{Col: 1, Theta: 1.0, Pi: 5.0},
	}
	r.resolveHarrisTies(0)
	require.Equal(t, 0, r.breakpoints[0].Col)
}

func TestResolveHarrisTiesIgnoresEarlierProcessedEntries(t *testing.T) {
	s := threeColState([3]float64{2, 3, 1})
	r := NewDualRow(s)
	r.HarrisTolerance = 1e-6
	// A tie at index 1/2 must not be disturbed by the unrelated, much
	// larger theta sitting at index 0 (already processed by the walk).
	r.breakpoints = []breakpoint{
		{Col: 0, Theta: 9.0, Pi: 100.0},
		{Col: 1, Theta: 2.0, Pi: 1.0},
		{Col: 2, Theta: 2.0, Pi: 7.0},
	}
	r.resolveHarrisTies(1)
	require.Equal(t, 2, r.breakpoints[1].Col)
	require.Equal(t, 0, r.breakpoints[0].Col)
}

// TestDualRowRunResolvesTieAtActualDecisionPoint is the regression case
// for moving the Harris tie-break to CHUZC's real stopping point: two
// columns tie on theta only after the walk has already absorbed an
// unrelated, larger-theta flip, so the old "fixed top band" tie-break
// (operating on breakpoints[0] before any absorption) could never see
// this tie at all.
func TestDualRowRunResolvesTieAtActualDecisionPoint(t *testing.T) {
	s := threeColState([3]float64{1, 3, 3})
	s.WorkDual[0] = -5
	s.WorkDual[1] = -2
	s.WorkDual[2] = -8

	pi := sparsevec.New(s.NumTot)
	pi.Set(0, -1) // theta = 5, absorbed as a flip (range 1, gain 1 == delta)
	pi.Set(1, -1) // theta = 2, tied with col2, smaller pivot
	pi.Set(2, -4) // theta = 2, tied with col1, larger pivot

	r := NewDualRow(s)
	r.HarrisTolerance = 1e-6
	// delta=1 exactly exhausts col0's flip gain (|pi|*range = 1*1 = 1),
	// landing the walk on the col1/col2 tie as the real decision point.
	res, err := r.Run(pi, 1.0)
	require.NoError(t, err)
	require.Equal(t, []int{0}, res.Flipped)
	// Of the tied pair, col2 carries the larger |pi| and must be the one
	// chosen as the entering column.
	require.Equal(t, 2, res.EnteringCol)
	require.InDelta(t, -4.0, res.Pi, 1e-9)
}
