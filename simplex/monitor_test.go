package simplex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anassmeskini/dualsimplex/factor"
)

func TestRecordDensityExponentialAverage(t *testing.T) {
	nm := NewNumericMonitor()
	nm.RecordDensity(0.5)
	require.InDelta(t, 0.5, nm.densityMean, 1e-9)

	nm.RecordDensity(0.1)
	// alpha=0.2: 0.2*0.1 + 0.8*0.5 = 0.42
	require.InDelta(t, 0.42, nm.densityMean, 1e-9)
}

func TestRecordPivotMismatchIncrements(t *testing.T) {
	nm := NewNumericMonitor()
	nm.RecordPivotMismatch()
	nm.RecordPivotMismatch()
	require.Equal(t, 2, nm.PivotMismatches)
}

func TestRecordIterationTracksCostlyWindow(t *testing.T) {
	nm := NewNumericMonitor()
	nm.RecordIteration(true)
	nm.RecordIteration(false)
	require.Equal(t, 2, nm.totalIterations)
	require.Equal(t, 2, nm.costlyWindowIters)
	require.Equal(t, 1, nm.costlyWindowHits)
}

func TestRecordIterationDecaysWindowPastLimit(t *testing.T) {
	nm := NewNumericMonitor()
	for i := 0; i < 201; i++ {
		nm.RecordIteration(true)
	}
	require.Less(t, nm.costlyWindowIters, 201)
	require.Equal(t, 201, nm.totalIterations)
}

func TestShouldSwitchToDevexRequiresEnoughWindowCoverage(t *testing.T) {
	nm := NewNumericMonitor()
	// Every iteration in the window is costly, but the window only covers
	// 5 of 100 iterations so far, so no switch yet.
	for i := 0; i < 100; i++ {
		nm.totalIterations++
	}
	nm.costlyWindowIters = 5
	nm.costlyWindowHits = 5
	require.False(t, nm.ShouldSwitchToDevex())
}

func TestShouldSwitchToDevexTriggersOnHighFrequency(t *testing.T) {
	nm := NewNumericMonitor()
	nm.totalIterations = 20
	nm.costlyWindowIters = 20
	nm.costlyWindowHits = 5 // 25% costly, above the 5% threshold
	require.True(t, nm.ShouldSwitchToDevex())
}

func TestShouldSwitchToDevexFalseWithNoIterations(t *testing.T) {
	nm := NewNumericMonitor()
	require.False(t, nm.ShouldSwitchToDevex())
}

func TestVerifyDenseSkipsLargeCleanBasis(t *testing.T) {
	nm := NewNumericMonitor()
	m := factor.DenseFallbackThreshold + 1
	f := factor.New(m, factor.DefaultOptions())
	require.NoError(t, f.Refactor(identityBasis(m)))

	ok := nm.VerifyDense(f, nil, nil, 1e-9)
	require.True(t, ok)
}

func TestVerifyDenseChecksSmallBasis(t *testing.T) {
	nm := NewNumericMonitor()
	m := 3
	f := factor.New(m, factor.DefaultOptions())
	require.NoError(t, f.Refactor(identityBasis(m)))

	v := []float64{1, 2, 3}
	// Identity basis: FTRAN(v) == v, so a "from etas" result equal to v
	// agrees exactly with the dense fallback.
	ok := nm.VerifyDense(f, v, v, 1e-9)
	require.True(t, ok)
}

func TestVerifyDenseDetectsDisagreement(t *testing.T) {
	nm := NewNumericMonitor()
	m := 3
	f := factor.New(m, factor.DefaultOptions())
	require.NoError(t, f.Refactor(identityBasis(m)))

	v := []float64{1, 2, 3}
	wrong := []float64{100, 200, 300}
	ok := nm.VerifyDense(f, v, wrong, 1e-9)
	require.False(t, ok)
}
