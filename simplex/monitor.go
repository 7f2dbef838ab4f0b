package simplex

import (
	"math"

	"github.com/anassmeskini/dualsimplex/factor"
)

// NumericMonitor tracks pivot-verify mismatch history, a rho-density
// moving average and the costly-DSE heuristic of §4.8 (the synthetic-tick
// clock lives on factor.Factor).
type NumericMonitor struct {
	PivotMismatches int
	RebuildCount    int

	densityMean float64

	costlyWindowIters int
	costlyWindowHits  int
	totalIterations   int
}

// NewNumericMonitor returns a zeroed monitor.
func NewNumericMonitor() *NumericMonitor { return &NumericMonitor{} }

// RecordDensity folds a new rho/pi density sample into the monitor's
// moving average (matrix.Matrix keeps its own average for PRICE mode
// selection).
func (nm *NumericMonitor) RecordDensity(d float64) {
	const alpha = 0.2
	if nm.densityMean == 0 {
		nm.densityMean = d
		return
	}
	nm.densityMean = alpha*d + (1-alpha)*nm.densityMean
}

// RecordPivotMismatch increments the mismatch counter; callers force a
// refactor in response (§4.2, §7 "locally recovered by forcing
// REFACTOR").
func (nm *NumericMonitor) RecordPivotMismatch() {
	nm.PivotMismatches++
}

// RecordIteration folds one iteration's DSE-accuracy outcome into the
// rolling costly-DSE window used by ShouldSwitchToDevex.
func (nm *NumericMonitor) RecordIteration(costly bool) {
	nm.totalIterations++
	nm.costlyWindowIters++
	if costly {
		nm.costlyWindowHits++
	}
	// Window decays geometrically rather than growing unbounded, so the
	// frequency reflects recent behaviour.
	if nm.costlyWindowIters > 200 {
		nm.costlyWindowIters /= 2
		nm.costlyWindowHits /= 2
	}
}

// ShouldSwitchToDevex implements §4.8's heuristic: if costly-DSE
// iterations exceed 5% of a window covering more than 10% of all
// iterations so far, recommend switching dual_edge_weight_mode from DSE
// to Devex.
func (nm *NumericMonitor) ShouldSwitchToDevex() bool {
	if nm.totalIterations == 0 || nm.costlyWindowIters == 0 {
		return false
	}
	windowFraction := float64(nm.costlyWindowIters) / float64(nm.totalIterations)
	if windowFraction <= 0.1 {
		return false
	}
	costlyFrequency := float64(nm.costlyWindowHits) / float64(nm.costlyWindowIters)
	return costlyFrequency > 0.05
}

// VerifyDense cross-checks an eta-file FTRAN result against a from-
// scratch dense solve when the basis is small enough that the check is
// cheap (factor.DenseFallbackThreshold), or unconditionally after a
// pivot-verify mismatch has been recorded on this monitor (the count is
// never reset). Returns true
// if the two results agree within tol.
func (nm *NumericMonitor) VerifyDense(f *factor.Factor, v, fromEtas []float64, tol float64) bool {
	if f.Size() > factor.DenseFallbackThreshold && nm.PivotMismatches == 0 {
		return true
	}
	diff := f.DenseFallback(v, fromEtas)
	return diff <= tol*(1+normInf(v))
}

func normInf(v []float64) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
