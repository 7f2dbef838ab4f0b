package factor

import "math"

// DenseFallbackThreshold is the basis size below which NumericMonitor
// routinely cross-checks the eta-file FTRAN result against a from-
// scratch dense solve, rather than only doing so when a pivot-verify
// mismatch is already suspected.
const DenseFallbackThreshold = 64

// DenseFallback recomputes FTRAN(v) directly from the base LU
// factorisation, bypassing the eta file entirely, and reports the
// infinity-norm difference against the eta-file result fromEtas. A large
// gap indicates the eta file has drifted from B^-1 more than the
// refactor policy assumes, independent of whether any single pivot-
// verify check has tripped.
func (f *Factor) DenseFallback(v []float64, fromEtas []float64) (diff float64) {
	b := make([]float64, f.m)
	copy(b, v)
	exact := f.solveBaseOnly(b, false)
	for i := range exact {
		d := math.Abs(exact[i] - fromEtas[i])
		if d > diff {
			diff = d
		}
	}
	return diff
}

// solveBaseOnly runs only the base LU solve (no etas), used internally
// by DenseFallback and available to tests that want to bypass product-
// form updates entirely.
func (f *Factor) solveBaseOnly(v []float64, transpose bool) []float64 {
	saved := f.etas
	f.etas = nil
	var out []float64
	if transpose {
		out = f.BTRAN(v)
	} else {
		out = f.FTRAN(v)
	}
	f.etas = saved
	return out
}
