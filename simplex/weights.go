package simplex

import (
	"math"

	"github.com/anassmeskini/dualsimplex/factor"
)

// WeightMode selects DSE or Devex pricing without virtual dispatch
// (§9 "replace with a tagged variant and a single update routine").
type WeightMode int

const (
	ModeDSE WeightMode = iota
	ModeDevex
	// ModeDantzig disables edge weighting entirely (every weight pinned
	// at 1), the "largest coefficient" rule named alongside devex/
	// steepest-edge in the dual_edge_weight_strategy options (§6).
	ModeDantzig
)

// String returns the mode's name.
func (m WeightMode) String() string {
	switch m {
	case ModeDevex:
		return "Devex"
	case ModeDantzig:
		return "Dantzig"
	default:
		return "DSE"
	}
}

// NewDantzig builds weights fixed at 1, never updated.
func NewDantzig(m int) *EdgeWeights {
	w := &EdgeWeights{Mode: ModeDantzig, Weight: make([]float64, m)}
	for i := range w.Weight {
		w.Weight[i] = 1
	}
	return w
}

// AccuracyRatio bounds the predicted-vs-recomputed weight ratio tolerated
// before a DSE weight is considered inaccurate (§4.3, default 3).
const AccuracyRatio = 3.0

// DevexWeightFloor is the minimum a Devex weight is allowed to decay to.
const DevexWeightFloor = 1.0

// DSEWeightFloor is the minimum (1+eps) a DSE weight is clamped to.
const DSEWeightFloor = 1 + 1e-10

// EdgeWeights holds one weight per basic row, under either the DSE or
// Devex update rule (§4.3).
type EdgeWeights struct {
	Mode   WeightMode
	Weight []float64 // length m

	// Devex-only state: reference-frame membership per basic row and an
	// iteration counter for the periodic framework reset.
	devexRef        []bool
	sinceFramework   int
	frameworkPeriod  int

	// DSE accuracy monitoring (§4.3, §4.8's "costly-DSE" heuristic).
	costlyCount int
	totalChecks int
}

// NewDSE builds DSE weights. If exact is true every weight is computed
// as ||e_i^T B^-1||^2 from f (the "DSE cold start" of §3's Lifecycle);
// otherwise every weight starts at 1, a cheap approximation refined by
// the first few updates.
func NewDSE(f *factor.Factor, m int, exact bool) *EdgeWeights {
	w := &EdgeWeights{Mode: ModeDSE, Weight: make([]float64, m)}
	for i := 0; i < m; i++ {
		if exact {
			col := f.DenseInverseColumn(i)
			w.Weight[i] = sumSquares(col)
		} else {
			w.Weight[i] = 1
		}
	}
	return w
}

// NewDevex builds Devex weights initialised to 1 with every basic row in
// the reference frame, matching §4.3's "reference set R (initially all
// basic)".
func NewDevex(m int) *EdgeWeights {
	w := &EdgeWeights{
		Mode:            ModeDevex,
		Weight:          make([]float64, m),
		devexRef:        make([]bool, m),
		frameworkPeriod: devexPeriod(m),
	}
	for i := range w.Weight {
		w.Weight[i] = 1
		w.devexRef[i] = true
	}
	return w
}

func devexPeriod(m int) int {
	p := m / 100
	if p < 25 {
		p = 25
	}
	return p
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

// Update applies the post-pivot weight update for leaving row r, pivot
// element alpha, and the entering column's FTRAN'd image aCol (length
// m). tau is FTRAN(rho_r), required only in DSE mode (§4.3's "second
// FTRAN per iteration"); pass nil in Devex mode.
func (w *EdgeWeights) Update(r int, aCol []float64, alpha float64, tau []float64) {
	gammaR := w.Weight[r]
	switch w.Mode {
	case ModeDSE:
		for i := range w.Weight {
			if i == r {
				continue
			}
			ratio := aCol[i] / alpha
			updated := w.Weight[i] - 2*ratio*tau[i] + ratio*ratio*gammaR
			if updated < DSEWeightFloor {
				updated = DSEWeightFloor
			}
			w.Weight[i] = updated
		}
		w.Weight[r] = gammaR / (alpha * alpha)
	case ModeDevex:
		for i := range w.Weight {
			if i == r {
				continue
			}
			ratio := aCol[i] / alpha
			candidate := ratio * ratio * gammaR
			if candidate > w.Weight[i] {
				w.Weight[i] = candidate
			}
		}
		w.Weight[r] = math.Max(DevexWeightFloor, gammaR/(alpha*alpha))
		w.sinceFramework++
	}
}

// NeedsNewFramework reports whether a Devex reset is due: a fixed
// iteration cadence, or the current weight ratio exceeding
// AccuracyRatio (§4.3).
func (w *EdgeWeights) NeedsNewFramework() bool {
	if w.Mode != ModeDevex {
		return false
	}
	if w.sinceFramework >= w.frameworkPeriod {
		return true
	}
	return w.weightRatio() > AccuracyRatio
}

// ResetFramework reinitialises the Devex reference set to "every
// currently basic row", weight 1, as if starting fresh from this basis.
func (w *EdgeWeights) ResetFramework() {
	for i := range w.Weight {
		w.Weight[i] = 1
		w.devexRef[i] = true
	}
	w.sinceFramework = 0
}

func (w *EdgeWeights) weightRatio() float64 {
	if len(w.Weight) == 0 {
		return 1
	}
	lo, hi := w.Weight[0], w.Weight[0]
	for _, x := range w.Weight[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	if lo <= 0 {
		return math.Inf(1)
	}
	return hi / lo
}

// CheckAccuracy compares a predicted weight (carried incrementally)
// against an exact recomputation at row r and records whether it fell
// outside [1/AccuracyRatio, AccuracyRatio] (§4.3). Returns true if the
// weight was accurate.
func (w *EdgeWeights) CheckAccuracy(r int, exact float64) bool {
	w.totalChecks++
	predicted := w.Weight[r]
	if predicted <= 0 || exact <= 0 {
		w.costlyCount++
		return false
	}
	ratio := predicted / exact
	ok := ratio >= 1/AccuracyRatio && ratio <= AccuracyRatio
	if !ok {
		w.costlyCount++
	}
	return ok
}

// CostlyFrequency returns the observed fraction of accuracy checks that
// fell outside tolerance, for NumericMonitor's "switch DSE to Devex"
// heuristic (§4.8).
func (w *EdgeWeights) CostlyFrequency() float64 {
	if w.totalChecks == 0 {
		return 0
	}
	return float64(w.costlyCount) / float64(w.totalChecks)
}
