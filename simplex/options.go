package simplex

import "time"

// PriceMode names matrix.Matrix's three pricing strategies without
// importing the matrix package here, so simplex.Options stays a plain
// value type; Engine converts it when constructing the Matrix.
type PriceMode int

const (
	PriceAuto PriceMode = iota
	PriceForceCol
	PriceForceRow
	PriceForceUltra
)

// Options bundles the per-solve knobs named in §6's options bag that the
// engine itself consumes (the remainder - output flags, file paths - live
// on the highs package's wider Options).
type Options struct {
	WeightMode WeightMode
	// AllowDevexFallback permits rebuild() to abandon DSE for Devex mid-
	// solve once NumericMonitor.ShouldSwitchToDevex reports the DSE
	// weights have become unreliable (§4.8 "switch ... (if permitted)").
	// Ignored outside ModeDSE.
	AllowDevexFallback bool
	Price              PriceMode

	Tol           Tolerances
	PerturbCosts  bool
	UpdateLimit   int
	IterationLimit int
	TimeLimit     time.Duration
	ObjectiveBound float64 // phase-2 cutoff; ignored when HasObjectiveBound is false
	HasObjectiveBound bool

	// PAMI batch size, read only by MultiEngine (clamped to [1,8]); with
	// 1, MultiEngine works one row per batch (§4.7 "k=1 degenerates to the
	// serial dual simplex"). Engine ignores it.
	PAMIBatch int
}

// DefaultOptions mirrors the documented defaults of §6.
func DefaultOptions() Options {
	return Options{
		WeightMode:         ModeDSE,
		AllowDevexFallback: true,
		Price:              PriceAuto,
		Tol:            DefaultTolerances(),
		PerturbCosts:   true,
		UpdateLimit:    5000,
		IterationLimit: 0,
		PAMIBatch:      1,
	}
}
