package highs

import (
	"time"

	"github.com/anassmeskini/dualsimplex/simplex"
)

// Strategy selects the iteration loop: plain serial dual simplex or
// the PAMI batched variant (§4.6/§4.7).
type Strategy int

const (
	StrategySerial Strategy = iota
	StrategyPAMI
)

// EdgeWeightStrategy names the dual edge-weight scheme (§4.3); it
// mirrors the option of the same name in HiGHS's own option bag.
type EdgeWeightStrategy int

const (
	EdgeWeightDantzig EdgeWeightStrategy = iota
	EdgeWeightDevex
	EdgeWeightSteepestEdge
	// EdgeWeightSteepestEdgeToDevex starts from exact DSE weights and lets
	// the engine fall back to Devex on its own once DSE accuracy degrades
	// (simplex.NumericMonitor.ShouldSwitchToDevex, §4.8); unlike
	// EdgeWeightSteepestEdge it never pins the engine to DSE for the
	// whole solve.
	EdgeWeightSteepestEdgeToDevex
	// EdgeWeightChoose defers the dual/Devex/steepest-edge decision to the
	// engine's own default (§6 "choose"), which is steepest-edge-to-Devex.
	EdgeWeightChoose
)

func (e EdgeWeightStrategy) toSimplex() simplex.WeightMode {
	switch e {
	case EdgeWeightDevex:
		return simplex.ModeDevex
	case EdgeWeightSteepestEdge, EdgeWeightSteepestEdgeToDevex, EdgeWeightChoose:
		return simplex.ModeDSE
	default:
		return simplex.ModeDantzig
	}
}

// allowDevexFallback reports whether the engine may abandon DSE for Devex
// mid-solve under this strategy. Plain EdgeWeightSteepestEdge pins the
// engine to DSE for the whole solve; the other two DSE-rooted strategies
// permit the fallback (§4.8 "if permitted").
func (e EdgeWeightStrategy) allowDevexFallback() bool {
	return e == EdgeWeightSteepestEdgeToDevex || e == EdgeWeightChoose
}

// PriceStrategy names the PRICE implementation (§4.1); "Auto" lets the
// matrix package pick column-wise vs. row-wise vs. "ultra" partial
// pricing based on measured density (matrix.PickMode).
type PriceStrategy int

const (
	PriceAuto PriceStrategy = iota
	PriceForceCol
	PriceForceRow
	PriceForceUltra
)

func (p PriceStrategy) toSimplex() simplex.PriceMode {
	switch p {
	case PriceForceCol:
		return simplex.PriceForceCol
	case PriceForceRow:
		return simplex.PriceForceRow
	case PriceForceUltra:
		return simplex.PriceForceUltra
	default:
		return simplex.PriceAuto
	}
}

// Options is the full option bag accepted by Model.Solve and Solver,
// generalizing the teacher's solveConfig (§6).
type Options struct {
	Strategy                Strategy
	DualEdgeWeightStrategy  EdgeWeightStrategy
	PrimalEdgeWeightStrategy EdgeWeightStrategy // recognized, unused: no primal engine is implemented
	PriceStrategy           PriceStrategy

	PrimalFeasibilityTolerance float64
	DualFeasibilityTolerance   float64
	PerturbCosts               bool
	UpdateLimit                int
	PAMIBatch                  int

	TimeLimit         time.Duration
	IterationLimit    int
	ObjectiveBound    float64
	HasObjectiveBound bool

	Logger Logger
}

// DefaultOptions takes its tolerances and update limit from
// simplex.DefaultOptions/DefaultTolerances (§6); unlike simplex's
// defaults, PerturbCosts is off.
func DefaultOptions() Options {
	tol := simplex.DefaultTolerances()
	return Options{
		Strategy:               StrategySerial,
		DualEdgeWeightStrategy: EdgeWeightSteepestEdge,
		PriceStrategy:          PriceAuto,
		PrimalFeasibilityTolerance: tol.Primal,
		DualFeasibilityTolerance:   tol.Dual,
		UpdateLimit:                simplex.DefaultOptions().UpdateLimit,
		PAMIBatch:                  1,
		Logger:                     nopLogger{},
	}
}

func (o Options) toSimplex() simplex.Options {
	so := simplex.DefaultOptions()
	so.WeightMode = o.DualEdgeWeightStrategy.toSimplex()
	so.AllowDevexFallback = o.DualEdgeWeightStrategy.allowDevexFallback()
	so.Price = o.PriceStrategy.toSimplex()
	if o.PrimalFeasibilityTolerance > 0 {
		so.Tol.Primal = o.PrimalFeasibilityTolerance
	}
	if o.DualFeasibilityTolerance > 0 {
		so.Tol.Dual = o.DualFeasibilityTolerance
	}
	so.PerturbCosts = o.PerturbCosts
	if o.UpdateLimit > 0 {
		so.UpdateLimit = o.UpdateLimit
	}
	if o.IterationLimit > 0 {
		so.IterationLimit = o.IterationLimit
	}
	if o.TimeLimit > 0 {
		so.TimeLimit = o.TimeLimit
	}
	so.ObjectiveBound = o.ObjectiveBound
	so.HasObjectiveBound = o.HasObjectiveBound
	if o.PAMIBatch > 0 {
		so.PAMIBatch = o.PAMIBatch
	}
	return so
}

// SolveOption configures Options in the teacher's functional-option
// style.
type SolveOption func(*Options)

// WithOutput enables or disables solver progress logging (replaces the
// teacher's output_flag).
func WithOutput(enabled bool) SolveOption {
	return func(o *Options) {
		if enabled {
			o.Logger = NewStdLogger(LevelAlways)
		} else {
			o.Logger = nopLogger{}
		}
	}
}

// WithLogger installs a caller-supplied Logger.
func WithLogger(l Logger) SolveOption {
	return func(o *Options) { o.Logger = l }
}

// WithTimeLimit sets the time limit.
func WithTimeLimit(seconds float64) SolveOption {
	return func(o *Options) { o.TimeLimit = time.Duration(seconds * float64(time.Second)) }
}

// WithIterationLimit sets the iteration limit.
func WithIterationLimit(n int) SolveOption {
	return func(o *Options) { o.IterationLimit = n }
}

// WithObjectiveBound sets a cutoff bound on the objective; the engine
// stops with ModelStatusObjectiveBound once it proves the objective
// cannot improve past it.
func WithObjectiveBound(bound float64) SolveOption {
	return func(o *Options) {
		o.ObjectiveBound = bound
		o.HasObjectiveBound = true
	}
}

// WithStrategy selects serial vs. PAMI iteration.
func WithStrategy(s Strategy) SolveOption {
	return func(o *Options) { o.Strategy = s }
}

// WithPAMIBatch sets the PAMI batch size k (clamped to [1,8] by
// simplex.NewMultiEngine); ignored under StrategySerial.
func WithPAMIBatch(k int) SolveOption {
	return func(o *Options) { o.PAMIBatch = k }
}

// WithDualEdgeWeightStrategy selects the dual edge-weight scheme.
func WithDualEdgeWeightStrategy(s EdgeWeightStrategy) SolveOption {
	return func(o *Options) { o.DualEdgeWeightStrategy = s }
}

// WithPriceStrategy selects the PRICE implementation.
func WithPriceStrategy(s PriceStrategy) SolveOption {
	return func(o *Options) { o.PriceStrategy = s }
}

// WithPerturbCosts toggles phase-1 cost perturbation for cycling
// avoidance (§4.6).
func WithPerturbCosts(enabled bool) SolveOption {
	return func(o *Options) { o.PerturbCosts = enabled }
}

// WithUpdateLimit sets the number of eta updates the factor accepts
// before forcing a refactor (§4.2).
func WithUpdateLimit(n int) SolveOption {
	return func(o *Options) { o.UpdateLimit = n }
}

// WithFeasibilityTolerances sets both the primal and dual feasibility
// tolerances.
func WithFeasibilityTolerances(primal, dual float64) SolveOption {
	return func(o *Options) {
		o.PrimalFeasibilityTolerance = primal
		o.DualFeasibilityTolerance = dual
	}
}
