package lp

// LpAction is a signal from the caller that invalidates some subset of
// SimplexLpStatus. See HighsLp's LpAction enum in the original HiGHS
// source for the canonical list this mirrors.
type LpAction int

const (
	ActionDualise LpAction = iota
	ActionPermute
	ActionScale
	ActionNewCosts
	ActionNewBounds
	ActionNewBasis
	ActionNewCols
	ActionNewRows
	ActionDelCols
	ActionDelRows
	ActionDelRowsBasisOK
)

// String returns the action's name.
func (a LpAction) String() string {
	switch a {
	case ActionDualise:
		return "DUALISE"
	case ActionPermute:
		return "PERMUTE"
	case ActionScale:
		return "SCALE"
	case ActionNewCosts:
		return "NEW_COSTS"
	case ActionNewBounds:
		return "NEW_BOUNDS"
	case ActionNewBasis:
		return "NEW_BASIS"
	case ActionNewCols:
		return "NEW_COLS"
	case ActionNewRows:
		return "NEW_ROWS"
	case ActionDelCols:
		return "DEL_COLS"
	case ActionDelRows:
		return "DEL_ROWS"
	case ActionDelRowsBasisOK:
		return "DEL_ROWS_BASIS_OK"
	default:
		return "UNKNOWN"
	}
}

// SimplexLpStatus tracks which derived quantities are currently valid for
// an LP. Every field defaults false (nothing derived yet); the engine sets
// them as it builds matrices, factors and solution arrays, and an LpAction
// clears the subset that it invalidates.
type SimplexLpStatus struct {
	Valid          bool
	IsDualised     bool
	IsPermuted     bool
	ScalingTried   bool

	HasBasis                   bool
	HasMatrixColWise           bool
	HasMatrixRowWise           bool
	HasFactorArrays            bool
	HasDualSteepestEdgeWeights bool
	HasNonbasicDualValues      bool
	HasBasicPrimalValues       bool
	HasInvert                  bool
	HasFreshInvert             bool
	HasFreshRebuild            bool
	HasDualObjectiveValue      bool
	HasPrimalObjectiveValue    bool
}

// Clear resets every flag to false (equivalent to a freshly loaded LP with
// nothing derived).
func (s *SimplexLpStatus) Clear() {
	*s = SimplexLpStatus{}
}

// Apply clears the subset of flags invalidated by action, matching the
// dependency graph used by HiGHS's updateLpStatus: a change to the matrix
// invalidates everything derived from a basis; a change to costs/bounds
// only invalidates the solution values that depend on them.
func (s *SimplexLpStatus) Apply(action LpAction) {
	switch action {
	case ActionNewCosts:
		s.HasNonbasicDualValues = false
		s.HasDualObjectiveValue = false
		s.HasFreshRebuild = false
	case ActionNewBounds:
		s.HasBasicPrimalValues = false
		s.HasPrimalObjectiveValue = false
		s.HasFreshRebuild = false
	case ActionNewBasis:
		s.HasBasis = false
		s.HasInvert = false
		s.HasFreshInvert = false
		s.HasFreshRebuild = false
		s.HasDualSteepestEdgeWeights = false
		s.HasNonbasicDualValues = false
		s.HasBasicPrimalValues = false
	case ActionNewCols, ActionNewRows:
		s.HasMatrixColWise = false
		s.HasMatrixRowWise = false
		s.HasBasis = false
		s.HasInvert = false
		s.HasFreshInvert = false
		s.HasFactorArrays = false
		s.HasDualSteepestEdgeWeights = false
		s.HasNonbasicDualValues = false
		s.HasBasicPrimalValues = false
		s.HasFreshRebuild = false
	case ActionDelCols, ActionDelRows:
		s.HasMatrixColWise = false
		s.HasMatrixRowWise = false
		s.HasBasis = false
		s.HasInvert = false
		s.HasFreshInvert = false
		s.HasFactorArrays = false
		s.HasDualSteepestEdgeWeights = false
		s.HasNonbasicDualValues = false
		s.HasBasicPrimalValues = false
		s.HasFreshRebuild = false
	case ActionDelRowsBasisOK:
		s.HasMatrixColWise = false
		s.HasMatrixRowWise = false
		s.HasInvert = false
		s.HasFreshInvert = false
		s.HasFactorArrays = false
		s.HasFreshRebuild = false
	case ActionScale, ActionPermute, ActionDualise:
		s.Clear()
	}
}
