package simplex

import (
	"math"

	"github.com/anassmeskini/dualsimplex/internal/heap"
)

// DualRHS maintains the primal infeasibility vector and the compact
// CHUZR candidate list over basic rows (§4.4).
type DualRHS struct {
	state *State

	PrimalInfeas []float64 // length m, squared infeasibility per basic row
	WorkIndex    []int     // candidate list: row indices with infeas > cutoff
	WorkMark     []bool    // length m, membership in WorkIndex
	WorkCutoff   float64

	meanDensity float64
}

// NewDualRHS builds a DualRHS bound to state, with an empty candidate
// list until ComputeInfeasibilities/CreateInfeasList is called.
func NewDualRHS(state *State) *DualRHS {
	return &DualRHS{
		state:        state,
		PrimalInfeas: make([]float64, state.NumRow),
		WorkMark:     make([]bool, state.NumRow),
	}
}

// infeasOf returns the squared bound violation of basic row i given its
// current value, i.e. (max(0, lo-val, val-hi))^2.
func infeasOf(val, lo, hi float64) float64 {
	var viol float64
	if v := lo - val; v > viol {
		viol = v
	}
	if v := val - hi; v > viol {
		viol = v
	}
	return viol * viol
}

// ComputeInfeasibilities recomputes PrimalInfeas from scratch off
// state's BaseValue/BaseLower/BaseUpper, as done at rebuild.
func (d *DualRHS) ComputeInfeasibilities() {
	s := d.state
	for i := 0; i < s.NumRow; i++ {
		d.PrimalInfeas[i] = infeasOf(s.BaseValue[i], s.BaseLower[i], s.BaseUpper[i])
	}
}

// CreateInfeasList rebuilds the candidate list from PrimalInfeas,
// choosing a cutoff adapted to rhoDensity (denser BTRAN results lower
// the cutoff and so widen the list; sparser ones raise it, per §4.4).
func (d *DualRHS) CreateInfeasList(rhoDensity float64) {
	s := d.state
	d.meanDensity = 0.5*rhoDensity + 0.5*d.meanDensity

	cutoff := d.chooseCutoff()
	d.WorkCutoff = cutoff
	d.WorkIndex = d.WorkIndex[:0]
	for i := range d.WorkMark {
		d.WorkMark[i] = false
	}
	for i := 0; i < s.NumRow; i++ {
		if d.PrimalInfeas[i] > cutoff {
			d.WorkIndex = append(d.WorkIndex, i)
			d.WorkMark[i] = true
		}
	}
}

func (d *DualRHS) chooseCutoff() float64 {
	// A denser rho makes scanning the whole row of candidates cheap
	// relative to the BTRAN/PRICE that already happened, so a lower
	// cutoff (bigger candidate list) is affordable; sparse rho pushes
	// toward a tighter cutoff.
	base := 1e-10
	if d.meanDensity > 0.5 {
		return base
	}
	return base * (1 + 10*(0.5-d.meanDensity))
}

// RelaxCutoff is called by the caller when CreateInfeasList produced an
// empty candidate list but infeasibilities remain, widening the net by
// dropping the cutoff to zero (a full scan, §4.4 "the caller refreshes
// via a full scan (possibly dropping cutoff)"). Unlike CreateInfeasList,
// this never recomputes a density-adapted cutoff: the point is to bypass
// chooseCutoff entirely and pick up every row with nonzero infeasibility.
func (d *DualRHS) RelaxCutoff() {
	s := d.state
	d.WorkCutoff = 0
	d.WorkIndex = d.WorkIndex[:0]
	for i := range d.WorkMark {
		d.WorkMark[i] = false
	}
	for i := 0; i < s.NumRow; i++ {
		if d.PrimalInfeas[i] > 0 {
			d.WorkIndex = append(d.WorkIndex, i)
			d.WorkMark[i] = true
		}
	}
}

// ChooseNormal returns the candidate row maximising
// PrimalInfeas[i]/weight[i], i.e. CHUZR under the current edge-weight
// scheme. ok is false when the candidate list is empty.
func (d *DualRHS) ChooseNormal(weight []float64) (row int, ok bool) {
	best := -1
	var bestScore float64
	for _, i := range d.WorkIndex {
		if d.PrimalInfeas[i] <= 0 {
			continue
		}
		score := d.PrimalInfeas[i] / weight[i]
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// ChooseMultiple returns up to k distinct candidate rows, ranked by
// PrimalInfeas[i]/weight[i], for PAMI's major_chooseRow (§4.7). The rows
// are the k highest-scoring ones of the whole candidate list, in score
// order; the list is not partitioned, so the chosen rows may be
// neighbours.
func (d *DualRHS) ChooseMultiple(weight []float64, k int) []int {
	type scored struct {
		row   int
		score float64
	}
	cand := make([]scored, 0, len(d.WorkIndex))
	seen := make(map[int]bool, len(d.WorkIndex))
	for _, i := range d.WorkIndex {
		if d.PrimalInfeas[i] <= 0 || seen[i] {
			continue
		}
		seen[i] = true
		cand = append(cand, scored{i, d.PrimalInfeas[i] / weight[i]})
	}
	if len(cand) == 0 {
		return nil
	}
	heap.SortDescByKey(len(cand), func(a, b int) bool {
		return cand[a].score < cand[b].score
	}, func(a, b int) {
		cand[a], cand[b] = cand[b], cand[a]
	})
	n := k
	if n > len(cand) {
		n = len(cand)
	}
	rows := make([]int, n)
	for i := 0; i < n; i++ {
		rows[i] = cand[i].row
	}
	return rows
}

// UpdatePrimal applies baseValue -= theta*column to every basic row
// (column is the entering column's FTRAN'd image, length m), then
// incrementally refreshes PrimalInfeas and candidate-list membership
// only for the rows column actually touches (§4.4).
func (d *DualRHS) UpdatePrimal(column []float64, theta float64) {
	s := d.state
	for i, c := range column {
		if c == 0 {
			continue
		}
		s.BaseValue[i] -= theta * c
		d.refreshRow(i)
	}
}

func (d *DualRHS) refreshRow(i int) {
	s := d.state
	infeas := infeasOf(s.BaseValue[i], s.BaseLower[i], s.BaseUpper[i])
	d.PrimalInfeas[i] = infeas
	switch {
	case infeas > d.WorkCutoff && !d.WorkMark[i]:
		d.WorkMark[i] = true
		d.WorkIndex = append(d.WorkIndex, i)
	case infeas <= d.WorkCutoff && d.WorkMark[i]:
		d.WorkMark[i] = false
		// Left in WorkIndex until the next CreateInfeasList sweep;
		// ChooseNormal/ChooseMultiple skip it once it is feasible
		// (PrimalInfeas<=0 check), and if it is appended again later,
		// ChooseMultiple counts it once.
	}
}

// TotalInfeasibility returns sum(sqrt(PrimalInfeas[i])), the phase-1
// "sum of primal infeasibilities" used to decide INFEASIBLE vs OPTIMAL
// (§7 "Progress" error kind).
func (d *DualRHS) TotalInfeasibility() float64 {
	var total float64
	for _, v := range d.PrimalInfeas {
		if v > 0 {
			total += math.Sqrt(v)
		}
	}
	return total
}

// CountInfeasible returns the number of basic rows currently infeasible.
func (d *DualRHS) CountInfeasible() int {
	n := 0
	for _, v := range d.PrimalInfeas {
		if v > 0 {
			n++
		}
	}
	return n
}
