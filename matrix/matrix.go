// Package matrix wraps an lp.LP's constraint matrix with a lazily-built
// row-wise mirror and the three PRICE variants (§4.1) used to form a row
// of the simplex tableau, pi = A^T * rho.
package matrix

import (
	"github.com/anassmeskini/dualsimplex/lp"
	"github.com/anassmeskini/dualsimplex/sparsevec"
)

// PriceMode selects which PRICE_* algorithm to use for a given BTRAN
// result. ColSwitchDensity and the hysteresis band in Matrix.PickMode
// implement the "tie-break between modes" rule of §4.1.
type PriceMode int

const (
	// PriceCol walks the column-wise matrix and skips zero rho entries
	// column by column. Preferred when rho is dense.
	PriceCol PriceMode = iota
	// PriceRow walks only the rows with a nonzero rho entry, via the
	// row-wise mirror. Preferred when rho is sparse.
	PriceRow
	// PriceUltra is PriceRow plus bookkeeping of which nonbasic columns
	// were actually touched, for hyper-sparse downstream consumers.
	PriceUltra
)

// ColSwitchDensity is the running-mean rho density above which the
// column-switch strategies (row_switch, row_switch_col_switch) flip from
// PriceRow to PriceCol.
const ColSwitchDensity = 0.75

// Matrix owns the column-wise copy of an LP's constraint matrix and
// builds a row-wise mirror on first use.
type Matrix struct {
	lp *lp.LP

	// rowStart/rowIndex/rowValue mirror AStart/AIndex/AValue but indexed
	// by row; built lazily by BuildRowWise.
	rowStart []int
	rowIndex []int
	rowValue []float64
	rowBuilt bool

	// meanDensity tracks an exponential moving average of rho's density,
	// used by PickMode's hysteresis.
	meanDensity float64
	usingCol    bool
}

// New wraps lpData's constraint matrix. lpData is borrowed, never copied.
func New(lpData *lp.LP) *Matrix {
	return &Matrix{lp: lpData, usingCol: false}
}

// NumRow and NumCol mirror the underlying LP's dimensions.
func (m *Matrix) NumRow() int { return m.lp.NumRow }
func (m *Matrix) NumCol() int { return m.lp.NumCol }

// BuildRowWise constructs the row-wise mirror if it has not been built
// yet. Safe to call repeatedly; the work happens once.
func (m *Matrix) BuildRowWise() {
	if m.rowBuilt {
		return
	}
	nr, nc := m.lp.NumRow, m.lp.NumCol
	nnz := len(m.lp.AIndex)

	counts := make([]int, nr+1)
	for _, r := range m.lp.AIndex {
		counts[r+1]++
	}
	for i := 0; i < nr; i++ {
		counts[i+1] += counts[i]
	}
	m.rowStart = counts

	m.rowIndex = make([]int, nnz)
	m.rowValue = make([]float64, nnz)
	cursor := append([]int(nil), m.rowStart...)
	for j := 0; j < nc; j++ {
		for k := m.lp.AStart[j]; k < m.lp.AStart[j+1]; k++ {
			r := m.lp.AIndex[k]
			pos := cursor[r]
			m.rowIndex[pos] = j
			m.rowValue[pos] = m.lp.AValue[k]
			cursor[r]++
		}
	}
	m.rowBuilt = true
}

// PickMode chooses a PRICE mode for the given rho based on its density
// and the matrix's running mean density, applying hysteresis: once the
// engine has switched to PriceCol it only switches back after density
// drops comfortably below the threshold (the "opposite switch is
// hysteretic" rule of §4.1).
func (m *Matrix) PickMode(rho *sparsevec.SparseVector) PriceMode {
	density := rho.Density()
	const alpha = 0.25
	if m.meanDensity == 0 {
		m.meanDensity = density
	} else {
		m.meanDensity = alpha*density + (1-alpha)*m.meanDensity
	}

	switch {
	case m.usingCol && m.meanDensity < ColSwitchDensity*0.8:
		m.usingCol = false
	case !m.usingCol && m.meanDensity >= ColSwitchDensity:
		m.usingCol = true
	}

	if m.usingCol {
		return PriceCol
	}
	if density < 0.1 {
		return PriceUltra
	}
	return PriceRow
}

// PriceColumnWise computes pi_j = sum_i rho_i * A_ij for every column j by
// walking the column-wise matrix, skipping zero rho entries. out is
// reset and repopulated; its index is left unbuilt (dense mode).
func (m *Matrix) PriceColumnWise(rho *sparsevec.SparseVector, out *sparsevec.SparseVector) {
	out.Reset()
	for j := 0; j < m.lp.NumCol; j++ {
		var sum float64
		for k := m.lp.AStart[j]; k < m.lp.AStart[j+1]; k++ {
			r := m.lp.AIndex[k]
			if v := rho.Dense[r]; v != 0 {
				sum += v * m.lp.AValue[k]
			}
		}
		if sum != 0 {
			out.Set(j, sum)
		}
	}
}

// PriceRowWise computes pi by walking only the rows with a nonzero rho
// entry, via the row-wise mirror (built lazily if needed).
func (m *Matrix) PriceRowWise(rho *sparsevec.SparseVector, out *sparsevec.SparseVector) {
	m.BuildRowWise()
	out.Reset()
	for _, r := range rho.Index {
		rv := rho.Dense[r]
		if rv == 0 {
			continue
		}
		for k := m.rowStart[r]; k < m.rowStart[r+1]; k++ {
			out.Add(m.rowIndex[k], rv*m.rowValue[k])
		}
	}
	out.Compact()
}

// PriceUltraWise is PriceRowWise plus an explicit list (touched) of the
// columns that received a nonzero contribution, letting a
// hyper-sparse caller avoid a second scan of out.Index (which, by
// construction here, already coincides with touched; the separate slice
// exists so a caller can retain the touched set while the engine resets
// out.Index between iterations).
func (m *Matrix) PriceUltraWise(rho *sparsevec.SparseVector, out *sparsevec.SparseVector) (touched []int) {
	m.PriceRowWise(rho, out)
	touched = append(touched, out.Index...)
	return touched
}

// Price computes pi = A^T * rho into out, selecting the mode via
// PickMode unless forced is non-nil.
func (m *Matrix) Price(rho *sparsevec.SparseVector, out *sparsevec.SparseVector, forced *PriceMode) PriceMode {
	mode := m.PickMode(rho)
	if forced != nil {
		mode = *forced
	}
	switch mode {
	case PriceCol:
		m.PriceColumnWise(rho, out)
	case PriceUltra:
		m.PriceUltraWise(rho, out)
	default:
		m.PriceRowWise(rho, out)
	}
	return mode
}

// ColumnCopy returns the sparse pattern and values of column j as
// parallel slices (row indices, values), borrowed from the matrix's own
// storage; callers must not mutate the result.
func (m *Matrix) ColumnCopy(j int) (rows []int, values []float64) {
	lo, hi := m.lp.AStart[j], m.lp.AStart[j+1]
	return m.lp.AIndex[lo:hi], m.lp.AValue[lo:hi]
}

// Slice is one partial-price slice: a disjoint set of column indices and
// an independent pi buffer (row_ap in the original naming) that a PAMI
// worker can price into without touching any other slice's buffer.
type Slice struct {
	Cols []int
	RowAp *sparsevec.SparseVector
}

// PartialPriceSlices partitions [0, NumCol) into at most maxSlices
// contiguous slices (S <= 100 per §4.1), each with its own RowAp buffer
// sized to NumCol.
func (m *Matrix) PartialPriceSlices(maxSlices int) []*Slice {
	if maxSlices <= 0 {
		maxSlices = 1
	}
	if maxSlices > 100 {
		maxSlices = 100
	}
	nc := m.lp.NumCol
	if nc == 0 {
		return nil
	}
	if maxSlices > nc {
		maxSlices = nc
	}
	chunk := (nc + maxSlices - 1) / maxSlices
	slices := make([]*Slice, 0, maxSlices)
	for start := 0; start < nc; start += chunk {
		end := start + chunk
		if end > nc {
			end = nc
		}
		cols := make([]int, end-start)
		for i := range cols {
			cols[i] = start + i
		}
		slices = append(slices, &Slice{Cols: cols, RowAp: sparsevec.New(nc)})
	}
	return slices
}

// PriceSlice prices only the given slice's columns into slc.RowAp using
// the row-wise mirror, restricted to columns in slc.Cols. It is the
// per-worker routine PAMI's slice PRICE step runs concurrently; each
// worker writes into its own disjoint RowAp so no synchronization is
// needed (§5).
func (m *Matrix) PriceSlice(rho *sparsevec.SparseVector, slc *Slice) {
	m.BuildRowWise()
	inSlice := make(map[int]bool, len(slc.Cols))
	for _, c := range slc.Cols {
		inSlice[c] = true
	}
	slc.RowAp.Reset()
	for _, r := range rho.Index {
		rv := rho.Dense[r]
		if rv == 0 {
			continue
		}
		for k := m.rowStart[r]; k < m.rowStart[r+1]; k++ {
			col := m.rowIndex[k]
			if inSlice[col] {
				slc.RowAp.Add(col, rv*m.rowValue[k])
			}
		}
	}
	slc.RowAp.Compact()
}
