package highs

import (
	"math"
	"sort"
)

// Inf returns positive infinity, suitable for unbounded variable bounds.
func Inf() float64 {
	return math.Inf(1)
}

// NegInf returns negative infinity, suitable for unbounded variable bounds.
func NegInf() float64 {
	return math.Inf(-1)
}

// nonzerosToCSC converts a slice of Nonzero entries into the
// column-wise compressed sparse format lp.LP expects: start has length
// numCol+1, with start[numCol] == len(index), and every column is
// represented even when empty (start[j] == start[j+1]).
func nonzerosToCSC(nz []Nonzero, numCol int) (start, index []int, value []float64, err error) {
	sorted := make([]Nonzero, len(nz))
	copy(sorted, nz)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Col != sorted[j].Col {
			return sorted[i].Col < sorted[j].Col
		}
		return sorted[i].Row < sorted[j].Row
	})

	filtered := make([]Nonzero, 0, len(sorted))
	for _, n := range sorted {
		if n.Row < 0 || n.Col < 0 {
			return nil, nil, nil, newErrorMsg("nonzerosToCSC", "negative row or column index")
		}
		if n.Col >= numCol {
			return nil, nil, nil, newErrorMsg("nonzerosToCSC", "column index out of range")
		}
		// Merge duplicates (keep last value).
		if len(filtered) > 0 && filtered[len(filtered)-1].Row == n.Row && filtered[len(filtered)-1].Col == n.Col {
			filtered[len(filtered)-1].Val = n.Val
		} else {
			filtered = append(filtered, n)
		}
	}

	start = make([]int, numCol+1)
	index = make([]int, len(filtered))
	value = make([]float64, len(filtered))

	col := 0
	for i, n := range filtered {
		for col < n.Col {
			col++
			start[col] = i
		}
		index[i] = n.Row
		value[i] = n.Val
	}
	for col < numCol {
		col++
		start[col] = len(filtered)
	}
	return start, index, value, nil
}

// expandSlice expands a slice to length n if it's empty, filling with fillValue.
// Returns the original slice if it already has length n.
// Returns an error if the slice has a non-zero length that differs from n.
func expandSlice(n int, slice []float64, fillValue float64) ([]float64, error) {
	if len(slice) == n {
		return slice, nil
	}
	if len(slice) == 0 {
		result := make([]float64, n)
		for i := range result {
			result[i] = fillValue
		}
		return result, nil
	}
	return nil, newErrorMsg("expandSlice", "inconsistent slice length")
}
