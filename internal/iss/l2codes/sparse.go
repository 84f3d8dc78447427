package l2codes

import "sort"

// SparseRow holds the non-zero coefficients of one spot. Indices are strictly
// ascending columns of a Columns layout.
type SparseRow struct {
	Indices []int
	Values  []float64
}

// SparseFromDense keeps the non-zero entries of dense.
func SparseFromDense(dense []float64) SparseRow {
	var row SparseRow
	for i, v := range dense {
		if v != 0 {
			row.Indices = append(row.Indices, i)
			row.Values = append(row.Values, v)
		}
	}
	return row
}

// NNZ returns the number of stored coefficients.
func (r SparseRow) NNZ() int { return len(r.Indices) }

// Get returns the coefficient of column col, zero when absent.
func (r SparseRow) Get(col int) float64 {
	i := sort.SearchInts(r.Indices, col)
	if i < len(r.Indices) && r.Indices[i] == col {
		return r.Values[i]
	}
	return 0
}

// Dense expands the row to the given width.
func (r SparseRow) Dense(width int) []float64 {
	out := make([]float64, width)
	for i, col := range r.Indices {
		out[col] = r.Values[i]
	}
	return out
}
