package filter

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/spotcall/internal/iss"
)

// StripHack replaces every column whose rows are all identical with the
// nearest column that is not, and returns the replaced column indices. image
// is modified in place.
func StripHack(image *mat.Dense) []int {
	r, c := image.Dims()
	var bad, good []int
	for j := 0; j < c; j++ {
		flat := true
		first := image.At(0, j)
		for i := 1; i < r; i++ {
			if image.At(i, j) != first {
				flat = false
				break
			}
		}
		if flat {
			bad = append(bad, j)
		} else {
			good = append(good, j)
		}
	}
	if len(good) == 0 {
		return bad
	}
	col := make([]float64, r)
	for _, j := range bad {
		nearest := good[0]
		for _, g := range good[1:] {
			if abs(g-j) < abs(nearest-j) {
				nearest = g
			}
		}
		mat.Col(col, nearest, image)
		image.SetCol(j, col)
	}
	return bad
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ExtractStats summarises a filtered, scaled tile image.
type ExtractStats struct {
	// AutoThresh is median(|image|) × the auto threshold multiplier.
	AutoThresh float64
	// HistCounts[i] counts pixels in [edges[i], edges[i+1]); the last bin
	// also includes its right edge.
	HistCounts []int
	// NClipPixels counts pixels above the maximum storable value.
	NClipPixels int
	// ClipScale is the scale that would have avoided clipping, or 0.
	ClipScale float64
}

// ExtractInfo computes ExtractStats for image.
func ExtractInfo(image *mat.Dense, autoThreshMultiplier float64, histBinEdges []float64, maxPixelValue, scale float64) (ExtractStats, error) {
	if len(histBinEdges) < 2 || !sort.Float64sAreSorted(histBinEdges) {
		return ExtractStats{}, fmt.Errorf("histogram bin edges must be sorted with at least two entries")
	}
	r, _ := image.Dims()
	var values []float64
	for i := 0; i < r; i++ {
		values = append(values, mat.Row(nil, i, image)...)
	}
	absValues := make([]float64, len(values))
	for i, v := range values {
		absValues[i] = math.Abs(v)
	}
	st := ExtractStats{AutoThresh: iss.Median(absValues) * autoThreshMultiplier}

	sort.Float64s(values)
	lo, hi := histBinEdges[0], histBinEdges[len(histBinEdges)-1]
	start := sort.SearchFloat64s(values, lo)
	end := sort.SearchFloat64s(values, hi)
	counts := make([]float64, len(histBinEdges)-1)
	if end > start {
		stat.Histogram(counts, histBinEdges, values[start:end], nil)
	}
	for i := end; i < len(values) && values[i] == hi; i++ {
		counts[len(counts)-1]++
	}
	st.HistCounts = make([]int, len(counts))
	for i, v := range counts {
		st.HistCounts[i] = int(v)
	}

	for i := len(values) - 1; i >= 0 && values[i] > maxPixelValue; i-- {
		st.NClipPixels++
	}
	if st.NClipPixels > 0 {
		st.ClipScale = scale * maxPixelValue / floats.Max(values)
	}
	return st, nil
}
