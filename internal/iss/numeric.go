package iss

import (
	"math"
	"sort"
)

// Median returns the median of values, averaging the two central elements
// when len(values) is even. It returns NaN for an empty slice. values is not
// modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return 0.5 * (sorted[n/2-1] + sorted[n/2])
}

// RoundAny rounds x to the nearest multiple of base.
func RoundAny(x, base float64) float64 {
	if base == 0 {
		return x
	}
	return base * math.Round(x/base)
}

// Clip limits x to [lo, hi].
func Clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Hanning returns the symmetric Hann window of length m:
// w[n] = 0.5 - 0.5*cos(2*pi*n/(m-1)).
func Hanning(m int) []float64 {
	if m <= 0 {
		return nil
	}
	if m == 1 {
		return []float64{1}
	}
	w := make([]float64, m)
	for n := range w {
		w[n] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(n)/float64(m-1))
	}
	return w
}
