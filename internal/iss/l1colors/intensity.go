package l1colors

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/spotcall/internal/iss"
)

// SpotIntensity returns, for each spot, the median over rounds of the
// maximum absolute colour across channels.
func SpotIntensity(c *Colors) []float64 {
	out := make([]float64, c.N)
	roundMax := make([]float64, c.Rounds)
	abs := make([]float64, c.Channels)
	for s := 0; s < c.N; s++ {
		spot := c.Spot(s)
		for r := 0; r < c.Rounds; r++ {
			for ch := 0; ch < c.Channels; ch++ {
				abs[ch] = math.Abs(spot[r*c.Channels+ch])
			}
			if c.Channels == 0 {
				roundMax[r] = 0
				continue
			}
			roundMax[r] = floats.Max(abs)
		}
		out[s] = iss.Median(roundMax)
	}
	return out
}

// MedianAbsIntensity returns the median SpotIntensity of the batch, used to
// derive an automatic initial intensity threshold.
func MedianAbsIntensity(c *Colors) float64 {
	return iss.Median(SpotIntensity(c))
}

// AutoIntensityThreshold computes
// clip(round_any(medianAbsIntensity*autoParam, precision), min, max).
func AutoIntensityThreshold(medianAbsIntensity, autoParam, precision, min, max float64) float64 {
	return iss.Clip(iss.RoundAny(medianAbsIntensity*autoParam, precision), min, max)
}

// AboveThreshold returns the indices of spots whose intensity exceeds thresh.
func AboveThreshold(intensity []float64, thresh float64) []int {
	keep := make([]int, 0, len(intensity))
	for i, v := range intensity {
		if v > thresh {
			keep = append(keep, i)
		}
	}
	return keep
}

// ResolveIntensityThreshold returns the threshold used by the pre-filter. A
// fixed value is clipped to [min, max] exactly like the automatic one.
func ResolveIntensityThreshold(auto bool, fixed, medianAbsIntensity, autoParam, precision, min, max float64) float64 {
	if auto {
		return AutoIntensityThreshold(medianAbsIntensity, autoParam, precision, min, max)
	}
	return iss.Clip(fixed, min, max)
}
