package l3background

import (
	"math"

	"github.com/banshee-data/spotcall/internal/iss"
	"github.com/banshee-data/spotcall/internal/iss/l1colors"
	"github.com/banshee-data/spotcall/internal/iss/l2codes"
)

// Result holds the background fit of a batch.
type Result struct {
	// Coefs is [n × channels], row-major.
	Coefs    []float64
	Channels int
	// Residual is the colour batch with the fitted background subtracted.
	Residual *l1colors.Colors
}

// Coef returns the background coefficient of spot s, channel c.
func (r *Result) Coef(s, c int) float64 { return r.Coefs[s*r.Channels+c] }

// Remove fits the background of every spot in colors. The input is not
// modified.
func Remove(colors *l1colors.Colors, bg *l2codes.Background, shift float64) (*Result, error) {
	if err := checkShift(shift); err != nil {
		return nil, err
	}
	if colors.Rounds != bg.Rounds() || colors.Channels != bg.Channels() {
		return nil, &iss.DimensionMismatchError{
			What: "background codes",
			Want: []int{colors.Rounds, colors.Channels},
			Got:  []int{bg.Rounds(), bg.Channels()},
		}
	}
	c := bg.Channels()
	res := &Result{
		Coefs:    make([]float64, colors.N*c),
		Channels: c,
		Residual: l1colors.NewColors(colors.N, colors.Rounds, colors.Channels),
	}
	res.Residual.Normalised = colors.Normalised
	for s := 0; s < colors.N; s++ {
		FitSpot(colors.Spot(s), bg, shift, res.Coefs[s*c:(s+1)*c], res.Residual.Spot(s))
	}
	return res, nil
}

// FitSpot fits one spot colour x. Each background code b_c gets
//
//	coef_c = Σ w·x·b_c / Σ w·b_c²,  w = 1/(|x| + shift)²
//
// which is the joint weighted least squares solution because the codes have
// disjoint support. coefOut must have bg.Channels() entries and residualOut
// len(x); residualOut may alias x. shift must be positive.
func FitSpot(x []float64, bg *l2codes.Background, shift float64, coefOut, residualOut []float64) {
	n := len(x)
	var w [64]float64
	weights := w[:0]
	if n <= len(w) {
		weights = w[:n]
	} else {
		weights = make([]float64, n)
	}
	for i, v := range x {
		d := math.Abs(v) + shift
		weights[i] = 1 / (d * d)
	}
	for c := range coefOut {
		code := bg.Code(c)
		var num, den float64
		for i, b := range code {
			if b == 0 {
				continue
			}
			num += weights[i] * x[i] * b
			den += weights[i] * b * b
		}
		if den == 0 {
			coefOut[c] = 0
			continue
		}
		coefOut[c] = num / den
	}
	copy(residualOut, x)
	for c, coef := range coefOut {
		if coef == 0 {
			continue
		}
		code := bg.Code(c)
		for i, b := range code {
			residualOut[i] -= coef * b
		}
	}
}

func checkShift(shift float64) error {
	if !(shift > 0) || math.IsInf(shift, 0) {
		return &iss.ConfigurationError{Param: "background_weight_shift", Value: shift, Reason: "must be a positive finite number"}
	}
	return nil
}
