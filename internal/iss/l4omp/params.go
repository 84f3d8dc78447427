package l4omp

import (
	"math"

	"github.com/banshee-data/spotcall/internal/config"
	"github.com/banshee-data/spotcall/internal/iss"
)

// Params configures the matcher. DPNormShift is the value used directly in
// the score denominator; ParamsFromConfig scales the configured
// dp_norm_shift by sqrt(rounds).
type Params struct {
	DPThresh              float64
	Alpha                 float64
	Beta                  float64 // reported only
	MaxGenes              int
	WeightCoefFit         bool
	BackgroundWeightShift float64
	DPNormShift           float64

	// Track records the per-stage history in SpotFit.Track.
	Track bool
}

// DefaultParams returns the matcher defaults for a layout with nRounds used
// rounds.
func DefaultParams(nRounds int) Params {
	return ParamsFromConfig(config.EmptyCallingConfig(), nRounds)
}

// ParamsFromConfig builds matcher parameters from a calling config.
func ParamsFromConfig(cfg *config.CallingConfig, nRounds int) Params {
	return Params{
		DPThresh:              cfg.GetDPThresh(),
		Alpha:                 cfg.GetAlpha(),
		Beta:                  cfg.GetBeta(),
		MaxGenes:              cfg.GetMaxGenes(),
		WeightCoefFit:         cfg.GetWeightCoefFit(),
		BackgroundWeightShift: cfg.GetBackgroundWeightShift(),
		DPNormShift:           ScaleDPNormShift(cfg.GetDPNormShift(), nRounds),
	}
}

// ScaleDPNormShift converts a per-round dp_norm_shift into the shift applied
// to a code spanning nRounds rounds.
func ScaleDPNormShift(shift float64, nRounds int) float64 {
	return shift * math.Sqrt(float64(nRounds))
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case !(p.BackgroundWeightShift > 0) || math.IsInf(p.BackgroundWeightShift, 0):
		return &iss.ConfigurationError{Param: "background_weight_shift", Value: p.BackgroundWeightShift, Reason: "must be a positive finite number"}
	case p.DPThresh < 0 || math.IsNaN(p.DPThresh):
		return &iss.ConfigurationError{Param: "dp_thresh", Value: p.DPThresh, Reason: "must be non-negative"}
	case p.Alpha < 0 || math.IsNaN(p.Alpha):
		return &iss.ConfigurationError{Param: "alpha", Value: p.Alpha, Reason: "must be non-negative"}
	case p.Beta < 0 || math.IsNaN(p.Beta):
		return &iss.ConfigurationError{Param: "beta", Value: p.Beta, Reason: "must be non-negative"}
	case p.MaxGenes < 0:
		return &iss.ConfigurationError{Param: "max_genes", Value: p.MaxGenes, Reason: "must be non-negative"}
	case p.DPNormShift < 0 || math.IsNaN(p.DPNormShift):
		return &iss.ConfigurationError{Param: "dp_norm_shift", Value: p.DPNormShift, Reason: "must be non-negative"}
	}
	return nil
}
