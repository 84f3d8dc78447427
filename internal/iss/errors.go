package iss

import (
	"errors"
	"fmt"
)

// ErrNotNormalised is returned when raw spot colours reach the matcher
// without color_norm_factor having been applied.
var ErrNotNormalised = errors.New("spot colours have not been normalised")

// ConfigurationError reports a missing or invalid numeric parameter.
type ConfigurationError struct {
	Param  string
	Value  interface{}
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%v: %s", e.Param, e.Value, e.Reason)
}

// DimensionMismatchError reports a shape disagreement between the dictionary,
// spot colours or tile geometry.
type DimensionMismatchError struct {
	What string
	Want []int
	Got  []int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch in %s: want %v, got %v", e.What, e.Want, e.Got)
}

// DegenerateFitError reports a weighted least squares system that could not
// be solved for a single spot, or one that produced non-finite coefficients.
type DegenerateFitError struct {
	Spot   int
	Reason string
}

func (e *DegenerateFitError) Error() string {
	return fmt.Sprintf("degenerate fit for spot %d: %s", e.Spot, e.Reason)
}

// ColorNaNError reports a not-a-number colour outside the masked rounds and
// channels. It aborts a calling run.
type ColorNaNError struct {
	Spot    int
	Round   int
	Channel int
	Count   int
}

func (e *ColorNaNError) Error() string {
	return fmt.Sprintf("spot colours contain %d unexpected NaN values (first at spot %d, round %d, channel %d); "+
		"NaN is only allowed in rounds/channels that are not in use", e.Count, e.Spot, e.Round, e.Channel)
}
