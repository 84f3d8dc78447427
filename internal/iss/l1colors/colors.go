package l1colors

import (
	"fmt"
	"math"

	"github.com/banshee-data/spotcall/internal/iss"
)

// Colors is a batch of spot colour matrices stored row-major as
// (spot, round, channel).
type Colors struct {
	N        int
	Rounds   int
	Channels int
	Data     []float64

	// Normalised is set by Normalise. Only normalised batches may be matched.
	Normalised bool
}

// NewColors allocates a zeroed batch.
func NewColors(n, rounds, channels int) *Colors {
	return &Colors{
		N:        n,
		Rounds:   rounds,
		Channels: channels,
		Data:     make([]float64, n*rounds*channels),
	}
}

// FromSpots builds a batch from nested [spot][round][channel] slices.
func FromSpots(spots [][][]float64) (*Colors, error) {
	if len(spots) == 0 {
		return &Colors{}, nil
	}
	rounds := len(spots[0])
	channels := 0
	if rounds > 0 {
		channels = len(spots[0][0])
	}
	c := NewColors(len(spots), rounds, channels)
	for s, spot := range spots {
		if len(spot) != rounds {
			return nil, &iss.DimensionMismatchError{What: fmt.Sprintf("rounds of spot %d", s), Want: []int{rounds}, Got: []int{len(spot)}}
		}
		for r, row := range spot {
			if len(row) != channels {
				return nil, &iss.DimensionMismatchError{What: fmt.Sprintf("channels of spot %d round %d", s, r), Want: []int{channels}, Got: []int{len(row)}}
			}
			copy(c.Data[c.offset(s, r, 0):], row)
		}
	}
	return c, nil
}

// SpotSize is the number of values per spot (rounds × channels).
func (c *Colors) SpotSize() int { return c.Rounds * c.Channels }

func (c *Colors) offset(s, r, ch int) int {
	return (s*c.Rounds+r)*c.Channels + ch
}

// At returns the colour of spot s in round r, channel ch.
func (c *Colors) At(s, r, ch int) float64 { return c.Data[c.offset(s, r, ch)] }

// Set stores the colour of spot s in round r, channel ch.
func (c *Colors) Set(s, r, ch int, v float64) { c.Data[c.offset(s, r, ch)] = v }

// Spot returns the R*C slice of spot s. The slice aliases the batch.
func (c *Colors) Spot(s int) []float64 {
	n := c.SpotSize()
	return c.Data[s*n : (s+1)*n : (s+1)*n]
}

// Subset returns a copy holding only the spots listed in idx, in idx order.
func (c *Colors) Subset(idx []int) *Colors {
	out := NewColors(len(idx), c.Rounds, c.Channels)
	out.Normalised = c.Normalised
	for i, s := range idx {
		copy(out.Spot(i), c.Spot(s))
	}
	return out
}

// Select returns a copy restricted to the given rounds and channels, in the
// order listed.
func (c *Colors) Select(useRounds, useChannels []int) (*Colors, error) {
	for _, r := range useRounds {
		if r < 0 || r >= c.Rounds {
			return nil, fmt.Errorf("round %d out of range [0,%d)", r, c.Rounds)
		}
	}
	for _, ch := range useChannels {
		if ch < 0 || ch >= c.Channels {
			return nil, fmt.Errorf("channel %d out of range [0,%d)", ch, c.Channels)
		}
	}
	out := NewColors(c.N, len(useRounds), len(useChannels))
	out.Normalised = c.Normalised
	for s := 0; s < c.N; s++ {
		for i, r := range useRounds {
			for j, ch := range useChannels {
				out.Set(s, i, j, c.At(s, r, ch))
			}
		}
	}
	return out, nil
}

// Normalise divides every spot by normFactor ([rounds × channels], row-major)
// and returns a new batch marked Normalised.
func Normalise(c *Colors, normFactor []float64) (*Colors, error) {
	if c.Normalised {
		return nil, fmt.Errorf("colours already normalised")
	}
	if len(normFactor) != c.SpotSize() {
		return nil, &iss.DimensionMismatchError{What: "color_norm_factor", Want: []int{c.Rounds, c.Channels}, Got: []int{len(normFactor)}}
	}
	for i, f := range normFactor {
		if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &iss.ConfigurationError{Param: "color_norm_factor", Value: f, Reason: fmt.Sprintf("entry %d must be finite and non-zero", i)}
		}
	}
	out := NewColors(c.N, c.Rounds, c.Channels)
	n := c.SpotSize()
	for i, v := range c.Data {
		out.Data[i] = v / normFactor[i%n]
	}
	out.Normalised = true
	return out, nil
}
