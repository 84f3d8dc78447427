package l2codes

import "math"

// Background holds one code per channel. The code for channel c is 1 in every
// round of channel c and 0 elsewhere, scaled to unit L2 norm.
type Background struct {
	rounds   int
	channels int
	codes    []float64 // [channel][round][channel]
}

// NewBackground builds the background codes for a rounds × channels layout.
func NewBackground(rounds, channels int) *Background {
	b := &Background{
		rounds:   rounds,
		channels: channels,
		codes:    make([]float64, channels*rounds*channels),
	}
	if rounds == 0 {
		return b
	}
	v := 1 / math.Sqrt(float64(rounds))
	for c := 0; c < channels; c++ {
		code := b.Code(c)
		for r := 0; r < rounds; r++ {
			code[r*channels+c] = v
		}
	}
	return b
}

// Rounds returns the number of rounds of each code.
func (b *Background) Rounds() int { return b.rounds }

// Channels returns the number of background codes.
func (b *Background) Channels() int { return b.channels }

// Code returns the R*C code of channel c. The slice aliases the background and
// must not be modified.
func (b *Background) Code(c int) []float64 {
	n := b.rounds * b.channels
	return b.codes[c*n : (c+1)*n : (c+1)*n]
}
