package l1colors

import (
	"math"

	"github.com/banshee-data/spotcall/internal/iss"
)

// CheckNaN verifies that NaN only appears in rounds or channels outside the
// use sets. A violation is returned as *iss.ColorNaNError naming the first
// offending entry and the total count.
func CheckNaN(c *Colors, useRounds, useChannels []int) error {
	usedRound := make([]bool, c.Rounds)
	for _, r := range useRounds {
		if r >= 0 && r < c.Rounds {
			usedRound[r] = true
		}
	}
	usedChannel := make([]bool, c.Channels)
	for _, ch := range useChannels {
		if ch >= 0 && ch < c.Channels {
			usedChannel[ch] = true
		}
	}

	var first *iss.ColorNaNError
	count := 0
	for s := 0; s < c.N; s++ {
		for r := 0; r < c.Rounds; r++ {
			if !usedRound[r] {
				continue
			}
			for ch := 0; ch < c.Channels; ch++ {
				if !usedChannel[ch] || !math.IsNaN(c.At(s, r, ch)) {
					continue
				}
				count++
				if first == nil {
					first = &iss.ColorNaNError{Spot: s, Round: r, Channel: ch}
				}
			}
		}
	}
	if first == nil {
		return nil
	}
	first.Count = count
	return first
}
