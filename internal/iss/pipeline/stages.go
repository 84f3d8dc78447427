package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/spotcall/internal/iss"
	"github.com/banshee-data/spotcall/internal/iss/l1colors"
)

// ColorSource supplies raw spot colours. Implementations read registered
// images and return one colour per requested coordinate, covering every
// round and channel of the experiment.
type ColorSource interface {
	SpotColors(ctx context.Context, tile int, yxz [][3]float64) (*l1colors.Colors, error)
}

// SpotSink persists the outcome of a run. The sink receives the keep mask
// alongside the records and must drop duplicates from every per-spot table
// it writes.
type SpotSink interface {
	SaveSpots(ctx context.Context, res *Result) error
}

// MemorySource is a ColorSource over colours already held in memory, keyed
// by tile. The colours of a tile must be in the same order as the spots
// requested for it.
type MemorySource map[int]*l1colors.Colors

// SpotColors implements ColorSource.
func (s MemorySource) SpotColors(ctx context.Context, tile int, yxz [][3]float64) (*l1colors.Colors, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := s[tile]
	if !ok {
		return nil, fmt.Errorf("no colours for tile %d", tile)
	}
	if c.N != len(yxz) {
		return nil, &iss.DimensionMismatchError{What: fmt.Sprintf("colours of tile %d", tile), Want: []int{len(yxz)}, Got: []int{c.N}}
	}
	return c, nil
}

// ApplyKeepMask returns the items whose keep entry is set, preserving order.
// It is used to filter parallel per-spot slices in lockstep.
func ApplyKeepMask[T any](items []T, keep []bool) ([]T, error) {
	if len(items) != len(keep) {
		return nil, &iss.DimensionMismatchError{What: "keep mask", Want: []int{len(items)}, Got: []int{len(keep)}}
	}
	out := make([]T, 0, len(items))
	for i, k := range keep {
		if k {
			out = append(out, items[i])
		}
	}
	return out, nil
}
