package l5dedup

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/spotcall/internal/config"
	"github.com/banshee-data/spotcall/internal/iss"
)

// Rule selects how a coordinate seen by several tiles is assigned.
type Rule int

const (
	// NearestCentre keeps a spot iff its tile has the nearest centre, in
	// global yx, among the active tiles. Equal distances go to the lowest
	// tile index.
	NearestCentre Rule = iota
	// LowestTile rounds global yxz to whole pixels and keeps, at each
	// coordinate, only the spots of the lowest tile index seen there.
	LowestTile
)

func (r Rule) String() string {
	switch r {
	case NearestCentre:
		return config.DuplicateRuleNearestCentre
	case LowestTile:
		return config.DuplicateRuleLowestTile
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// ParseRule maps a duplicate_rule name to a Rule.
func ParseRule(name string) (Rule, error) {
	switch name {
	case config.DuplicateRuleNearestCentre, "":
		return NearestCentre, nil
	case config.DuplicateRuleLowestTile:
		return LowestTile, nil
	}
	return 0, &iss.ConfigurationError{Param: "duplicate_rule", Value: name, Reason: "unknown rule"}
}

// RuleFromConfig reads duplicate_rule.
func RuleFromConfig(cfg *config.CallingConfig) (Rule, error) {
	return ParseRule(cfg.GetDuplicateRule())
}

// Spot is a detection in tile-local coordinates.
type Spot struct {
	Tile    int
	Y, X, Z float64
}

// Geometry describes the tiling. Origins maps every tile to its global
// (y, x, z) offset; TileCentre is the (y, x, z) centre of a tile in local
// coordinates.
type Geometry struct {
	Origins     map[int][3]float64
	TileCentre  [3]float64
	ActiveTiles []int
}

// Global returns the global yxz of s.
func (g Geometry) Global(s Spot) ([3]float64, error) {
	o, ok := g.Origins[s.Tile]
	if !ok {
		return [3]float64{}, &iss.DimensionMismatchError{What: fmt.Sprintf("tile origin for tile %d", s.Tile), Want: []int{3}, Got: []int{0}}
	}
	return [3]float64{s.Y + o[0], s.X + o[1], s.Z + o[2]}, nil
}

// Resolver computes keep masks for one tiling. It is read-only after
// construction.
type Resolver struct {
	geom Geometry
	rule Rule
	tree *kdtree.Tree
}

// NewResolver validates the geometry and prepares the rule.
func NewResolver(geom Geometry, rule Rule) (*Resolver, error) {
	if len(geom.ActiveTiles) == 0 {
		return nil, &iss.ConfigurationError{Param: "use_tiles", Value: geom.ActiveTiles, Reason: "at least one active tile is required"}
	}
	pts := make(centres, 0, len(geom.ActiveTiles))
	for _, t := range geom.ActiveTiles {
		o, ok := geom.Origins[t]
		if !ok {
			return nil, &iss.DimensionMismatchError{What: fmt.Sprintf("tile origin for active tile %d", t), Want: []int{3}, Got: []int{0}}
		}
		pts = append(pts, centre{tile: t, yx: [2]float64{o[0] + geom.TileCentre[0], o[1] + geom.TileCentre[1]}})
	}
	r := &Resolver{geom: geom, rule: rule}
	switch rule {
	case NearestCentre:
		r.tree = kdtree.New(pts, false)
	case LowestTile:
	default:
		return nil, &iss.ConfigurationError{Param: "duplicate_rule", Value: int(rule), Reason: "unknown rule"}
	}
	return r, nil
}

// Rule returns the resolver's rule.
func (r *Resolver) Rule() Rule { return r.rule }

// Owner returns the active tile responsible for global (y, x) under the
// NearestCentre rule.
func (r *Resolver) Owner(y, x float64) int {
	if r.tree == nil {
		return -1
	}
	return owner(r.tree, y, x)
}

// KeepMask returns keep[i] for every input spot. The mask depends only on the
// set of spots, not on their order.
func (r *Resolver) KeepMask(spots []Spot) ([]bool, error) {
	global := make([][3]float64, len(spots))
	for i, s := range spots {
		g, err := r.geom.Global(s)
		if err != nil {
			return nil, err
		}
		global[i] = g
	}

	keep := make([]bool, len(spots))
	switch r.rule {
	case NearestCentre:
		for i, s := range spots {
			keep[i] = owner(r.tree, global[i][0], global[i][1]) == s.Tile
		}
	case LowestTile:
		type pixel [3]int64
		lowest := make(map[pixel]int)
		keys := make([]pixel, len(spots))
		for i, s := range spots {
			k := pixel{int64(math.Round(global[i][0])), int64(math.Round(global[i][1])), int64(math.Round(global[i][2]))}
			keys[i] = k
			if t, ok := lowest[k]; !ok || s.Tile < t {
				lowest[k] = s.Tile
			}
		}
		for i, s := range spots {
			keep[i] = lowest[keys[i]] == s.Tile
		}
	}

	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	iss.Diagf("duplicate resolution (%s): kept %d of %d spots", r.rule, kept, len(spots))
	return keep, nil
}

// KeepMask is a convenience wrapper around NewResolver and Resolver.KeepMask.
func KeepMask(geom Geometry, rule Rule, spots []Spot) ([]bool, error) {
	r, err := NewResolver(geom, rule)
	if err != nil {
		return nil, err
	}
	return r.KeepMask(spots)
}

// ND2TileIndex returns the nd2 index of the tile with tiff index tiffIndex,
// matching by yx tile position. It returns -1 when no nd2 tile shares the
// position.
func ND2TileIndex(tiffIndex int, posND2, posTIFF [][2]int) int {
	if tiffIndex < 0 || tiffIndex >= len(posTIFF) {
		return -1
	}
	want := posTIFF[tiffIndex]
	for i, p := range posND2 {
		if p == want {
			return i
		}
	}
	return -1
}

// SortedTiles returns the tiles present in origins in ascending order.
func SortedTiles(origins map[int][3]float64) []int {
	tiles := make([]int, 0, len(origins))
	for t := range origins {
		tiles = append(tiles, t)
	}
	sort.Ints(tiles)
	return tiles
}
