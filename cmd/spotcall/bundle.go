package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/banshee-data/spotcall/internal/iss/l1colors"
	"github.com/banshee-data/spotcall/internal/iss/l2codes"
	"github.com/banshee-data/spotcall/internal/iss/l5dedup"
	"github.com/banshee-data/spotcall/internal/iss/pipeline"
)

// colorValue decodes a JSON number, or null as NaN.
type colorValue float64

func (v *colorValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = colorValue(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = colorValue(f)
	return nil
}

type bundleSpot struct {
	YXZ    [3]float64     `json:"yxz"`
	Colors [][]colorValue `json:"colors"` // [round][channel], all rounds and channels
}

type bundleTile struct {
	Tile  int          `json:"tile"`
	Spots []bundleSpot `json:"spots"`
}

// bundle is the JSON input of a calling run.
type bundle struct {
	GeneNames          []string              `json:"gene_names"`
	BledCodes          [][][]float64         `json:"bled_codes"` // [gene][used round][used channel]
	UseRounds          []int                 `json:"use_rounds"`
	UseChannels        []int                 `json:"use_channels"`
	ColorNormFactor    [][]float64           `json:"color_norm_factor"` // [used round][used channel]
	MedianAbsIntensity float64               `json:"median_abs_intensity"`
	TileOrigins        map[string][3]float64 `json:"tile_origins"`
	TileCentre         [3]float64            `json:"tile_centre"`
	UseTiles           []int                 `json:"use_tiles"`
	Tiles              []bundleTile          `json:"tiles"`
}

func loadBundle(path string) (*bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var b bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse input %s: %w", path, err)
	}
	return &b, nil
}

// inputs converts the bundle into pipeline inputs and an in-memory colour
// source.
func (b *bundle) inputs() (pipeline.Inputs, pipeline.MemorySource, error) {
	var in pipeline.Inputs
	dict, err := l2codes.NewDictionary(b.GeneNames, b.BledCodes)
	if err != nil {
		return in, nil, err
	}

	var norm []float64
	for _, row := range b.ColorNormFactor {
		norm = append(norm, row...)
	}

	origins := make(map[int][3]float64, len(b.TileOrigins))
	for k, o := range b.TileOrigins {
		t, err := strconv.Atoi(k)
		if err != nil {
			return in, nil, fmt.Errorf("tile_origins key %q is not a tile index", k)
		}
		origins[t] = o
	}

	src := make(pipeline.MemorySource, len(b.Tiles))
	tiles := make([]pipeline.TileSpots, 0, len(b.Tiles))
	for _, bt := range b.Tiles {
		spots := make([][][]float64, len(bt.Spots))
		yxz := make([][3]float64, len(bt.Spots))
		for i, sp := range bt.Spots {
			yxz[i] = sp.YXZ
			spots[i] = make([][]float64, len(sp.Colors))
			for r, row := range sp.Colors {
				spots[i][r] = make([]float64, len(row))
				for c, v := range row {
					spots[i][r][c] = float64(v)
				}
			}
		}
		colors, err := l1colors.FromSpots(spots)
		if err != nil {
			return in, nil, fmt.Errorf("tile %d: %w", bt.Tile, err)
		}
		if _, dup := src[bt.Tile]; dup {
			return in, nil, fmt.Errorf("tile %d listed twice", bt.Tile)
		}
		src[bt.Tile] = colors
		tiles = append(tiles, pipeline.TileSpots{Tile: bt.Tile, YXZ: yxz})
	}

	in = pipeline.Inputs{
		Dictionary:         dict,
		UseRounds:          b.UseRounds,
		UseChannels:        b.UseChannels,
		ColorNormFactor:    norm,
		MedianAbsIntensity: b.MedianAbsIntensity,
		Tiles:              tiles,
		Geometry: l5dedup.Geometry{
			Origins:     origins,
			TileCentre:  b.TileCentre,
			ActiveTiles: b.UseTiles,
		},
	}
	return in, src, nil
}
