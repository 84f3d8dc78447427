package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/spotcall/internal/config"
	"github.com/banshee-data/spotcall/internal/iss"
	"github.com/banshee-data/spotcall/internal/iss/l1colors"
	"github.com/banshee-data/spotcall/internal/iss/l2codes"
	"github.com/banshee-data/spotcall/internal/iss/l4omp"
	"github.com/banshee-data/spotcall/internal/iss/l5dedup"
)

// TileSpots lists the detections of one tile in tile-local (y, x, z).
type TileSpots struct {
	Tile int
	YXZ  [][3]float64
}

// Inputs is everything a calling run reads. RunOMP does not modify it.
type Inputs struct {
	// Dictionary holds bled codes over the used rounds and channels.
	Dictionary *l2codes.Dictionary

	UseRounds   []int
	UseChannels []int
	// ColorNormFactor is [len(UseRounds) × len(UseChannels)], row-major.
	ColorNormFactor []float64

	// MedianAbsIntensity feeds the automatic intensity threshold. Zero means
	// it is computed from the spots of this run.
	MedianAbsIntensity float64

	Tiles    []TileSpots
	Geometry l5dedup.Geometry

	// Config may be nil, in which case defaults apply.
	Config *config.CallingConfig
}

// SpotRecord is the per-spot output row.
type SpotRecord struct {
	Tile     int
	LocalYXZ [3]float64

	Gene       int // -1 when no gene was accepted
	Score      float64
	Intensity  float64
	NGenes     int
	StopStage  int
	StopReason l4omp.StopReason

	// Skipped marks spots below the intensity threshold. They are never
	// fitted and carry an empty coefficient row.
	Skipped bool
	// Failed marks spots whose fit returned an error.
	Failed bool

	Coefs l2codes.SparseRow
}

// Result is the explicit output of RunOMP.
type Result struct {
	Columns   l2codes.Columns
	GeneNames []string

	// Records holds one entry per input spot, tiles in input order. Keep is
	// the duplicate resolution mask over Records.
	Records []SpotRecord
	Keep    []bool

	IntensityThresh float64
	Params          l4omp.Params
	Rule            l5dedup.Rule
	Stats           l4omp.BatchStats
}

// Kept returns the records that survived duplicate resolution.
func (r *Result) Kept() []SpotRecord {
	out, err := ApplyKeepMask(r.Records, r.Keep)
	if err != nil {
		return nil
	}
	return out
}

func (in *Inputs) validate() error {
	if in.Dictionary == nil {
		return &iss.ConfigurationError{Param: "bled_codes", Value: nil, Reason: "a dictionary is required"}
	}
	if len(in.UseRounds) != in.Dictionary.Rounds() || len(in.UseChannels) != in.Dictionary.Channels() {
		return &iss.DimensionMismatchError{
			What: "use_rounds/use_channels vs bled codes",
			Want: []int{in.Dictionary.Rounds(), in.Dictionary.Channels()},
			Got:  []int{len(in.UseRounds), len(in.UseChannels)},
		}
	}
	if len(in.Tiles) == 0 {
		return &iss.ConfigurationError{Param: "use_tiles", Value: 0, Reason: "at least one tile with spots is required"}
	}
	return nil
}

// RunOMP calls genes on every spot of every tile.
//
// For each tile the raw colours are checked for unexpected NaN, restricted
// to the used rounds and channels and normalised. Spots at or below the
// intensity threshold are skipped; the rest are matched with OMP. Duplicate
// resolution runs once every tile has been matched. When sink is non-nil the
// result is passed to it before returning.
func RunOMP(ctx context.Context, in Inputs, src ColorSource, sink SpotSink) (*Result, error) {
	start := time.Now()
	if err := in.validate(); err != nil {
		return nil, err
	}
	cfg := in.Config
	if cfg == nil {
		cfg = config.EmptyCallingConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	params := l4omp.ParamsFromConfig(cfg, len(in.UseRounds))
	matcher, err := l4omp.NewMatcher(in.Dictionary, params)
	if err != nil {
		return nil, err
	}
	rule, err := l5dedup.RuleFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	geom := in.Geometry
	if len(geom.ActiveTiles) == 0 {
		geom.ActiveTiles = l5dedup.SortedTiles(geom.Origins)
	}
	resolver, err := l5dedup.NewResolver(geom, rule)
	if err != nil {
		return nil, err
	}

	colors, records, err := gatherColors(ctx, in, src)
	if err != nil {
		iss.Opsf("calling run aborted: %v", err)
		return nil, err
	}

	intensity := l1colors.SpotIntensity(colors)
	medianAbs := in.MedianAbsIntensity
	if medianAbs == 0 && len(intensity) > 0 {
		medianAbs = iss.Median(intensity)
	}
	it := cfg.GetInitialIntensityThresh()
	thresh := l1colors.ResolveIntensityThreshold(it.Auto, it.Value, medianAbs,
		cfg.GetInitialIntensityThreshAutoParam(), cfg.GetInitialIntensityPrecision(),
		cfg.GetInitialIntensityThreshMin(), cfg.GetInitialIntensityThreshMax())
	fitIdx := l1colors.AboveThreshold(intensity, thresh)
	iss.Diagf("intensity threshold %.4g (auto=%t, median_abs=%.4g): fitting %d of %d spots",
		thresh, it.Auto, medianAbs, len(fitIdx), colors.N)

	fits, err := matcher.FitBatch(ctx, colors.Subset(fitIdx), l4omp.BatchOptionsFromConfig(cfg))
	if err != nil {
		iss.Opsf("calling run aborted: %v", err)
		return nil, err
	}

	for i := range records {
		records[i].Intensity = intensity[i]
		records[i].Gene = -1
		records[i].Skipped = true
	}
	for i, s := range fitIdx {
		f := &fits[i]
		rec := &records[s]
		rec.Skipped = false
		rec.Coefs = f.Coefs
		rec.NGenes = f.NGenes
		rec.StopStage = f.StopStage
		rec.StopReason = f.StopReason
		rec.Failed = f.Err != nil
		if f.Err != nil {
			iss.Tracef("spot %d (tile %d): %v", s, rec.Tile, f.Err)
			continue
		}
		rec.Gene, rec.Score = f.Gene()
	}

	spots := make([]l5dedup.Spot, len(records))
	for i, r := range records {
		spots[i] = l5dedup.Spot{Tile: r.Tile, Y: r.LocalYXZ[0], X: r.LocalYXZ[1], Z: r.LocalYXZ[2]}
	}
	keep, err := resolver.KeepMask(spots)
	if err != nil {
		return nil, err
	}

	stats := l4omp.Summarise(fits)
	stats.Elapsed = time.Since(start)
	res := &Result{
		Columns:         matcher.Columns(),
		GeneNames:       in.Dictionary.GeneNames(),
		Records:         records,
		Keep:            keep,
		IntensityThresh: thresh,
		Params:          params,
		Rule:            rule,
		Stats:           stats,
	}

	if sink != nil {
		if err := sink.SaveSpots(ctx, res); err != nil {
			iss.Opsf("saving calling run failed: %v", err)
			return nil, fmt.Errorf("save spots: %w", err)
		}
	}
	iss.Opsf("called %d spots over %d tiles (%d fitted, %d failed, %d kept) in %v",
		len(records), len(in.Tiles), len(fitIdx), stats.Failed, len(res.Kept()), stats.Elapsed)
	return res, nil
}

// gatherColors reads, checks and normalises the colours of every tile and
// concatenates them in tile order. The returned records carry only the
// spot positions.
func gatherColors(ctx context.Context, in Inputs, src ColorSource) (*l1colors.Colors, []SpotRecord, error) {
	type part struct {
		spots  TileSpots
		colors *l1colors.Colors
	}
	parts := make([]part, 0, len(in.Tiles))
	total := 0
	for _, ts := range in.Tiles {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		raw, err := src.SpotColors(ctx, ts.Tile, ts.YXZ)
		if err != nil {
			return nil, nil, fmt.Errorf("tile %d: %w", ts.Tile, err)
		}
		if raw.N != len(ts.YXZ) {
			return nil, nil, &iss.DimensionMismatchError{What: fmt.Sprintf("colours of tile %d", ts.Tile), Want: []int{len(ts.YXZ)}, Got: []int{raw.N}}
		}
		if raw.N == 0 {
			continue
		}
		if err := l1colors.CheckNaN(raw, in.UseRounds, in.UseChannels); err != nil {
			return nil, nil, fmt.Errorf("tile %d: %w", ts.Tile, err)
		}
		used, err := raw.Select(in.UseRounds, in.UseChannels)
		if err != nil {
			return nil, nil, fmt.Errorf("tile %d: %w", ts.Tile, err)
		}
		norm, err := l1colors.Normalise(used, in.ColorNormFactor)
		if err != nil {
			return nil, nil, fmt.Errorf("tile %d: %w", ts.Tile, err)
		}
		parts = append(parts, part{spots: ts, colors: norm})
		total += norm.N
		iss.Tracef("tile %d: %d spots", ts.Tile, norm.N)
	}

	out := l1colors.NewColors(total, len(in.UseRounds), len(in.UseChannels))
	out.Normalised = true
	records := make([]SpotRecord, 0, total)
	off := 0
	for _, p := range parts {
		copy(out.Data[off:], p.colors.Data)
		off += len(p.colors.Data)
		for _, yxz := range p.spots.YXZ {
			records = append(records, SpotRecord{Tile: p.spots.Tile, LocalYXZ: yxz})
		}
	}
	return out, records, nil
}
