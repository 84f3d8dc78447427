package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/spotcall/internal/iss"
	"github.com/banshee-data/spotcall/internal/iss/storage/sqlite"
)

// StoreSink is a SpotSink backed by a sqlite SpotStore. Only records kept by
// duplicate resolution are written. RunID holds the ID of the last saved run.
type StoreSink struct {
	Store *sqlite.SpotStore
	RunID string
}

type paramsRecord struct {
	DPThresh              float64 `json:"dp_thresh"`
	Alpha                 float64 `json:"alpha"`
	Beta                  float64 `json:"beta"`
	MaxGenes              int     `json:"max_genes"`
	WeightCoefFit         bool    `json:"weight_coef_fit"`
	BackgroundWeightShift float64 `json:"background_weight_shift"`
	DPNormShift           float64 `json:"dp_norm_shift_scaled"`
}

// SaveSpots implements SpotSink.
func (s *StoreSink) SaveSpots(ctx context.Context, res *Result) error {
	p := res.Params
	params, err := json.Marshal(paramsRecord{
		DPThresh:              p.DPThresh,
		Alpha:                 p.Alpha,
		Beta:                  p.Beta,
		MaxGenes:              p.MaxGenes,
		WeightCoefFit:         p.WeightCoefFit,
		BackgroundWeightShift: p.BackgroundWeightShift,
		DPNormShift:           p.DPNormShift,
	})
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	spots := make([]sqlite.Spot, len(res.Records))
	for i, r := range res.Records {
		spots[i] = sqlite.Spot{
			Tile:       r.Tile,
			Y:          r.LocalYXZ[0],
			X:          r.LocalYXZ[1],
			Z:          r.LocalYXZ[2],
			Gene:       r.Gene,
			Score:      r.Score,
			Intensity:  r.Intensity,
			NGenes:     r.NGenes,
			StopStage:  r.StopStage,
			StopReason: r.StopReason.String(),
			Skipped:    r.Skipped,
			Failed:     r.Failed,
			Coefs:      r.Coefs,
		}
	}

	run, err := s.Store.SaveRun(ctx, sqlite.Run{
		GeneNames:       res.GeneNames,
		NChannels:       res.Columns.NChannels,
		ParamsJSON:      params,
		IntensityThresh: res.IntensityThresh,
		DuplicateRule:   res.Rule.String(),
	}, spots, res.Keep)
	if err != nil {
		return err
	}
	s.RunID = run.RunID
	iss.Diagf("saved run %s: %d spots", run.RunID, run.NSpots)
	return nil
}
