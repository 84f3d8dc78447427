package l4omp

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/spotcall/internal/config"
	"github.com/banshee-data/spotcall/internal/iss"
	"github.com/banshee-data/spotcall/internal/iss/l1colors"
)

// BatchOptions bounds the batch driver. Zero values select defaults.
type BatchOptions struct {
	BatchSize int // spots per chunk, default 4096
	Workers   int // concurrent chunks, default GOMAXPROCS
}

// BatchOptionsFromConfig reads batch_size and workers.
func BatchOptionsFromConfig(cfg *config.CallingConfig) BatchOptions {
	return BatchOptions{BatchSize: cfg.GetBatchSize(), Workers: cfg.GetWorkers()}
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 4096
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// BatchStats summarises a FitBatch call.
type BatchStats struct {
	Spots    int
	Chunks   int
	Failed   int
	ByReason map[StopReason]int
	Elapsed  time.Duration
}

// Summarise counts stop reasons and failures in fits.
func Summarise(fits []SpotFit) BatchStats {
	st := BatchStats{Spots: len(fits), ByReason: make(map[StopReason]int)}
	for i := range fits {
		st.ByReason[fits[i].StopReason]++
		if fits[i].Err != nil {
			st.Failed++
		}
	}
	return st
}

// FitBatch fits every spot of a normalised batch and returns one SpotFit per
// spot, in input order. Spots are split into chunks of opts.BatchSize and the
// chunks run on at most opts.Workers goroutines. Per-spot failures are
// reported in SpotFit.Err and never abort the batch; the returned error is
// non-nil only for an invalid batch or a cancelled context.
func (m *Matcher) FitBatch(ctx context.Context, colors *l1colors.Colors, opts BatchOptions) ([]SpotFit, error) {
	if !colors.Normalised {
		return nil, fmt.Errorf("%w: %w", iss.ErrNotNormalised, &iss.ConfigurationError{
			Param:  "color_norm_factor",
			Value:  nil,
			Reason: "colours must be normalised before matching",
		})
	}
	if colors.Rounds != m.dict.Rounds() || colors.Channels != m.dict.Channels() {
		return nil, &iss.DimensionMismatchError{
			What: "spot colours vs bled codes",
			Want: []int{m.dict.Rounds(), m.dict.Channels()},
			Got:  []int{colors.Rounds, colors.Channels},
		}
	}
	opts = opts.withDefaults()
	start := time.Now()

	fits := make([]SpotFit, colors.N)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	chunks := 0
	for lo := 0; lo < colors.N; lo += opts.BatchSize {
		if gctx.Err() != nil {
			break
		}
		hi := lo + opts.BatchSize
		if hi > colors.N {
			hi = colors.N
		}
		chunks++
		g.Go(func() error {
			ws := newWorkspace(m)
			for s := lo; s < hi; s++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				fits[s] = m.fit(ws, s, colors.Spot(s))
			}
			iss.Tracef("fit chunk [%d,%d)", lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := Summarise(fits)
	st.Chunks = chunks
	st.Elapsed = time.Since(start)
	iss.Diagf("fitted %d spots in %d chunks (%d workers): threshold=%d repeat=%d max_genes=%d failed=%d in %v",
		st.Spots, st.Chunks, opts.Workers, st.ByReason[StopThreshold], st.ByReason[StopRepeat],
		st.ByReason[StopMaxGenes], st.Failed, st.Elapsed)
	return fits, nil
}
