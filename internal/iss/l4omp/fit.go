package l4omp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/spotcall/internal/iss"
	"github.com/banshee-data/spotcall/internal/iss/l2codes"
	"github.com/banshee-data/spotcall/internal/iss/l3background"
)

// StopReason records why a spot reached TERMINAL.
type StopReason int

const (
	// StopNone marks a spot that was never fitted (filtered out upstream).
	StopNone StopReason = iota
	// StopThreshold: the best remaining score was below dp_thresh.
	StopThreshold
	// StopRepeat: the best scoring gene was already active.
	StopRepeat
	// StopMaxGenes: max_genes genes were accepted.
	StopMaxGenes
	// StopError: the fit failed; SpotFit.Err is set.
	StopError
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopThreshold:
		return "threshold"
	case StopRepeat:
		return "repeat"
	case StopMaxGenes:
		return "max_genes"
	case StopError:
		return "error"
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

// SpotFit is the outcome of matching one spot.
type SpotFit struct {
	// Coefs is the non-zero coefficient row over l2codes.Columns.
	Coefs l2codes.SparseRow
	// GenesAdded lists accepted genes in acceptance order, with the score
	// each had when accepted.
	GenesAdded []int
	Scores     []float64
	NGenes     int
	// StopStage is 2 + NGenes for a completed fit.
	StopStage  int
	StopReason StopReason
	// LastDotProduct is the score of the final candidate examined.
	LastDotProduct float64
	Track          *Track
	Err            error
}

// Gene returns the active gene with the largest coefficient and the score it
// was accepted with, or (-1, 0) when no gene was accepted.
func (f *SpotFit) Gene() (int, float64) {
	best, bestCoef, score := -1, math.Inf(-1), 0.0
	for i, g := range f.GenesAdded {
		if c := f.Coefs.Get(g); c > bestCoef {
			best, bestCoef, score = g, c, f.Scores[i]
		}
	}
	return best, score
}

// Stage is one entry of a Track.
type Stage struct {
	Residual     []float64
	Coefs        []float64 // dense, width G+C
	GeneAdded    int       // -1 for stages 0 and 1
	DotProduct   float64
	ResidualNorm float64
}

// Track is the per-stage history of one fit.
type Track struct {
	Stages          []Stage
	BackgroundCoefs []float64
}

func (t *Track) record(residual, coefs []float64, gene int, dp float64) {
	if t == nil {
		return
	}
	st := Stage{
		Residual:     append([]float64(nil), residual...),
		Coefs:        append([]float64(nil), coefs...),
		GeneAdded:    gene,
		DotProduct:   dp,
		ResidualNorm: floats.Norm(residual, 2),
	}
	t.Stages = append(t.Stages, st)
}

// Matcher fits spots against one dictionary. It holds only immutable state
// and is safe for concurrent use.
type Matcher struct {
	dict      *l2codes.Dictionary
	cols      l2codes.Columns
	params    Params
	scoreNorm []float64 // 1/sqrt(Σcode² + dp_norm_shift²)
}

// NewMatcher validates params and precomputes the score normalisers.
func NewMatcher(dict *l2codes.Dictionary, params Params) (*Matcher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	m := &Matcher{
		dict:      dict,
		cols:      dict.Columns(),
		params:    params,
		scoreNorm: make([]float64, dict.NGenes()),
	}
	shift2 := params.DPNormShift * params.DPNormShift
	for g := range m.scoreNorm {
		d := math.Sqrt(dict.CodeNormSq(g) + shift2)
		if d > 0 {
			m.scoreNorm[g] = 1 / d
		}
	}
	return m, nil
}

// Params returns the matcher parameters.
func (m *Matcher) Params() Params { return m.params }

// Columns returns the coefficient layout of every SpotFit.
func (m *Matcher) Columns() l2codes.Columns { return m.cols }

// Score returns the normalised dot product of residual with gene g.
func (m *Matcher) Score(residual []float64, g int) float64 {
	return floats.Dot(residual, m.dict.Code(g)) * m.scoreNorm[g]
}

// FitSpot runs the matcher on one normalised spot colour. spot only labels
// errors.
func (m *Matcher) FitSpot(spot int, color []float64) SpotFit {
	return m.fit(newWorkspace(m), spot, color)
}

// workspace holds per-worker scratch buffers.
type workspace struct {
	residual []float64
	weights  []float64
	coefs    []float64
	bgCoef   []float64
	active   []int
	isActive []bool
}

func newWorkspace(m *Matcher) *workspace {
	n := m.dict.SpotSize()
	return &workspace{
		residual: make([]float64, n),
		weights:  make([]float64, n),
		coefs:    make([]float64, m.cols.Width()),
		bgCoef:   make([]float64, m.cols.NChannels),
		active:   make([]int, 0, m.params.MaxGenes),
		isActive: make([]bool, m.dict.NGenes()),
	}
}

func (ws *workspace) reset() {
	for i := range ws.coefs {
		ws.coefs[i] = 0
	}
	for _, g := range ws.active {
		ws.isActive[g] = false
	}
	ws.active = ws.active[:0]
}

func failed(err error) SpotFit {
	return SpotFit{StopReason: StopError, Err: err}
}

func (m *Matcher) fit(ws *workspace, spot int, color []float64) SpotFit {
	ws.reset()
	n := m.dict.SpotSize()
	if len(color) != n {
		return failed(&iss.DimensionMismatchError{
			What: fmt.Sprintf("colour of spot %d", spot),
			Want: []int{m.dict.Rounds(), m.dict.Channels()},
			Got:  []int{len(color)},
		})
	}
	for _, v := range color {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return failed(&iss.DegenerateFitError{Spot: spot, Reason: "colour is not finite"})
		}
	}

	var track *Track
	if m.params.Track {
		track = &Track{}
	}

	// INIT
	copy(ws.residual, color)
	track.record(ws.residual, ws.coefs, -1, 0)

	// BACKGROUND_FIT
	l3background.FitSpot(color, m.dict.Background(), m.params.BackgroundWeightShift, ws.bgCoef, ws.residual)
	for c, v := range ws.bgCoef {
		ws.coefs[m.cols.Background(c)] = v
	}
	track.record(ws.residual, ws.coefs, -1, 0)
	if track != nil {
		track.BackgroundCoefs = append([]float64(nil), ws.bgCoef...)
	}

	// ITERATE
	res := SpotFit{}
	for {
		if len(ws.active) >= m.params.MaxGenes {
			res.StopReason = StopMaxGenes
			break
		}
		best, bestScore := m.bestGene(ws.residual)
		res.LastDotProduct = bestScore
		if ws.isActive[best] {
			res.StopReason = StopRepeat
			break
		}
		if math.Abs(bestScore) < m.params.DPThresh {
			res.StopReason = StopThreshold
			break
		}

		if m.params.WeightCoefFit {
			for i, r := range ws.residual {
				ws.weights[i] = math.Pow(math.Abs(r)+m.params.BackgroundWeightShift, -m.params.Alpha)
			}
		} else {
			for i := range ws.weights {
				ws.weights[i] = 1
			}
		}
		ws.active = append(ws.active, best)
		ws.isActive[best] = true
		res.GenesAdded = append(res.GenesAdded, best)
		res.Scores = append(res.Scores, bestScore)

		if err := m.refit(ws, spot, color); err != nil {
			return SpotFit{
				GenesAdded:     res.GenesAdded,
				Scores:         res.Scores,
				StopReason:     StopError,
				LastDotProduct: res.LastDotProduct,
				Track:          track,
				Err:            err,
			}
		}
		track.record(ws.residual, ws.coefs, best, bestScore)
	}

	// TERMINAL
	res.NGenes = len(ws.active)
	res.StopStage = 2 + res.NGenes
	res.Coefs = l2codes.SparseFromDense(ws.coefs)
	res.Track = track
	return res
}

// bestGene returns the gene with the largest |score|, lowest index on ties.
func (m *Matcher) bestGene(residual []float64) (int, float64) {
	best, bestScore := 0, m.Score(residual, 0)
	for g := 1; g < m.dict.NGenes(); g++ {
		if s := m.Score(residual, g); math.Abs(s) > math.Abs(bestScore) {
			best, bestScore = g, s
		}
	}
	return best, bestScore
}
