package l2codes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/spotcall/internal/iss"
)

// Dictionary is the immutable set of bled codes used for one calling session,
// together with the background codes of the same layout. It is safe for
// concurrent use by any number of fits.
type Dictionary struct {
	names    []string
	rounds   int
	channels int
	codes    []float64 // [gene][round][channel]
	normSq   []float64
	bg       *Background
}

// NewDictionary validates bled codes given as [gene][round][channel] and
// builds the dictionary. names may be nil, in which case genes are named by
// index.
func NewDictionary(names []string, codes [][][]float64) (*Dictionary, error) {
	if len(codes) == 0 {
		return nil, &iss.ConfigurationError{Param: "bled_codes", Value: 0, Reason: "at least one gene is required"}
	}
	if names != nil && len(names) != len(codes) {
		return nil, &iss.DimensionMismatchError{What: "gene names", Want: []int{len(codes)}, Got: []int{len(names)}}
	}
	rounds := len(codes[0])
	if rounds == 0 || len(codes[0][0]) == 0 {
		return nil, &iss.DimensionMismatchError{What: "bled code of gene 0", Want: []int{1, 1}, Got: []int{rounds, 0}}
	}
	channels := len(codes[0][0])

	g := len(codes)
	d := &Dictionary{
		names:    make([]string, g),
		rounds:   rounds,
		channels: channels,
		codes:    make([]float64, g*rounds*channels),
		normSq:   make([]float64, g),
		bg:       NewBackground(rounds, channels),
	}
	for gi, code := range codes {
		if len(code) != rounds {
			return nil, &iss.DimensionMismatchError{What: fmt.Sprintf("rounds of bled code %d", gi), Want: []int{rounds}, Got: []int{len(code)}}
		}
		dst := d.Code(gi)
		for r, row := range code {
			if len(row) != channels {
				return nil, &iss.DimensionMismatchError{What: fmt.Sprintf("channels of bled code %d round %d", gi, r), Want: []int{channels}, Got: []int{len(row)}}
			}
			for c, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, &iss.ConfigurationError{Param: "bled_codes", Value: v, Reason: fmt.Sprintf("gene %d round %d channel %d is not finite", gi, r, c)}
				}
			}
			copy(dst[r*channels:], row)
		}
		d.normSq[gi] = floats.Dot(dst, dst)
		if names != nil {
			d.names[gi] = names[gi]
		} else {
			d.names[gi] = fmt.Sprintf("gene_%d", gi)
		}
	}
	return d, nil
}

// NGenes returns G.
func (d *Dictionary) NGenes() int { return len(d.normSq) }

func (d *Dictionary) Rounds() int   { return d.rounds }
func (d *Dictionary) Channels() int { return d.channels }

// SpotSize returns rounds × channels.
func (d *Dictionary) SpotSize() int { return d.rounds * d.channels }

// GeneName returns the name of gene g.
func (d *Dictionary) GeneName(g int) string { return d.names[g] }

// GeneNames returns a copy of all gene names in index order.
func (d *Dictionary) GeneNames() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Code returns the R*C bled code of gene g. The slice aliases the dictionary
// and must not be modified.
func (d *Dictionary) Code(g int) []float64 {
	n := d.SpotSize()
	return d.codes[g*n : (g+1)*n : (g+1)*n]
}

// CodeNormSq returns Σ code_g².
func (d *Dictionary) CodeNormSq(g int) float64 { return d.normSq[g] }

// Background returns the background codes matching the dictionary layout.
func (d *Dictionary) Background() *Background { return d.bg }

// Columns returns the coefficient column layout of the session.
func (d *Dictionary) Columns() Columns {
	return Columns{NGenes: d.NGenes(), NChannels: d.channels}
}

// Column returns the code for coefficient column col: a gene code for
// col < G, otherwise the background code of channel col-G.
func (d *Dictionary) Column(col int) []float64 {
	if col < d.NGenes() {
		return d.Code(col)
	}
	return d.bg.Code(col - d.NGenes())
}
