package l2codes

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/spotcall/internal/iss"
)

func TestBackground_UnitNorm(t *testing.T) {
	t.Parallel()
	b := NewBackground(4, 3)
	require.Equal(t, 3, b.Channels())
	for c := 0; c < 3; c++ {
		code := b.Code(c)
		assert.InDelta(t, 1.0, floats.Norm(code, 2), 1e-12)
		for r := 0; r < 4; r++ {
			for ch := 0; ch < 3; ch++ {
				if ch == c {
					assert.InDelta(t, 0.5, code[r*3+ch], 1e-12)
				} else {
					assert.Zero(t, code[r*3+ch])
				}
			}
		}
	}
}

func TestNewDictionary(t *testing.T) {
	t.Parallel()
	d, err := NewDictionary([]string{"a", "b"}, [][][]float64{
		{{1, 0}, {0, 1}},
		{{2, 2}, {0, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, d.NGenes())
	assert.Equal(t, 2, d.Rounds())
	assert.Equal(t, 2, d.Channels())
	assert.Equal(t, []float64{2, 2, 0, 0}, d.Code(1))
	assert.InDelta(t, 8.0, d.CodeNormSq(1), 1e-12)
	assert.Equal(t, "b", d.GeneName(1))
	assert.Equal(t, Columns{NGenes: 2, NChannels: 2}, d.Columns())
	assert.Equal(t, d.Background().Code(1), d.Column(3))
	assert.Equal(t, d.Code(0), d.Column(0))
}

func TestNewDictionary_DefaultNames(t *testing.T) {
	t.Parallel()
	d, err := NewDictionary(nil, [][][]float64{{{1}}, {{2}}})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"gene_0", "gene_1"}, d.GeneNames()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestNewDictionary_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		names   []string
		codes   [][][]float64
		wantDim bool
	}{
		{"empty", nil, nil, false},
		{"name count", []string{"a"}, [][][]float64{{{1}}, {{1}}}, true},
		{"ragged rounds", nil, [][][]float64{{{1}, {1}}, {{1}}}, true},
		{"ragged channels", nil, [][][]float64{{{1, 2}}, {{1}}}, true},
		{"nan", nil, [][][]float64{{{math.NaN()}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDictionary(tt.names, tt.codes)
			require.Error(t, err)
			var dimErr *iss.DimensionMismatchError
			var cfgErr *iss.ConfigurationError
			if tt.wantDim {
				assert.True(t, errors.As(err, &dimErr), "got %T", err)
			} else {
				assert.True(t, errors.As(err, &cfgErr), "got %T", err)
			}
		})
	}
}

func TestColumns(t *testing.T) {
	cols := Columns{NGenes: 3, NChannels: 2}
	assert.Equal(t, 5, cols.Width())
	assert.Equal(t, 4, cols.Background(1))
	assert.True(t, cols.IsBackground(3))
	assert.False(t, cols.IsBackground(2))
	names := []string{"x", "y", "z"}
	assert.Equal(t, "y", cols.Label(1, names))
	assert.Equal(t, "bg1", cols.Label(4, names))
}

func TestSparseRow(t *testing.T) {
	row := SparseFromDense([]float64{0, 1.5, 0, -2, 0})
	assert.Equal(t, []int{1, 3}, row.Indices)
	assert.Equal(t, 2, row.NNZ())
	assert.Equal(t, -2.0, row.Get(3))
	assert.Zero(t, row.Get(2))
	assert.Zero(t, row.Get(10))
	assert.Equal(t, []float64{0, 1.5, 0, -2, 0}, row.Dense(5))

	empty := SparseFromDense(make([]float64, 3))
	assert.Zero(t, empty.NNZ())
	assert.Equal(t, []float64{0, 0, 0}, empty.Dense(3))
}
