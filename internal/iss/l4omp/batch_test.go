package l4omp

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spotcall/internal/iss"
	"github.com/banshee-data/spotcall/internal/iss/l1colors"
)

func randomBatch(rng *rand.Rand, n, rounds, channels int) *l1colors.Colors {
	c := l1colors.NewColors(n, rounds, channels)
	for i := range c.Data {
		c.Data[i] = rng.NormFloat64()
	}
	c.Normalised = true
	return c
}

func TestFitBatch_MatchesFitSpot(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(11))
	d := randomDictionary(t, rng, 6, 4, 3)
	p := DefaultParams(4)
	p.MaxGenes = 4
	m := newMatcher(t, d, p)
	colors := randomBatch(rng, 53, 4, 3)

	want := make([]SpotFit, colors.N)
	for s := range want {
		want[s] = m.FitSpot(s, colors.Spot(s))
	}

	tests := []struct {
		name string
		opts BatchOptions
	}{
		{"defaults", BatchOptions{}},
		{"single worker", BatchOptions{BatchSize: 7, Workers: 1}},
		{"many chunks", BatchOptions{BatchSize: 1, Workers: 8}},
		{"one chunk", BatchOptions{BatchSize: 1000, Workers: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.FitBatch(context.Background(), colors, tt.opts)
			require.NoError(t, err)
			require.Len(t, got, colors.N)
			for s := range got {
				assert.Equal(t, want[s].Coefs, got[s].Coefs, "spot %d", s)
				assert.Equal(t, want[s].StopStage, got[s].StopStage, "spot %d", s)
				assert.Equal(t, want[s].GenesAdded, got[s].GenesAdded, "spot %d", s)
			}
		})
	}
}

func TestFitBatch_RejectsRawColours(t *testing.T) {
	t.Parallel()
	m := newMatcher(t, oneHotDictionary(t), testParams())
	raw := l1colors.NewColors(2, 2, 2)
	_, err := m.FitBatch(context.Background(), raw, BatchOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, iss.ErrNotNormalised))
	var cfgErr *iss.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestFitBatch_DimensionMismatch(t *testing.T) {
	t.Parallel()
	m := newMatcher(t, oneHotDictionary(t), testParams())
	c := l1colors.NewColors(2, 3, 2)
	c.Normalised = true
	_, err := m.FitBatch(context.Background(), c, BatchOptions{})
	var dimErr *iss.DimensionMismatchError
	assert.True(t, errors.As(err, &dimErr))
}

func TestFitBatch_Cancelled(t *testing.T) {
	t.Parallel()
	m := newMatcher(t, oneHotDictionary(t), testParams())
	c := l1colors.NewColors(10, 2, 2)
	c.Normalised = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.FitBatch(ctx, c, BatchOptions{BatchSize: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitBatch_BadSpotDoesNotAbort(t *testing.T) {
	t.Parallel()
	d := oneHotDictionary(t)
	m := newMatcher(t, d, testParams())
	c := l1colors.NewColors(3, 2, 2)
	c.Normalised = true
	copy(c.Spot(0), combine([]float64{0.5, 2}, d.Background().Code(0), d.Code(1)))
	copy(c.Spot(2), combine([]float64{1}, d.Code(2)))
	c.Set(1, 0, 0, 1e308)
	c.Set(1, 0, 1, -1e308)
	c.Spot(1)[3] = math.Inf(1)

	fits, err := m.FitBatch(context.Background(), c, BatchOptions{BatchSize: 1, Workers: 2})
	require.NoError(t, err)
	assert.NoError(t, fits[0].Err)
	assert.Error(t, fits[1].Err)
	assert.Zero(t, fits[1].Coefs.NNZ())
	assert.NoError(t, fits[2].Err)

	st := Summarise(fits)
	assert.Equal(t, 3, st.Spots)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.ByReason[StopError])
}
