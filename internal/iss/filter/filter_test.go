package filter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func sum(m mat.Matrix) float64 {
	r, c := m.Dims()
	var s float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			s += m.At(i, j)
		}
	}
	return s
}

func assertDenseNear(t *testing.T, want, got mat.Matrix, tol float64) {
	t.Helper()
	if !mat.EqualApprox(want, got, tol) {
		t.Errorf("matrices differ:\nwant\n%v\ngot\n%v", mat.Formatted(want), mat.Formatted(got))
	}
}

func TestPaddingIndex(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		pad  Padding
		in   int
		want int
		ok   bool
	}{
		{"inside", Padding{}, 1, 1, true},
		{"constant", Padding{Value: 3}, -1, 0, false},
		{"symmetric before", Padding{Mode: PadSymmetric}, -1, 0, true},
		{"symmetric before 2", Padding{Mode: PadSymmetric}, -2, 1, true},
		{"symmetric after", Padding{Mode: PadSymmetric}, 3, 2, true},
		{"symmetric after 2", Padding{Mode: PadSymmetric}, 4, 1, true},
		{"edge", Padding{Mode: PadEdge}, -5, 0, true},
		{"edge after", Padding{Mode: PadEdge}, 7, 2, true},
		{"wrap", Padding{Mode: PadWrap}, -1, 2, true},
		{"wrap after", Padding{Mode: PadWrap}, 4, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.pad.index(tt.in, 3)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	_, err := ParsePadding("mirror", 0)
	assert.Error(t, err)
	p, err := ParsePadding("wrap", 0)
	require.NoError(t, err)
	assert.Equal(t, PadWrap, p.Mode)
}

func TestFtrans2(t *testing.T) {
	t.Parallel()
	h, err := Ftrans2([]float64{0.25, 0.5, 0.25}, nil)
	require.NoError(t, err)
	want := mat.NewDense(3, 3, []float64{
		0.0625, 0.125, 0.0625,
		0.125, 0.25, 0.125,
		0.0625, 0.125, 0.0625,
	})
	assertDenseNear(t, want, h, 1e-12)

	b := []float64{0.1, 0.2, 0.4, 0.2, 0.1}
	h, err = Ftrans2(b, nil)
	require.NoError(t, err)
	r, c := h.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 5, c)
	assert.InDelta(t, floats.Sum(b), sum(h), 1e-12)

	_, err = Ftrans2([]float64{1, 2}, nil)
	assert.Error(t, err)
	_, err = Ftrans2([]float64{1, 2, 1}, mat.NewDense(3, 2, nil))
	assert.Error(t, err)
}

func TestHanningDiff(t *testing.T) {
	t.Parallel()
	h, err := HanningDiff(1, 3)
	require.NoError(t, err)
	r, c := h.Dims()
	require.Equal(t, 7, r)
	require.Equal(t, 7, c)
	assert.InDelta(t, 0, sum(h), 1e-12)
	for i := 0; i < 7; i++ {
		for j := 0; j < 7; j++ {
			assert.InDelta(t, h.At(i, j), h.At(j, i), 1e-12)
			assert.InDelta(t, h.At(i, j), h.At(6-i, j), 1e-12)
		}
	}

	_, err = HanningDiff(3, 3)
	assert.Error(t, err)
	_, err = HanningDiff(-1, 3)
	assert.Error(t, err)
}

func TestEnsureOddKernel(t *testing.T) {
	t.Parallel()
	k := mat.NewDense(2, 2, []float64{5, 4, 3, 1})
	start := EnsureOddKernel(k, true)
	assert.True(t, mat.Equal(mat.NewDense(3, 3, []float64{0, 0, 0, 0, 5, 4, 0, 3, 1}), start))
	end := EnsureOddKernel(k, false)
	assert.True(t, mat.Equal(mat.NewDense(3, 3, []float64{5, 4, 0, 3, 1, 0, 0, 0, 0}), end))

	odd := mat.NewDense(3, 1, []float64{1, 2, 3})
	assert.Same(t, odd, EnsureOddKernel(odd, true))
	mixed := EnsureOddKernel(mat.NewDense(1, 2, []float64{1, 2}), false)
	assert.True(t, mat.Equal(mat.NewDense(1, 3, []float64{1, 2, 0}), mixed))
}

func TestConvolve2D(t *testing.T) {
	t.Parallel()
	image := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	id := mat.NewDense(3, 3, []float64{0, 0, 0, 0, 1, 0, 0, 0, 0})
	assert.True(t, mat.Equal(image, Convolve2D(image, id)))

	shift := mat.NewDense(3, 3, []float64{0, 0, 0, 0, 0, 1, 0, 0, 0})
	want := mat.NewDense(2, 3, []float64{1, 1, 2, 4, 4, 5})
	assert.True(t, mat.Equal(want, Convolve2D(image, shift)))
}

func TestImfilter(t *testing.T) {
	t.Parallel()
	image := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	shift := mat.NewDense(3, 3, []float64{0, 0, 0, 0, 0, 1, 0, 0, 0})
	tests := []struct {
		name string
		pad  Padding
		mode FilterMode
		want []float64
	}{
		{"corr zero", Padding{}, Correlate, []float64{2, 3, 0, 5, 6, 0}},
		{"corr constant", Padding{Value: 9}, Correlate, []float64{2, 3, 9, 5, 6, 9}},
		{"corr edge", Padding{Mode: PadEdge}, Correlate, []float64{2, 3, 3, 5, 6, 6}},
		{"corr wrap", Padding{Mode: PadWrap}, Correlate, []float64{2, 3, 1, 5, 6, 4}},
		{"corr symmetric", Padding{Mode: PadSymmetric}, Correlate, []float64{2, 3, 3, 5, 6, 6}},
		{"conv zero", Padding{}, Convolve, []float64{0, 1, 2, 0, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Imfilter(image, shift, tt.pad, tt.mode)
			assert.True(t, mat.Equal(mat.NewDense(2, 3, tt.want), got), "got\n%v", mat.Formatted(got))
		})
	}
}

func TestImfilter_MatchesConvolve2D(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	image := mat.NewDense(6, 5, nil)
	kernel := mat.NewDense(3, 3, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < 5; j++ {
			image.Set(i, j, rng.Float64())
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			kernel.Set(i, j, rng.NormFloat64())
		}
	}
	assertDenseNear(t, Convolve2D(image, kernel), Imfilter(image, kernel, Padding{Mode: PadEdge}, Convolve), 1e-12)
}

func TestDilate(t *testing.T) {
	t.Parallel()
	image := mat.NewDense(5, 5, nil)
	image.Set(2, 2, 1)
	ones := mat.NewDense(3, 3, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1})
	got, err := Dilate(image, ones)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			want := 0.0
			if i >= 1 && i <= 3 && j >= 1 && j <= 3 {
				want = 1
			}
			assert.Equal(t, want, got.At(i, j), "(%d,%d)", i, j)
		}
	}

	neg := mat.NewDense(3, 3, []float64{-1, -1, -1, -1, -1, -1, -1, -1, -1})
	got, err = Dilate(neg, ones)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.At(0, 0), "zero padding reaches the border")
	assert.Equal(t, -1.0, got.At(1, 1))

	_, err = Dilate(image, mat.NewDense(1, 1, []float64{2}))
	assert.Error(t, err)
}

func TestTopHat(t *testing.T) {
	t.Parallel()
	image := mat.NewDense(5, 5, nil)
	for i := range image.RawMatrix().Data {
		image.RawMatrix().Data[i] = 2
	}
	image.Set(2, 2, 5)
	ones := mat.NewDense(3, 3, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1})
	got, err := TopHat(image, ones)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			want := 0.0
			if i == 2 && j == 2 {
				want = 3
			}
			assert.InDelta(t, want, got.At(i, j), 1e-12, "(%d,%d)", i, j)
		}
	}

	_, err = TopHat(image, mat.NewDense(2, 2, []float64{1, 1, 1, 1}))
	assert.Error(t, err)
	_, err = TopHat(image, mat.NewDense(1, 1, []float64{0.5}))
	assert.Error(t, err)
}

func TestImfilterCoords_MatchesImfilter(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(2))
	image := mat.NewDense(6, 7, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < 7; j++ {
			image.Set(i, j, float64(rng.Intn(10)))
		}
	}
	var coords [][3]int
	for i := 0; i < 6; i++ {
		for j := 0; j < 7; j++ {
			coords = append(coords, [3]int{i, j, 0})
		}
	}
	kernels := map[string]*mat.Dense{
		"odd":  mat.NewDense(3, 3, []float64{0, 1, 0, 1, 1, 0, 0, 1, 1}),
		"even": mat.NewDense(2, 2, []float64{1, 0, 1, 1}),
	}
	pads := []Padding{{}, {Value: 2}, {Mode: PadSymmetric}, {Mode: PadEdge}, {Mode: PadWrap}}
	for name, k := range kernels {
		for _, mode := range []FilterMode{Correlate, Convolve} {
			for _, pad := range pads {
				want := Imfilter(image, k, pad, mode)
				got, err := ImfilterCoords(VolumeFromDense(image), VolumeFromDense(k), coords, pad, mode)
				require.NoError(t, err)
				for i, c := range coords {
					assert.InDelta(t, want.At(c[0], c[1]), got[i], 1e-12, "%s mode=%d pad=%+v at %v", name, mode, pad, c)
				}
			}
		}
	}
}

func TestImfilterCoords_Errors(t *testing.T) {
	t.Parallel()
	image := NewVolume(3, 3, 2)
	k := NewVolume(1, 1, 1)
	k.Set(0, 0, 0, 2)
	_, err := ImfilterCoords(image, k, [][3]int{{0, 0, 0}}, Padding{}, Correlate)
	assert.Error(t, err)

	k.Set(0, 0, 0, 1)
	_, err = ImfilterCoords(image, k, [][3]int{{0, 0, 2}}, Padding{}, Correlate)
	assert.Error(t, err)
	got, err := ImfilterCoords(image, k, [][3]int{{2, 2, 1}}, Padding{}, Correlate)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, got)
}

func TestParseFilterMode(t *testing.T) {
	m, err := ParseFilterMode("conv")
	require.NoError(t, err)
	assert.Equal(t, Convolve, m)
	_, err = ParseFilterMode("xcorr")
	assert.Error(t, err)
}
