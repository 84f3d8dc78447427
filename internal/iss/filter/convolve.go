package filter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FilterMode selects correlation or convolution.
type FilterMode int

const (
	Correlate FilterMode = iota
	Convolve
)

// ParseFilterMode accepts "corr" or "conv".
func ParseFilterMode(name string) (FilterMode, error) {
	switch name {
	case "corr", "":
		return Correlate, nil
	case "conv":
		return Convolve, nil
	}
	return 0, fmt.Errorf("corr_or_conv must be \"corr\" or \"conv\", got %q", name)
}

// Convolve2D convolves image with kernel, replicating border pixels. The
// kernel anchor is at (rows/2, cols/2) of the flipped kernel.
func Convolve2D(image, kernel *mat.Dense) *mat.Dense {
	ir, ic := image.Dims()
	kr, kc := kernel.Dims()
	ar, ac := kr/2, kc/2
	edge := Padding{Mode: PadEdge}
	out := mat.NewDense(ir, ic, nil)
	for i := 0; i < ir; i++ {
		for j := 0; j < ic; j++ {
			var sum float64
			for a := 0; a < kr; a++ {
				y, _ := edge.index(i+a-ar, ir)
				for b := 0; b < kc; b++ {
					x, _ := edge.index(j+b-ac, ic)
					sum += kernel.At(kr-1-a, kc-1-b) * image.At(y, x)
				}
			}
			out.Set(i, j, sum)
		}
	}
	return out
}

// Imfilter filters image with kernel, returning an image of the same size
// (MATLAB imfilter with 'same' output). Even kernel dimensions are padded
// with zeros at the start for correlation and at the end for convolution.
func Imfilter(image, kernel *mat.Dense, pad Padding, mode FilterMode) *mat.Dense {
	k := EnsureOddKernel(kernel, mode == Correlate)
	ir, ic := image.Dims()
	kr, kc := k.Dims()
	cr, cc := (kr-1)/2, (kc-1)/2
	sign := 1
	if mode == Convolve {
		sign = -1
	}
	out := mat.NewDense(ir, ic, nil)
	for i := 0; i < ir; i++ {
		for j := 0; j < ic; j++ {
			var sum float64
			for a := 0; a < kr; a++ {
				for b := 0; b < kc; b++ {
					w := k.At(a, b)
					if w == 0 {
						continue
					}
					y, yok := pad.index(i+sign*(a-cr), ir)
					x, xok := pad.index(j+sign*(b-cc), ic)
					if yok && xok {
						sum += w * image.At(y, x)
					} else {
						sum += w * pad.Value
					}
				}
			}
			out.Set(i, j, sum)
		}
	}
	return out
}
