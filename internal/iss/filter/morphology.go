package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Dilate performs grey dilation of image by the binary footprint kernel,
// treating pixels outside the image as zero. Even kernel dimensions are
// padded at the start.
func Dilate(image, kernel *mat.Dense) (*mat.Dense, error) {
	if !isBinary(kernel) {
		return nil, fmt.Errorf("dilation kernel must only contain 0 and 1")
	}
	k := EnsureOddKernel(kernel, true)
	ir, ic := image.Dims()
	kr, kc := k.Dims()
	cr, cc := (kr-1)/2, (kc-1)/2
	zero := Padding{}
	out := mat.NewDense(ir, ic, nil)
	for i := 0; i < ir; i++ {
		for j := 0; j < ic; j++ {
			best := math.Inf(-1)
			for a := 0; a < kr; a++ {
				for b := 0; b < kc; b++ {
					if k.At(a, b) == 0 {
						continue
					}
					v := 0.0
					y, yok := zero.index(i-(a-cr), ir)
					x, xok := zero.index(j-(b-cc), ic)
					if yok && xok {
						v = image.At(y, x)
					}
					best = math.Max(best, v)
				}
			}
			if math.IsInf(best, -1) {
				best = 0
			}
			out.Set(i, j, best)
		}
	}
	return out, nil
}

// TopHat returns image minus its morphological opening by the binary
// structuring element kernel. Pixels outside the image never take part in
// the min/max. kernel must have odd dimensions.
func TopHat(image, kernel *mat.Dense) (*mat.Dense, error) {
	if !isBinary(kernel) {
		return nil, fmt.Errorf("top hat kernel must only contain 0 and 1")
	}
	kr, kc := kernel.Dims()
	if kr%2 == 0 || kc%2 == 0 {
		return nil, fmt.Errorf("top hat kernel dimensions are %dx%d, all must be odd", kr, kc)
	}
	opened := morph(morph(image, kernel, math.Min, math.Inf(1)), kernel, math.Max, math.Inf(-1))
	var out mat.Dense
	out.Sub(image, opened)
	return &out, nil
}

// morph applies a flat min or max filter over the ones of kernel, anchored at
// its centre, skipping out-of-bounds pixels.
func morph(image, kernel *mat.Dense, op func(a, b float64) float64, identity float64) *mat.Dense {
	ir, ic := image.Dims()
	kr, kc := kernel.Dims()
	cr, cc := kr/2, kc/2
	out := mat.NewDense(ir, ic, nil)
	for i := 0; i < ir; i++ {
		for j := 0; j < ic; j++ {
			acc := identity
			for a := 0; a < kr; a++ {
				y := i + a - cr
				if y < 0 || y >= ir {
					continue
				}
				for b := 0; b < kc; b++ {
					x := j + b - cc
					if x < 0 || x >= ic || kernel.At(a, b) == 0 {
						continue
					}
					acc = op(acc, image.At(y, x))
				}
			}
			if math.IsInf(acc, 0) {
				acc = image.At(i, j)
			}
			out.Set(i, j, acc)
		}
	}
	return out
}
