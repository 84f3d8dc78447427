package filter

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/spotcall/internal/iss"
)

// McClellan returns the McClellan transform used by Ftrans2 by default.
func McClellan() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1.0 / 8, 2.0 / 8, 1.0 / 8,
		2.0 / 8, -4.0 / 8, 2.0 / 8,
		1.0 / 8, 2.0 / 8, 1.0 / 8,
	})
}

// Ftrans2 turns the odd-length, zero-phase 1D kernel b into a 2D kernel
// using the square transform t (McClellan when nil), as MATLAB ftrans2
// does. The result is ((M-1)(Q-1)/2+1) square for an M×M transform and Q
// taps.
func Ftrans2(b []float64, t *mat.Dense) (*mat.Dense, error) {
	if len(b) < 3 || len(b)%2 == 0 {
		return nil, &iss.ConfigurationError{Param: "b", Value: len(b), Reason: "1D kernel length must be odd and at least 3"}
	}
	if t == nil {
		t = McClellan()
	}
	tr, tc := t.Dims()
	if tr != tc {
		return nil, &iss.DimensionMismatchError{What: "ftrans2 transform", Want: []int{tr, tr}, Got: []int{tr, tc}}
	}

	// Chebyshev coefficients of Σ a(k) cos(kω): a[0] is the centre tap and
	// a[k] twice the tap k away from it.
	n := (len(b) - 1) / 2
	a := make([]float64, n+1)
	a[0] = b[n]
	for k := 1; k <= n; k++ {
		a[k] = 2 * b[n-k]
	}

	p0 := mat.NewDense(1, 1, []float64{1})
	p1 := mat.DenseCopyOf(t)
	h := mat.NewDense(tr, tc, nil)
	h.Scale(a[1], p1)
	addCentred(h, p0, a[0])
	for i := 2; i <= n; i++ {
		p2 := convolveFull(t, p1)
		p2.Scale(2, p2)
		addCentred(p2, p0, -1)

		r, c := p2.Dims()
		next := mat.NewDense(r, c, nil)
		next.Scale(a[i], p2)
		addCentred(next, h, 1)
		h = next

		p0, p1 = p1, p2
	}
	return rot90(h), nil
}

// addCentred adds scale·srcᵀ to the centred block of dst with src's shape.
func addCentred(dst *mat.Dense, src mat.Matrix, scale float64) {
	dr, dc := dst.Dims()
	sr, sc := src.Dims()
	or, oc := (dr-sc)/2, (dc-sr)/2
	for i := 0; i < sr; i++ {
		for j := 0; j < sc; j++ {
			dst.Set(or+j, oc+i, dst.At(or+j, oc+i)+scale*src.At(i, j))
		}
	}
}

// convolveFull is the full 2D convolution of a and b.
func convolveFull(a, b mat.Matrix) *mat.Dense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	out := mat.NewDense(ar+br-1, ac+bc-1, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			av := a.At(i, j)
			if av == 0 {
				continue
			}
			for k := 0; k < br; k++ {
				for l := 0; l < bc; l++ {
					out.Set(i+k, j+l, out.At(i+k, j+l)+av*b.At(k, l))
				}
			}
		}
	}
	return out
}

// rot90 rotates m a quarter turn anticlockwise.
func rot90(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(c, r, nil)
	for i := 0; i < c; i++ {
		for j := 0; j < r; j++ {
			out.Set(i, j, m.At(j, c-1-i))
		}
	}
	return out
}

// HanningDiff returns the (2r2+1)² kernel formed from a positive Hanning
// window of radius r1 minus a negative one of radius r2. It sums to zero.
func HanningDiff(r1, r2 int) (*mat.Dense, error) {
	if r1 < 0 || r1 > r2-1 {
		return nil, &iss.ConfigurationError{Param: "r1", Value: r1, Reason: "must satisfy 0 <= r1 <= r2-1"}
	}
	outer := iss.Hanning(2*r2 + 3)
	outer = outer[1 : len(outer)-1]
	floats.Scale(-1/floats.Sum(outer), outer)

	inner := iss.Hanning(2*r1 + 3)
	inner = inner[1 : len(inner)-1]
	floats.Scale(1/floats.Sum(inner), inner)

	h := append([]float64(nil), outer...)
	floats.Add(h[r2-r1:r2+r1+1], inner)
	return Ftrans2(h, nil)
}

// EnsureOddKernel pads every even dimension of k with one row or column of
// zeros, at the start when padStart is set and otherwise at the end. Odd
// kernels are returned unchanged.
func EnsureOddKernel(k *mat.Dense, padStart bool) *mat.Dense {
	r, c := k.Dims()
	pr, pc := r%2 == 0, c%2 == 0
	if !pr && !pc {
		return k
	}
	nr, nc := r, c
	or, oc := 0, 0
	if pr {
		nr++
		if padStart {
			or = 1
		}
	}
	if pc {
		nc++
		if padStart {
			oc = 1
		}
	}
	out := mat.NewDense(nr, nc, nil)
	out.Slice(or, or+r, oc, oc+c).(*mat.Dense).Copy(k)
	return out
}

// isBinary reports whether every entry of k is 0 or 1.
func isBinary(k mat.Matrix) bool {
	r, c := k.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := k.At(i, j); v != 0 && v != 1 {
				return false
			}
		}
	}
	return true
}
