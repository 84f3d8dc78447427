package filter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Volume is a dense (y, x, z) array.
type Volume struct {
	NY, NX, NZ int
	Data       []float64
}

// NewVolume allocates a zeroed volume.
func NewVolume(ny, nx, nz int) *Volume {
	return &Volume{NY: ny, NX: nx, NZ: nz, Data: make([]float64, ny*nx*nz)}
}

// VolumeFromDense wraps a 2D image as a single-plane volume.
func VolumeFromDense(m *mat.Dense) *Volume {
	r, c := m.Dims()
	v := NewVolume(r, c, 1)
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			v.Set(y, x, 0, m.At(y, x))
		}
	}
	return v
}

func (v *Volume) At(y, x, z int) float64     { return v.Data[(y*v.NX+x)*v.NZ+z] }
func (v *Volume) Set(y, x, z int, f float64) { v.Data[(y*v.NX+x)*v.NZ+z] = f }

// ImfilterCoords evaluates Imfilter with a binary kernel only at coords,
// given as (y, x, z). Even kernel dimensions are handled as in Imfilter.
func ImfilterCoords(image, kernel *Volume, coords [][3]int, pad Padding, mode FilterMode) ([]float64, error) {
	for _, v := range kernel.Data {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("kernel is expected to be binary, found %v", v)
		}
	}
	for _, c := range coords {
		if c[0] < 0 || c[0] >= image.NY || c[1] < 0 || c[1] >= image.NX || c[2] < 0 || c[2] >= image.NZ {
			return nil, fmt.Errorf("coordinate %v outside image of shape [%d %d %d]", c, image.NY, image.NX, image.NZ)
		}
	}

	// Offsets of the kernel's ones relative to its (odd-padded) centre.
	padStart := mode == Correlate
	dims := [3]int{kernel.NY, kernel.NX, kernel.NZ}
	var lead, centre [3]int
	for d, n := range dims {
		odd := n
		if n%2 == 0 {
			odd++
			if padStart {
				lead[d] = 1
			}
		}
		centre[d] = (odd - 1) / 2
	}
	sign := 1
	if mode == Convolve {
		sign = -1
	}
	var shifts [][3]int
	for y := 0; y < kernel.NY; y++ {
		for x := 0; x < kernel.NX; x++ {
			for z := 0; z < kernel.NZ; z++ {
				if kernel.At(y, x, z) == 0 {
					continue
				}
				shifts = append(shifts, [3]int{
					sign * (y + lead[0] - centre[0]),
					sign * (x + lead[1] - centre[1]),
					sign * (z + lead[2] - centre[2]),
				})
			}
		}
	}

	out := make([]float64, len(coords))
	for i, c := range coords {
		var sum float64
		for _, s := range shifts {
			y, yok := pad.index(c[0]+s[0], image.NY)
			x, xok := pad.index(c[1]+s[1], image.NX)
			z, zok := pad.index(c[2]+s[2], image.NZ)
			if yok && xok && zok {
				sum += image.At(y, x, z)
			} else {
				sum += pad.Value
			}
		}
		out[i] = sum
	}
	return out, nil
}
