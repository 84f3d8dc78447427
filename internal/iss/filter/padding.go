package filter

import "fmt"

// PadMode selects how values outside an image are produced.
type PadMode int

const (
	// PadConstant uses Padding.Value outside the image.
	PadConstant PadMode = iota
	// PadSymmetric mirrors across the border, repeating the edge value.
	PadSymmetric
	// PadEdge repeats the nearest border value.
	PadEdge
	// PadWrap treats the image as periodic.
	PadWrap
)

// Padding is an out-of-bounds policy. The zero value pads with zeros.
type Padding struct {
	Mode  PadMode
	Value float64
}

// ParsePadding accepts "symmetric", "edge", "wrap" or "constant".
func ParsePadding(name string, value float64) (Padding, error) {
	switch name {
	case "constant", "":
		return Padding{Mode: PadConstant, Value: value}, nil
	case "symmetric":
		return Padding{Mode: PadSymmetric}, nil
	case "edge":
		return Padding{Mode: PadEdge}, nil
	case "wrap":
		return Padding{Mode: PadWrap}, nil
	}
	return Padding{}, fmt.Errorf("unknown padding %q", name)
}

// index maps i into [0, n). It returns false when the constant value
// applies.
func (p Padding) index(i, n int) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch p.Mode {
	case PadSymmetric:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i, true
	case PadEdge:
		if i < 0 {
			return 0, true
		}
		return n - 1, true
	case PadWrap:
		i %= n
		if i < 0 {
			i += n
		}
		return i, true
	}
	return 0, false
}
