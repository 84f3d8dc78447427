// Package units converts physical lengths to image pixels.
package units

import (
	"fmt"
	"math"
)

// PixelLength converts a length in microns to whole pixels given the pixel
// size in microns per pixel. Halves round away from zero.
func PixelLength(lengthMicrons, pixelSize float64) (int, error) {
	if !(pixelSize > 0) || math.IsInf(pixelSize, 0) {
		return 0, fmt.Errorf("pixel size must be a positive finite number, got %v", pixelSize)
	}
	return int(math.Round(lengthMicrons / pixelSize)), nil
}

// MicronLength converts a length in pixels to microns.
func MicronLength(pixels int, pixelSize float64) float64 {
	return float64(pixels) * pixelSize
}
