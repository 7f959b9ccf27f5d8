// Package colorutil provides shared color utilities for region descriptors.
package colorutil

import (
	"github.com/lucasb-eyer/go-colorful"
)

// labScale converts go-colorful's Lab (L in 0..1) to CIE conventional ranges
// (L in 0..100, a/b roughly -128..127).
const labScale = 100.0

// NormalizeFactor returns the divisor that maps stored intensities into the
// 0..1 range. 8-bit data is always divided by 255. Floating point data is
// divided by 255 only when it is not already normalized (max > 1).
func NormalizeFactor(isUint8 bool, maxValue float64) float64 {
	if isUint8 || maxValue > 1.0 {
		return 255.0
	}
	return 1.0
}

// RGBToLab converts normalized sRGB (0..1 per channel, D65) to CIE L*a*b*.
func RGBToLab(r, g, b float64) (l, a, bb float64) {
	c := colorful.Color{R: clamp01(r), G: clamp01(g), B: clamp01(b)}
	l, a, bb = c.Lab()
	return l * labScale, a * labScale, bb * labScale
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
