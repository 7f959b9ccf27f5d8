package segment

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// DefaultMaxDim is the longest analysis side before images are downscaled.
const DefaultMaxDim = 3000

// AnalysisSize returns the analysis dimensions for a source of the given
// size. Sources whose longer side exceeds maxDim are scaled uniformly by
// maxDim/longer: the longer side becomes maxDim and the shorter is truncated.
func AnalysisSize(width, height, maxDim int) (int, int) {
	if maxDim <= 0 {
		return width, height
	}
	longer := max(width, height)
	if longer <= maxDim {
		return width, height
	}
	scale := float64(maxDim) / float64(longer)
	if width >= height {
		return maxDim, max(int(float64(height)*scale), 1)
	}
	return max(int(float64(width)*scale), 1), maxDim
}

// Downscale returns the analysis image for src. Images within maxDim are
// returned unchanged; larger ones are area-averaged with a box filter.
func Downscale(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := AnalysisSize(b.Dx(), b.Dy(), maxDim)
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	return imaging.Resize(src, w, h, imaging.Box)
}

// boundaryColor matches the yellow skimage uses for mark_boundaries.
var boundaryColor = color.NRGBA{R: 255, G: 255, A: 255}

// Preview draws region boundaries over img. img must have the same size as
// the label array.
func Preview(img image.Image, labels *LabelArray) *image.NRGBA {
	out := imaging.Clone(img)
	w, h := labels.Width, labels.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := labels.Data[y*w+x]
			if (x+1 < w && labels.Data[y*w+x+1] != v) || (y+1 < h && labels.Data[(y+1)*w+x] != v) {
				out.SetNRGBA(x, y, boundaryColor)
			}
		}
	}
	return out
}
