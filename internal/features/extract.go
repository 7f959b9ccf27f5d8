// Package features computes per-region descriptors: centroid, pixel area and
// mean perceptual color.
package features

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	olimage "ortholabel/internal/image"
	"ortholabel/internal/segment"
)

// ErrShapeMismatch is returned when the raster and label array differ in size.
var ErrShapeMismatch = errors.New("raster and label array dimensions differ")

// RegionFeature describes one region in analysis coordinates.
type RegionFeature struct {
	Centroid  [2]float64 `json:"centroid"`   // mean (x, y)
	Area      int        `json:"area"`       // pixel count
	MeanColor [3]float64 `json:"mean_color"` // mean CIE L*a*b*
}

// Extract computes a RegionFeature for every nonzero id in labels. The
// raster is normalized to 0..1 according to its encoding and converted to Lab
// once before accumulation.
func Extract(src *olimage.Raster, labels *segment.LabelArray) (map[int]RegionFeature, error) {
	if src == nil || labels == nil {
		return nil, errors.New("features: nil input")
	}
	if src.Width != labels.Width || src.Height != labels.Height {
		return nil, fmt.Errorf("%w: raster %dx%d, labels %dx%d",
			ErrShapeMismatch, src.Width, src.Height, labels.Width, labels.Height)
	}

	lab, err := src.Lab()
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	labData := lab.RawMatrix().Data

	// Per id: x, y, L, a, b sums.
	n := labels.Max() + 1
	sums := make([][]float64, n)
	counts := make([]int, n)
	w := labels.Width
	for i, v := range labels.Data {
		if v <= 0 {
			continue
		}
		s := sums[v]
		if s == nil {
			s = make([]float64, 5)
			sums[v] = s
		}
		s[0] += float64(i % w)
		s[1] += float64(i / w)
		floats.Add(s[2:], labData[i*3:i*3+3])
		counts[v]++
	}

	out := make(map[int]RegionFeature)
	for id := 1; id < n; id++ {
		if counts[id] == 0 {
			continue
		}
		out[id] = summarize(sums[id], counts[id])
	}
	return out, nil
}

// summarize turns accumulated sums into means. An empty region yields zero
// values without dividing.
func summarize(sum []float64, count int) RegionFeature {
	if count == 0 {
		return RegionFeature{}
	}
	mean := make([]float64, len(sum))
	copy(mean, sum)
	floats.Scale(1/float64(count), mean)
	return RegionFeature{
		Centroid:  [2]float64{mean[0], mean[1]},
		Area:      count,
		MeanColor: [3]float64{mean[2], mean[3], mean[4]},
	}
}
