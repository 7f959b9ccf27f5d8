package segment

import (
	"context"

	olimage "ortholabel/internal/image"
)

// Segmenter partitions a raster into superpixel regions. Implementations
// return ids starting at 1; zeros are tolerated by every consumer.
type Segmenter interface {
	Segment(ctx context.Context, raster *olimage.Raster, p Params) (*LabelArray, error)
}

// Params holds segmentation parameters.
type Params struct {
	// NSegments is the approximate number of regions requested.
	NSegments int `json:"n_segments"`

	// Compactness balances color proximity against spatial proximity.
	// Higher values give squarer regions.
	Compactness float64 `json:"compactness"`

	// Iterations bounds the number of k-means refinement passes.
	Iterations int `json:"-"`
}

// DefaultParams returns the default segmentation parameters.
func DefaultParams() Params {
	return Params{
		NSegments:   800,
		Compactness: 10,
		Iterations:  10,
	}
}

// WithNSegments returns a copy with the requested region count.
func (p Params) WithNSegments(n int) Params {
	p.NSegments = n
	return p
}

// WithCompactness returns a copy with the given compactness.
func (p Params) WithCompactness(c float64) Params {
	p.Compactness = c
	return p
}

func (p Params) normalized() Params {
	d := DefaultParams()
	if p.NSegments <= 0 {
		p.NSegments = d.NSegments
	}
	if p.Compactness <= 0 {
		p.Compactness = d.Compactness
	}
	if p.Iterations <= 0 {
		p.Iterations = d.Iterations
	}
	return p
}
