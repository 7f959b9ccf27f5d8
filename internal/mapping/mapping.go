// Package mapping converts region footprints from analysis resolution to
// source image resolution.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"

	"ortholabel/internal/segment"
)

// DefaultPad is the margin, in source pixels, added around mapped regions.
const DefaultPad = 8

// ErrRegionNotFound is returned when a region id has no pixels.
var ErrRegionNotFound = errors.New("region not found")

// ScaleContext records the analysis and source dimensions of one image.
type ScaleContext struct {
	AnalysisWidth  int `json:"analysis_width"`
	AnalysisHeight int `json:"analysis_height"`
	SourceWidth    int `json:"source_width"`
	SourceHeight   int `json:"source_height"`
}

// SX returns the horizontal source/analysis scale factor.
func (s ScaleContext) SX() float64 {
	return float64(s.SourceWidth) / float64(s.AnalysisWidth)
}

// SY returns the vertical source/analysis scale factor.
func (s ScaleContext) SY() float64 {
	return float64(s.SourceHeight) / float64(s.AnalysisHeight)
}

// Validate checks that all dimensions are positive.
func (s ScaleContext) Validate() error {
	if s.AnalysisWidth <= 0 || s.AnalysisHeight <= 0 {
		return fmt.Errorf("invalid analysis size %dx%d", s.AnalysisWidth, s.AnalysisHeight)
	}
	if s.SourceWidth <= 0 || s.SourceHeight <= 0 {
		return fmt.Errorf("invalid source size %dx%d", s.SourceWidth, s.SourceHeight)
	}
	return nil
}

// BBox is an inclusive pixel rectangle. It serializes as
// [xmin, ymin, xmax, ymax].
type BBox struct {
	XMin, YMin int
	XMax, YMax int
}

// MarshalJSON encodes the box as a four element array.
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.XMin, b.YMin, b.XMax, b.YMax})
}

// UnmarshalJSON decodes a box from a four element array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var v [4]int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	b.XMin, b.YMin, b.XMax, b.YMax = v[0], v[1], v[2], v[3]
	return nil
}

// Width returns the number of columns covered.
func (b BBox) Width() int { return b.XMax - b.XMin + 1 }

// Height returns the number of rows covered.
func (b BBox) Height() int { return b.YMax - b.YMin + 1 }

// MapRegionToSourceBBox maps the analysis-space bounding box of regionID to
// source coordinates. Each corner is scaled per axis and truncated, the box
// is grown by pad on every side and clamped to the source image. A negative
// pad is treated as zero.
func MapRegionToSourceBBox(labels *segment.LabelArray, regionID int, sc ScaleContext, pad int) (BBox, error) {
	if err := sc.Validate(); err != nil {
		return BBox{}, err
	}
	if labels == nil {
		return BBox{}, errors.New("nil label array")
	}
	r := labels.Bounds(regionID)
	if r.Empty() {
		return BBox{}, fmt.Errorf("%w: %d", ErrRegionNotFound, regionID)
	}
	if pad < 0 {
		pad = 0
	}

	sx, sy := sc.SX(), sc.SY()
	box := BBox{
		XMin: int(float64(r.MinX)*sx) - pad,
		YMin: int(float64(r.MinY)*sy) - pad,
		XMax: int(float64(r.MaxX)*sx) + pad,
		YMax: int(float64(r.MaxY)*sy) + pad,
	}
	box.XMin = clamp(box.XMin, 0, sc.SourceWidth-1)
	box.YMin = clamp(box.YMin, 0, sc.SourceHeight-1)
	box.XMax = clamp(box.XMax, 0, sc.SourceWidth-1)
	box.YMax = clamp(box.YMax, 0, sc.SourceHeight-1)
	return box, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
