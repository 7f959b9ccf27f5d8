// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"encoding/json"
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// PointInt represents a 2D point with integer pixel coordinates.
// It serializes as a two element array [x, y], the form overlay clients expect.
type PointInt struct {
	X int
	Y int
}

// ToFloat converts to Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// MarshalJSON encodes the point as [x, y].
func (p PointInt) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON decodes a point from [x, y].
func (p *PointInt) UnmarshalJSON(data []byte) error {
	var xy [2]int
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// FromImagePoints converts stdlib image points to PointInt, shifted by offset.
func FromImagePoints(pts []image.Point, offset image.Point) []PointInt {
	out := make([]PointInt, len(pts))
	for i, pt := range pts {
		out[i] = PointInt{X: pt.X + offset.X, Y: pt.Y + offset.Y}
	}
	return out
}

// RectInt represents an inclusive integer rectangle: Min and Max are both
// valid pixel indices.
type RectInt struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Empty reports whether the rectangle holds no pixels.
func (r RectInt) Empty() bool {
	return r.MaxX < r.MinX || r.MaxY < r.MinY
}

// Width returns the number of columns covered.
func (r RectInt) Width() int {
	if r.Empty() {
		return 0
	}
	return r.MaxX - r.MinX + 1
}

// Height returns the number of rows covered.
func (r RectInt) Height() int {
	if r.Empty() {
		return 0
	}
	return r.MaxY - r.MinY + 1
}

// Extend grows the rectangle to include (x, y).
func (r *RectInt) Extend(x, y int) {
	if x < r.MinX {
		r.MinX = x
	}
	if x > r.MaxX {
		r.MaxX = x
	}
	if y < r.MinY {
		r.MinY = y
	}
	if y > r.MaxY {
		r.MaxY = y
	}
}

// EmptyRect returns a rectangle that any Extend call will replace.
func EmptyRect() RectInt {
	return RectInt{MinX: math.MaxInt, MinY: math.MaxInt, MaxX: math.MinInt, MaxY: math.MinInt}
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}
