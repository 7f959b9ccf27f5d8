package geometry

import (
	"math"
	"sort"
)

// DegenerateArea is the absolute signed area (in square pixels) below which a
// point set is considered degenerate and is not angularly reordered.
const DegenerateArea = 1e-2

// SignedArea computes the signed area of a closed polygon using the shoelace
// formula. The sign depends on winding direction.
func SignedArea(points []PointInt) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += float64(points[i].X)*float64(points[j].Y) - float64(points[j].X)*float64(points[i].Y)
	}
	return sum / 2
}

// SortClockwise orders points by angle around their mean, ascending. With
// image coordinates (y grows downward) this walks the polygon clockwise on
// screen. Equal angles keep their input order.
//
// Point sets with two or fewer points, or whose absolute signed area is below
// DegenerateArea, are returned in their original order: angular sorting around
// a centroid is unstable for collinear or zero-area sets.
//
// The input slice is not modified.
func SortClockwise(points []PointInt) []PointInt {
	out := make([]PointInt, len(points))
	copy(out, points)

	if len(out) <= 2 {
		return out
	}
	if math.Abs(SignedArea(out)) < DegenerateArea {
		return out
	}

	var cx, cy float64
	for _, p := range out {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	n := float64(len(out))
	cx /= n
	cy /= n

	angles := make(map[PointInt]float64, len(out))
	for _, p := range out {
		angles[p] = math.Atan2(float64(p.Y)-cy, float64(p.X)-cx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return angles[out[i]] < angles[out[j]]
	})
	return out
}

// DedupeConsecutive drops vertices equal to their predecessor, treating the
// slice as a closed ring (a trailing copy of the first vertex is dropped too).
func DedupeConsecutive(points []PointInt) []PointInt {
	if len(points) == 0 {
		return nil
	}
	out := make([]PointInt, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[len(out)-1] == out[0] {
		out = out[:len(out)-1]
	}
	return out
}

// Perimeter returns the length of the closed ring through points.
func Perimeter(points []PointInt) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		total += points[i].ToFloat().Distance(points[(i+1)%n].ToFloat())
	}
	return total
}
