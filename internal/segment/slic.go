package segment

import (
	"context"
	"fmt"
	"math"

	olimage "ortholabel/internal/image"
)

// SLIC is a simple linear iterative clustering segmenter working in CIE Lab.
// Seeds are placed on a regular grid and nudged to the lowest gradient in
// their 3x3 neighborhood, refined by localized k-means, and finally made
// 4-connected. Output ids are dense in 1..N and cover every pixel.
type SLIC struct{}

// NewSLIC creates a SLIC segmenter.
func NewSLIC() *SLIC {
	return &SLIC{}
}

type slicCenter struct {
	l, a, b float64
	x, y    float64
}

// Segment implements Segmenter.
func (s *SLIC) Segment(ctx context.Context, raster *olimage.Raster, p Params) (*LabelArray, error) {
	if raster == nil || raster.Width <= 0 || raster.Height <= 0 {
		return nil, fmt.Errorf("slic: empty raster")
	}
	p = p.normalized()

	labPlane, err := raster.Lab()
	if err != nil {
		return nil, fmt.Errorf("slic: %w", err)
	}
	lab := labPlane.RawMatrix().Data
	w, h := raster.Width, raster.Height

	step := max(int(math.Sqrt(float64(w*h)/float64(p.NSegments))), 1)
	centers := seedCenters(lab, w, h, step)

	clusters := make([]int, w*h)
	dist := make([]float64, w*h)
	for i := range clusters {
		clusters[i] = -1
	}

	// Spatial distance weighted by m/S so that compactness is independent
	// of the grid interval.
	spatial := p.Compactness / float64(step)
	spatial *= spatial

	type acc struct {
		l, a, b, x, y float64
		n             int
	}
	sums := make([]acc, len(centers))

	for iter := 0; iter < p.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range dist {
			dist[i] = math.MaxFloat64
		}
		for ci, c := range centers {
			x0, x1 := max(int(c.x)-step, 0), min(int(c.x)+step+1, w)
			y0, y1 := max(int(c.y)-step, 0), min(int(c.y)+step+1, h)
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					i := y*w + x
					o := i * 3
					dl := lab[o] - c.l
					da := lab[o+1] - c.a
					db := lab[o+2] - c.b
					dx := float64(x) - c.x
					dy := float64(y) - c.y
					d := dl*dl + da*da + db*db + (dx*dx+dy*dy)*spatial
					if d < dist[i] {
						dist[i] = d
						clusters[i] = ci
					}
				}
			}
		}

		for i := range sums {
			sums[i] = acc{}
		}
		for i, ci := range clusters {
			if ci < 0 {
				continue
			}
			o := i * 3
			sums[ci].l += lab[o]
			sums[ci].a += lab[o+1]
			sums[ci].b += lab[o+2]
			sums[ci].x += float64(i % w)
			sums[ci].y += float64(i / w)
			sums[ci].n++
		}
		for ci := range centers {
			if sums[ci].n == 0 {
				continue
			}
			n := float64(sums[ci].n)
			centers[ci] = slicCenter{
				l: sums[ci].l / n, a: sums[ci].a / n, b: sums[ci].b / n,
				x: sums[ci].x / n, y: sums[ci].y / n,
			}
		}
	}

	// Pixels never reached by a search window join their nearest center.
	for i, ci := range clusters {
		if ci >= 0 {
			continue
		}
		x, y := float64(i%w), float64(i/w)
		best, bestD := 0, math.MaxFloat64
		for cj, c := range centers {
			d := (c.x-x)*(c.x-x) + (c.y-y)*(c.y-y)
			if d < bestD {
				best, bestD = cj, d
			}
		}
		clusters[i] = best
	}

	minSize := max((w*h)/len(centers)/4, 1)
	return enforceConnectivity(clusters, w, h, minSize), nil
}

func seedCenters(lab []float64, w, h, step int) []slicCenter {
	var centers []slicCenter
	for cy := step / 2; cy < h; cy += step {
		for cx := step / 2; cx < w; cx += step {
			lx, ly := cx, cy
			best := math.MaxFloat64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := cx+dx, cy+dy
					if nx < 0 || nx >= w-1 || ny < 0 || ny >= h-1 {
						continue
					}
					l0 := lab[(ny*w+nx)*3]
					g := math.Abs(lab[((ny+1)*w+nx)*3]-l0) + math.Abs(lab[(ny*w+nx+1)*3]-l0)
					if g < best {
						best = g
						lx, ly = nx, ny
					}
				}
			}
			o := (ly*w + lx) * 3
			centers = append(centers, slicCenter{
				l: lab[o], a: lab[o+1], b: lab[o+2],
				x: float64(lx), y: float64(ly),
			})
		}
	}
	if len(centers) == 0 {
		o := ((h/2)*w + w/2) * 3
		centers = append(centers, slicCenter{
			l: lab[o], a: lab[o+1], b: lab[o+2],
			x: float64(w / 2), y: float64(h / 2),
		})
	}
	return centers
}

// enforceConnectivity relabels clusters into 4-connected components. Components
// smaller than minSize are absorbed by an already labeled neighbor when one
// exists. The result is dense in 1..N.
func enforceConnectivity(clusters []int, w, h, minSize int) *LabelArray {
	out := NewLabelArray(w, h)
	dx4 := [4]int{-1, 0, 1, 0}
	dy4 := [4]int{0, -1, 0, 1}

	var next int32
	queue := make([]int, 0, 64)
	for start := range clusters {
		if out.Data[start] != 0 {
			continue
		}
		sx, sy := start%w, start/w

		var adjacent int32
		for k := 0; k < 4; k++ {
			nx, ny := sx+dx4[k], sy+dy4[k]
			if nx >= 0 && nx < w && ny >= 0 && ny < h {
				if v := out.Data[ny*w+nx]; v != 0 {
					adjacent = v
					break
				}
			}
		}

		next++
		out.Data[start] = next
		queue = append(queue[:0], start)
		for q := 0; q < len(queue); q++ {
			cur := queue[q]
			cx, cy := cur%w, cur/w
			for k := 0; k < 4; k++ {
				nx, ny := cx+dx4[k], cy+dy4[k]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if out.Data[ni] == 0 && clusters[ni] == clusters[cur] {
					out.Data[ni] = next
					queue = append(queue, ni)
				}
			}
		}

		if len(queue) < minSize && adjacent != 0 {
			for _, i := range queue {
				out.Data[i] = adjacent
			}
			next--
		}
	}
	return out
}
