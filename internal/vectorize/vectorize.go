// Package vectorize converts a superpixel label array into simplified,
// consistently ordered region outline polygons.
package vectorize

import (
	"errors"
	"image"
	"runtime"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"ortholabel/internal/segment"
	"ortholabel/pkg/geometry"
)

// Polygon is the simplified outline of one region in analysis coordinates.
type Polygon struct {
	ID     int                 `json:"id"`
	Points []geometry.PointInt `json:"polygon"`
}

// Result holds the polygons of every region that produced a usable outline.
type Result struct {
	// RegionCount is the number of distinct nonzero ids in the label array,
	// including ids that were skipped.
	RegionCount int
	Polygons    map[int]Polygon
}

// Sorted returns the polygons ordered by region id.
func (r *Result) Sorted() []Polygon {
	out := make([]Polygon, 0, len(r.Polygons))
	for _, p := range r.Polygons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Options configures region vectorization.
type Options struct {
	EpsilonFactor    float64 // Simplification tolerance as a fraction of the perimeter
	EpsilonMin       float64 // Lower bound on the simplification tolerance in pixels
	MinContourPoints int     // Traced contours with fewer points are skipped
	Workers          int     // Regions processed in parallel; <=0 means NumCPU

	// Progress, when set, is called after each region with the number of
	// regions done and the total. Calls are serialized.
	Progress func(done, total int)
}

// DefaultOptions returns the standard vectorization settings.
func DefaultOptions() Options {
	return Options{
		EpsilonFactor:    0.008,
		EpsilonMin:       1.5,
		MinContourPoints: 4,
		Workers:          runtime.NumCPU(),
	}
}

// Vectorize traces the outer boundary of every region in labels, simplifies
// it and orders its vertices clockwise. Regions whose outline collapses are
// left out of Result.Polygons. Output is identical regardless of Workers.
func Vectorize(labels *segment.LabelArray, opts Options) (*Result, error) {
	if labels == nil || labels.Width <= 0 || labels.Height <= 0 || len(labels.Data) != labels.Width*labels.Height {
		return nil, errors.New("vectorize: invalid label array")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	bounds := labels.RegionBounds()
	var ids []int
	for id := 1; id < len(bounds); id++ {
		if !bounds[id].Empty() {
			ids = append(ids, id)
		}
	}

	result := &Result{
		RegionCount: len(ids),
		Polygons:    make(map[int]Polygon, len(ids)),
	}

	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)
	tasks := make(chan int)

	for w := 0; w < min(opts.Workers, max(len(ids), 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range tasks {
				pts, ok := traceRegion(labels, id, bounds[id], opts)

				mu.Lock()
				if ok {
					result.Polygons[id] = Polygon{ID: id, Points: pts}
				}
				done++
				if opts.Progress != nil {
					opts.Progress(done, len(ids))
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		tasks <- id
	}
	close(tasks)
	wg.Wait()

	return result, nil
}

// traceRegion outlines a single region. The mask covers only the region's
// bounding box plus a one pixel zero border, so contours never touch the
// mask edge; traced points are shifted back to image coordinates.
func traceRegion(labels *segment.LabelArray, id int, box geometry.RectInt, opts Options) ([]geometry.PointInt, bool) {
	mw, mh := box.Width()+2, box.Height()+2
	buf := make([]byte, mw*mh)
	want := int32(id)
	for y := box.MinY; y <= box.MaxY; y++ {
		row := labels.Data[y*labels.Width : (y+1)*labels.Width]
		mrow := buf[(y-box.MinY+1)*mw:]
		for x := box.MinX; x <= box.MaxX; x++ {
			if row[x] == want {
				mrow[x-box.MinX+1] = 255
			}
		}
	}

	mask, err := gocv.NewMatFromBytes(mh, mw, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return nil, false
	}
	defer mask.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	runtime.KeepAlive(buf)

	if contours.Size() == 0 {
		return nil, false
	}

	// Keep the largest contour
	best := 0
	bestArea := -1.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > bestArea {
			bestArea = area
			best = i
		}
	}
	contour := contours.At(best)
	if contour.Size() < opts.MinContourPoints {
		return nil, false
	}

	epsilon := opts.EpsilonFactor * gocv.ArcLength(contour, true)
	if epsilon < opts.EpsilonMin {
		epsilon = opts.EpsilonMin
	}
	approx := gocv.ApproxPolyDP(contour, epsilon, true)
	defer approx.Close()
	if approx.Size() < 3 {
		return nil, false
	}

	offset := image.Point{X: box.MinX - 1, Y: box.MinY - 1}
	pts := geometry.FromImagePoints(approx.ToPoints(), offset)
	pts = geometry.DedupeConsecutive(geometry.SortClockwise(pts))
	if len(pts) < 3 {
		return nil, false
	}
	return pts, true
}
