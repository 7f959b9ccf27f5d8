// Command vectorizetest segments an image and prints per-region polygon and
// descriptor statistics without touching a workspace.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"ortholabel/internal/features"
	olimage "ortholabel/internal/image"
	"ortholabel/internal/segment"
	"ortholabel/internal/vectorize"
	"ortholabel/pkg/geometry"
)

func main() {
	imagePath := flag.String("image", "", "Path to image (TIFF, PNG, JPEG or WebP)")
	nSegments := flag.Int("segments", 800, "Target number of superpixels")
	compactness := flag.Float64("compactness", 10, "SLIC compactness")
	maxDim := flag.Int("maxdim", segment.DefaultMaxDim, "Analysis size limit for the longer side")
	epsFactor := flag.Float64("eps", vectorize.DefaultOptions().EpsilonFactor, "Simplification tolerance as a fraction of perimeter")
	preview := flag.String("preview", "", "Write a boundary preview PNG to this path")
	limit := flag.Int("limit", 20, "Number of regions to list (0 for all)")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: vectorizetest -image <path> [-segments 800] [-compactness 10] [-preview out.png]")
		os.Exit(1)
	}

	src, err := olimage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	b := src.Bounds()
	fmt.Printf("Loaded image: %dx%d pixels\n", b.Dx(), b.Dy())

	analysis := segment.Downscale(src, *maxDim)
	ab := analysis.Bounds()
	if ab.Dx() != b.Dx() {
		fmt.Printf("Analysis size: %dx%d\n", ab.Dx(), ab.Dy())
	}
	raster := olimage.FromImage(analysis)

	params := segment.DefaultParams().WithNSegments(*nSegments).WithCompactness(*compactness)
	start := time.Now()
	labels, err := segment.NewSLIC().Segment(context.Background(), raster, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Segmentation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Segmented into %d regions in %v\n", labels.Count(), time.Since(start).Round(time.Millisecond))

	opts := vectorize.DefaultOptions()
	opts.EpsilonFactor = *epsFactor
	start = time.Now()
	res, err := vectorize.Vectorize(labels, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Vectorization failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Vectorized %d of %d regions in %v\n", len(res.Polygons), res.RegionCount, time.Since(start).Round(time.Millisecond))

	feats, err := features.Extract(raster, labels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Feature extraction failed: %v\n", err)
		os.Exit(1)
	}

	ids := make([]int, 0, len(feats))
	for id := range feats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return feats[ids[i]].Area > feats[ids[j]].Area })
	if *limit > 0 && len(ids) > *limit {
		ids = ids[:*limit]
	}

	fmt.Printf("\n%-8s %8s %8s %8s %8s %8s %8s %8s %8s %8s\n", "ID", "Area", "CX", "CY", "L", "a", "b", "Verts", "Perim", "Offset")
	for _, id := range ids {
		f := feats[id]
		var verts int
		var perim, offset float64
		if p, ok := res.Polygons[id]; ok {
			verts = len(p.Points)
			perim = geometry.Perimeter(p.Points)
			// Offset is how far the polygon's vertex mean drifts from the pixel centroid.
			pts := make([]geometry.Point2D, len(p.Points))
			for i, pt := range p.Points {
				pts[i] = pt.ToFloat()
			}
			offset = geometry.Centroid(pts).Distance(geometry.Point2D{X: f.Centroid[0], Y: f.Centroid[1]})
		}
		fmt.Printf("%-8d %8d %8.1f %8.1f %8.1f %8.1f %8.1f %8d %8.1f %8.1f\n", id, f.Area,
			f.Centroid[0], f.Centroid[1], f.MeanColor[0], f.MeanColor[1], f.MeanColor[2], verts, perim, offset)
	}

	if *preview != "" {
		if err := olimage.Save(segment.Preview(analysis, labels), *preview, olimage.FormatPNG, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write preview: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nPreview written to %s\n", *preview)
	}
}
