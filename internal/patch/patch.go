// Package patch crops source-resolution image patches for labeled regions.
package patch

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"

	olimage "ortholabel/internal/image"
	"ortholabel/internal/mapping"
)

// ErrEmptyPatch is returned when a box does not intersect the source image.
var ErrEmptyPatch = errors.New("patch box does not intersect image")

// Crop returns the pixels of src covered by the inclusive box. Box
// coordinates are relative to the source bounds origin. src is not modified.
func Crop(src image.Image, box mapping.BBox) (*image.NRGBA, error) {
	b := src.Bounds()
	r := image.Rect(b.Min.X+box.XMin, b.Min.Y+box.YMin, b.Min.X+box.XMax+1, b.Min.Y+box.YMax+1)
	if box.XMax < box.XMin || box.YMax < box.YMin || r.Intersect(b).Empty() {
		return nil, ErrEmptyPatch
	}
	return imaging.Crop(src, r), nil
}

// WriteFile atomically writes a patch to path.
func WriteFile(img image.Image, path string, format olimage.Format) error {
	return olimage.Save(img, path, format, 95)
}
