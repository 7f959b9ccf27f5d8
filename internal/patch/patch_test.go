package patch

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	olimage "ortholabel/internal/image"
	"ortholabel/internal/mapping"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	return img
}

func TestCropInclusive(t *testing.T) {
	src := gradient(50, 40)
	got, err := Crop(src, mapping.BBox{XMin: 12, YMin: 5, XMax: 20, YMax: 9})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if got.Bounds().Dx() != 9 || got.Bounds().Dy() != 5 {
		t.Fatalf("Expected 9x5 patch, got %v", got.Bounds())
	}
	if c := got.NRGBAAt(0, 0); c.R != 12 || c.G != 5 {
		t.Errorf("Expected top-left (12,5), got (%d,%d)", c.R, c.G)
	}
	if c := got.NRGBAAt(8, 4); c.R != 20 || c.G != 9 {
		t.Errorf("Expected bottom-right (20,9), got (%d,%d)", c.R, c.G)
	}
}

func TestCropSinglePixel(t *testing.T) {
	got, err := Crop(gradient(10, 10), mapping.BBox{XMin: 3, YMin: 3, XMax: 3, YMax: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds().Dx() != 1 || got.Bounds().Dy() != 1 {
		t.Errorf("Expected 1x1 patch, got %v", got.Bounds())
	}
}

func TestCropRejectsEmpty(t *testing.T) {
	src := gradient(10, 10)
	for _, box := range []mapping.BBox{
		{XMin: 20, YMin: 20, XMax: 30, YMax: 30},
		{XMin: 5, YMin: 5, XMax: 4, YMax: 8},
	} {
		if _, err := Crop(src, box); !errors.Is(err, ErrEmptyPatch) {
			t.Errorf("Box %+v: expected ErrEmptyPatch, got %v", box, err)
		}
	}
}

func TestCropDoesNotModifySource(t *testing.T) {
	src := gradient(10, 10)
	before := append([]uint8(nil), src.Pix...)
	out, err := Crop(src, mapping.BBox{XMin: 0, YMin: 0, XMax: 4, YMax: 4})
	if err != nil {
		t.Fatal(err)
	}
	out.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	for i := range before {
		if src.Pix[i] != before[i] {
			t.Fatal("Source modified by crop")
		}
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	patch, _ := Crop(gradient(20, 20), mapping.BBox{XMin: 2, YMin: 2, XMax: 9, YMax: 9})

	for _, f := range []olimage.Format{olimage.FormatPNG, olimage.FormatJPEG, olimage.FormatWebP} {
		path := filepath.Join(dir, "tree", "5"+f.Ext())
		if err := WriteFile(patch, path, f); err != nil {
			t.Fatalf("%s: WriteFile failed: %v", f, err)
		}
		got, err := olimage.Load(path)
		if err != nil {
			t.Fatalf("%s: reload failed: %v", f, err)
		}
		if got.Bounds().Dx() != 8 {
			t.Errorf("%s: expected width 8, got %d", f, got.Bounds().Dx())
		}
	}
}
