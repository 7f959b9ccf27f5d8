package image

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"
)

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFromImageDropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	r := FromImage(img)
	if r.Width != 2 || r.Height != 1 {
		t.Fatalf("Expected 2x1 raster, got %dx%d", r.Width, r.Height)
	}
	if r.Encoding != EncodingUint8 {
		t.Errorf("Expected uint8 encoding, got %v", r.Encoding)
	}
	if len(r.Pix) != 6 {
		t.Fatalf("Expected 6 samples, got %d", len(r.Pix))
	}
	if rr, g, b := r.At(1, 0); rr != 200 || g != 100 || b != 50 {
		t.Errorf("Unexpected pixel (%v,%v,%v)", rr, g, b)
	}
}

func TestFromImageGrayReplicated(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	img.SetGray(1, 1, color.Gray{Y: 77})

	r := FromImage(img)
	rr, g, b := r.At(1, 1)
	if rr != 77 || g != 77 || b != 77 {
		t.Errorf("Expected gray replicated to (77,77,77), got (%v,%v,%v)", rr, g, b)
	}
}

func TestFromImageOffsetBounds(t *testing.T) {
	src := solidRGBA(10, 10, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	sub := src.SubImage(image.Rect(4, 4, 8, 6))

	r := FromImage(sub)
	if r.Width != 4 || r.Height != 2 {
		t.Fatalf("Expected 4x2, got %dx%d", r.Width, r.Height)
	}
	if rr, _, _ := r.At(0, 0); rr != 1 {
		t.Errorf("Expected sample from sub-image origin, got %v", rr)
	}
}

func TestNewRasterValidation(t *testing.T) {
	if _, err := NewRaster(0, 5, nil, EncodingFloat); err == nil {
		t.Error("Expected error for zero width")
	}
	if _, err := NewRaster(2, 2, make([]float32, 5), EncodingFloat); err == nil {
		t.Error("Expected error for short sample slice")
	}
	if _, err := NewRaster(2, 2, make([]float32, 12), EncodingFloat); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestNormalizeFactorNeverDoubleNormalizes(t *testing.T) {
	tests := []struct {
		name string
		pix  []float32
		enc  Encoding
		want float64
	}{
		{"uint8 dark", []float32{0, 0, 1}, EncodingUint8, 255},
		{"float normalized", []float32{0.2, 0.5, 1.0}, EncodingFloat, 1},
		{"float 0..255", []float32{12, 128, 255}, EncodingFloat, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRaster(1, 1, tt.pix, tt.enc)
			if err != nil {
				t.Fatal(err)
			}
			if got := r.NormalizeFactor(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestLabEncodingsAgree(t *testing.T) {
	u8, _ := NewRaster(1, 1, []float32{255, 255, 255}, EncodingUint8)
	f, _ := NewRaster(1, 1, []float32{1, 1, 1}, EncodingFloat)

	a, err := u8.Lab()
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.Lab()
	if err != nil {
		t.Fatal(err)
	}
	rows, cols := a.Dims()
	if rows != 1 || cols != 3 {
		t.Fatalf("Expected 1x3 Lab plane, got %dx%d", rows, cols)
	}
	for c := 0; c < 3; c++ {
		if math.Abs(a.At(0, c)-b.At(0, c)) > 1e-9 {
			t.Errorf("Channel %d differs: %f vs %f", c, a.At(0, c), b.At(0, c))
		}
	}
	if math.Abs(a.At(0, 0)-100) > 0.5 {
		t.Errorf("Expected white L ~100, got %f", a.At(0, 0))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	src := solidRGBA(8, 6, color.RGBA{R: 40, G: 90, B: 160, A: 255})
	path := filepath.Join(t.TempDir(), "nested", "out.png")

	if err := Save(src, path, FormatPNG, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Bounds().Dx() != 8 || got.Bounds().Dy() != 6 {
		t.Fatalf("Unexpected size %v", got.Bounds())
	}
	c := got.NRGBAAt(3, 3)
	if c.R != 40 || c.G != 90 || c.B != 160 {
		t.Errorf("Unexpected pixel %v", c)
	}
}

func TestEncodeWebPDecodes(t *testing.T) {
	src := solidRGBA(16, 16, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	var buf bytes.Buffer
	if err := Encode(&buf, src, FormatWebP, 100); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Bounds().Dx() != 16 {
		t.Errorf("Expected width 16, got %d", got.Bounds().Dx())
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatPNG, false},
		{"PNG", FormatPNG, false},
		{".jpeg", FormatJPEG, false},
		{"webp", FormatWebP, false},
		{"bmp", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsSupportedFormat(t *testing.T) {
	for _, p := range []string{"a.png", "b.JPG", "c.tif", "d.TIFF"} {
		if !IsSupportedFormat(p) {
			t.Errorf("Expected %s to be supported", p)
		}
	}
	if IsSupportedFormat("e.gif") {
		t.Error("Expected gif to be rejected")
	}
}

func BenchmarkLab(b *testing.B) {
	r := FromImage(solidRGBA(256, 256, color.RGBA{R: 120, G: 60, B: 30, A: 255}))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Lab(); err != nil {
			b.Fatal(err)
		}
	}
}
